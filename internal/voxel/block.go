// Package voxel is the host world the robot walks in: a sparse grid of
// fixed-size chunks generated on demand from a seed.
//
// Collision volume and visual opacity are separate properties of a block.
// Foliage is opaque but has no collision volume; glass and barriers collide
// but are see-through.
package voxel

type Block uint8

const (
	Air Block = iota
	Stone
	Dirt
	Grass
	Glass
	Foliage
	Barrier
)

type blockInfo struct {
	name   string
	solid  bool
	opaque bool
}

var blocks = [...]blockInfo{
	Air:     {"air", false, false},
	Stone:   {"stone", true, true},
	Dirt:    {"dirt", true, true},
	Grass:   {"grass", true, true},
	Glass:   {"glass", true, false},
	Foliage: {"foliage", false, true},
	Barrier: {"barrier", true, false},
}

func (b Block) info() blockInfo {
	if int(b) < len(blocks) {
		return blocks[b]
	}
	return blocks[Air]
}

func (b Block) String() string { return b.info().name }

// Solid reports whether the block has a non-empty collision volume.
func (b Block) Solid() bool { return b.info().solid }

func (b Block) Opaque() bool { return b.info().opaque }
