package voxel

// Chunks are 16³ with power-of-two indexing:
//
//	idx = x | z<<4 | y<<8
const (
	ChunkSize = 16

	shift  = 4
	shiftZ = shift
	shiftY = 2 * shift
	mask   = ChunkSize - 1

	N = ChunkSize * ChunkSize * ChunkSize
)

type ChunkCoord struct{ X, Y, Z int32 }

type Chunk struct {
	C     ChunkCoord
	Type  [N]Block
	solid int
}

func Idx(x, y, z int) int {
	return x | z<<shiftZ | y<<shiftY
}

// chunkOf splits a world cell coordinate into chunk and local coordinates.
func chunkOf(x, y, z int) (ChunkCoord, int, int, int) {
	return ChunkCoord{int32(x >> shift), int32(y >> shift), int32(z >> shift)},
		x & mask, y & mask, z & mask
}

func (c *Chunk) set(idx int, b Block) {
	if c.Type[idx].Solid() {
		c.solid--
	}
	if b.Solid() {
		c.solid++
	}
	c.Type[idx] = b
}

// Empty reports whether no block in the chunk has collision volume.
func (c *Chunk) Empty() bool { return c.solid == 0 }
