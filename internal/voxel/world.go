package voxel

import "sync"

// probeDepth bounds the column search of GroundLevel.
const probeDepth = 64

// World owns chunk storage. Reads and edits may come from any goroutine.
type World struct {
	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk
	gen    generator
}

func NewWorld(seed uint32, terrain Terrain) *World {
	return &World{
		chunks: make(map[ChunkCoord]*Chunk, 64),
		gen:    generator{seed: seed, terrain: terrain},
	}
}

func (w *World) Terrain() Terrain { return w.gen.terrain }

func (w *World) chunk(c ChunkCoord) *Chunk {
	w.mu.RLock()
	ch := w.chunks[c]
	w.mu.RUnlock()
	if ch != nil {
		return ch
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ch = w.chunks[c]; ch == nil {
		ch = &Chunk{C: c}
		w.gen.fill(ch)
		w.chunks[c] = ch
	}
	return ch
}

func (w *World) Block(x, y, z int) Block {
	c, lx, ly, lz := chunkOf(x, y, z)
	ch := w.chunk(c)
	w.mu.RLock()
	defer w.mu.RUnlock()
	return ch.Type[Idx(lx, ly, lz)]
}

func (w *World) SetBlock(x, y, z int, b Block) {
	c, lx, ly, lz := chunkOf(x, y, z)
	ch := w.chunk(c)
	w.mu.Lock()
	defer w.mu.Unlock()
	ch.set(Idx(lx, ly, lz), b)
}

// HasCollisionVolume reports whether the cell collides. Opacity plays no
// part.
func (w *World) HasCollisionVolume(x, y, z int) bool {
	return w.Block(x, y, z).Solid()
}

func (w *World) Opaque(x, y, z int) bool {
	return w.Block(x, y, z).Opaque()
}

// Surface returns the y of the first empty cell above the highest solid
// cell at or below fromY in column (x, z).
func (w *World) Surface(x, z, fromY int) (int, bool) {
	for y := fromY; y > fromY-probeDepth; y-- {
		if w.HasCollisionVolume(x, y, z) {
			return y + 1, true
		}
	}
	return 0, false
}

// Chunks returns the number of generated chunks.
func (w *World) Chunks() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}
