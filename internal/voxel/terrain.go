package voxel

import (
	"fmt"
	"math"
)

type Terrain int

const (
	Flat Terrain = iota
	Hills
	Steps
)

func (t Terrain) String() string {
	switch t {
	case Hills:
		return "hills"
	case Steps:
		return "steps"
	default:
		return "flat"
	}
}

func ParseTerrain(s string) (Terrain, error) {
	switch s {
	case "", "flat":
		return Flat, nil
	case "hills":
		return Hills, nil
	case "steps":
		return Steps, nil
	}
	return Flat, fmt.Errorf("voxel: unknown terrain %q", s)
}

const (
	hillCell   = 12
	hillHeight = 4
	stepWidth  = 6
	stepMax    = 5
)

// height returns the number of solid cells above y=0 in column (x, z); the
// surface is the top face of cell height-1. Flat ground has its surface at 0.
func (g *generator) height(x, z int) int {
	switch g.terrain {
	case Hills:
		return int(math.Round(g.valueNoise(float64(x)/hillCell, float64(z)/hillCell) * hillHeight))
	case Steps:
		s := floorDiv(x, stepWidth)
		if s < 0 {
			return 0
		}
		return min(s, stepMax)
	default:
		return 0
	}
}

type generator struct {
	seed    uint32
	terrain Terrain
}

// valueNoise is bilinear value noise on an integer lattice, in [0, 1).
func (g *generator) valueNoise(x, z float64) float64 {
	x0, z0 := math.Floor(x), math.Floor(z)
	fx, fz := smooth(x-x0), smooth(z-z0)
	ix, iz := int32(x0), int32(z0)

	v00 := unit(hash2(g.seed, ix, iz))
	v10 := unit(hash2(g.seed, ix+1, iz))
	v01 := unit(hash2(g.seed, ix, iz+1))
	v11 := unit(hash2(g.seed, ix+1, iz+1))

	a := v00 + (v10-v00)*fx
	b := v01 + (v11-v01)*fx
	return a + (b-a)*fz
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// fill generates one chunk. Ground below y=0 is stone all the way down.
func (g *generator) fill(c *Chunk) {
	ox, oy, oz := int(c.C.X)*ChunkSize, int(c.C.Y)*ChunkSize, int(c.C.Z)*ChunkSize
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			wx, wz := ox+lx, oz+lz
			h := g.height(wx, wz)
			decor := g.terrain == Hills && hash2(g.seed^0x5bd1e995, int32(wx), int32(wz))%13 == 0
			for ly := 0; ly < ChunkSize; ly++ {
				wy := oy + ly
				var b Block
				switch {
				case wy < h-2 || (wy < 0 && wy < h-1):
					b = Stone
				case wy < h-1:
					b = Dirt
				case wy == h-1:
					b = Grass
				case wy == h && decor:
					b = Foliage
				}
				if b != Air {
					c.set(Idx(lx, ly, lz), b)
				}
			}
		}
	}
}
