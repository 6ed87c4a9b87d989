package gen

import (
	"math"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world/logic/mathx"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// Generator produces the height field and the initial voxel population of a world.
// Height is a pure function of (x, z, seed).
type Generator struct {
	Seed      int64
	SizeX     int
	SizeZ     int
	Thickness int
	Random    bool

	offX float64
	offZ float64
}

func New(seed int64, w tuning.WorldTuning) *Generator {
	return &Generator{
		Seed:      seed,
		SizeX:     w.SizeX,
		SizeZ:     w.SizeZ,
		Thickness: w.TerrainThickness,
		Random:    w.RandomTerrain,
		offX:      mathx.Unit(mathx.Hash2(seed, 0, 0)) * 100,
		offZ:      mathx.Unit(mathx.Hash2(seed, 0, 1)) * 100,
	}
}

// Height returns the surface elevation. Flat worlds sit at 0; rolling terrain
// stays within [-4, 4].
func (g *Generator) Height(x, z int) int {
	if !g.Random {
		return 0
	}
	fx := float64(x) + g.offX
	fz := float64(z) + g.offZ
	h := math.Sin(fx*0.2)*math.Cos(fz*0.2)*2 + math.Sin(fx*0.1+fz*0.1)*2
	return int(math.Floor(h))
}

// MinX and MinZ are the world-space coordinates of the footprint's first column.
func (g *Generator) MinX() int { return -mathx.FloorDiv(g.SizeX, 2) }
func (g *Generator) MinZ() int { return -mathx.FloorDiv(g.SizeZ, 2) }

// Generate fills Thickness dirt voxels below and including the surface of every
// footprint column. It returns the number of voxels written.
func (g *Generator) Generate(s *store.Store) int {
	n := 0
	for x := 0; x < g.SizeX; x++ {
		wx := g.MinX() + x
		for z := 0; z < g.SizeZ; z++ {
			wz := g.MinZ() + z
			h := g.Height(wx, wz)
			for y := h - g.Thickness + 1; y <= h; y++ {
				s.Set(store.Pos{X: wx, Y: y, Z: wz}, catalogs.Dirt)
				n++
			}
		}
	}
	return n
}

// RandomPoles rejection-samples up to count pole sites at least spacing apart and
// stacks height metal-pole voxels on each, starting one above the surface.
// It gives up after count*50 attempts and returns the bases it placed.
func (g *Generator) RandomPoles(s *store.Store, count, height, spacing int) []store.Pos {
	if count <= 0 || height <= 0 || g.SizeX <= 0 || g.SizeZ <= 0 {
		return nil
	}
	var bases []store.Pos
	minSq := spacing * spacing
	attempts := count * 50
	for i := 0; i < attempts && len(bases) < count; i++ {
		x := g.MinX() + int(mathx.Hash2(g.Seed, i, 1)%uint64(g.SizeX))
		z := g.MinZ() + int(mathx.Hash2(g.Seed, i, 2)%uint64(g.SizeZ))
		ok := true
		for _, b := range bases {
			dx, dz := b.X-x, b.Z-z
			if dx*dx+dz*dz < minSq {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		base := store.Pos{X: x, Y: g.Height(x, z) + 1, Z: z}
		for dy := 0; dy < height; dy++ {
			s.Set(base.Add(0, dy, 0), catalogs.MetalPole)
		}
		bases = append(bases, base)
	}
	return bases
}

// FootprintMax is the highest surface under a w by d rectangle anchored at (x0, z0).
func (g *Generator) FootprintMax(x0, z0, w, d int) int {
	best := math.MinInt
	for x := x0; x < x0+w; x++ {
		for z := z0; z < z0+d; z++ {
			if h := g.Height(x, z); h > best {
				best = h
			}
		}
	}
	if best == math.MinInt {
		return g.Height(x0, z0)
	}
	return best
}

// MeanNeighbourHeight averages the four axis neighbours of (x, z).
func (g *Generator) MeanNeighbourHeight(x, z int) float64 {
	sum := g.Height(x+1, z) + g.Height(x-1, z) + g.Height(x, z+1) + g.Height(x, z-1)
	return float64(sum) / 4
}
