package collision

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/sim/world/logic/geometry"
	"spancraft.ai/internal/sim/world/logic/mathx"
	"spancraft.ai/internal/sim/world/terrain/store"
)

const MinSamples = 30

type Occupancy interface {
	Has(p store.Pos) bool
}

type Options struct {
	Shape   geometry.Shape
	Samples int
	// Clearance is the horizontal radius around each endpoint where samples are ignored.
	Clearance float64
}

func DefaultOptions() Options {
	return Options{Shape: geometry.DefaultShape(), Samples: MinSamples, Clearance: 0.6}
}

type Result struct {
	HasCollision bool
	// Blocks holds the distinct occupied voxels touched by the curve and their
	// horizontal neighbours, sorted.
	Blocks []store.Pos
}

func VoxelOf(p mgl64.Vec3) store.Pos {
	return store.Pos{X: mathx.Round(p.X()), Y: mathx.Round(p.Y()), Z: mathx.Round(p.Z())}
}

type probe struct {
	from, to       mgl64.Vec3
	fromCX, fromCZ int
	toCX, toCZ     int
	clearance      float64
}

func newProbe(from, to mgl64.Vec3, clearance float64) probe {
	f := VoxelOf(from)
	t := VoxelOf(to)
	return probe{from: from, to: to, fromCX: f.X, fromCZ: f.Z, toCX: t.X, toCZ: t.Z, clearance: clearance}
}

// excluded reports samples that belong to the supporting poles.
func (p probe) excluded(pt mgl64.Vec3, v store.Pos) bool {
	if geometry.HorizontalDistance(pt, p.from) < p.clearance || geometry.HorizontalDistance(pt, p.to) < p.clearance {
		return true
	}
	if v.X == p.fromCX && v.Z == p.fromCZ {
		return true
	}
	return v.X == p.toCX && v.Z == p.toCZ
}

// Check samples the conductor curve between from and to against occ.
func Check(from, to mgl64.Vec3, occ Occupancy, opts Options) Result {
	return check(from, to, occ, opts, true)
}

// Collides is Check without collecting the touched blocks.
func Collides(from, to mgl64.Vec3, occ Occupancy, opts Options) bool {
	return check(from, to, occ, opts, false).HasCollision
}

func check(from, to mgl64.Vec3, occ Occupancy, opts Options, collect bool) Result {
	if opts.Samples < MinSamples {
		opts.Samples = MinSamples
	}
	pr := newProbe(from, to, opts.Clearance)

	var res Result
	seen := map[store.Pos]bool{}
	add := func(v store.Pos) {
		if !seen[v] {
			seen[v] = true
			res.Blocks = append(res.Blocks, v)
		}
	}

	for _, pt := range opts.Shape.Curve(from, to, opts.Samples) {
		v := VoxelOf(pt)
		if pr.excluded(pt, v) || !occ.Has(v) {
			continue
		}
		res.HasCollision = true
		if !collect {
			return res
		}
		add(v)
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dz == 0 {
					continue
				}
				n := v.Add(dx, 0, dz)
				center := mgl64.Vec3{float64(n.X), pt.Y(), float64(n.Z)}
				if pr.excluded(center, n) || !occ.Has(n) {
					continue
				}
				add(n)
			}
		}
	}
	sort.Slice(res.Blocks, func(i, j int) bool { return res.Blocks[i].Less(res.Blocks[j]) })
	return res
}
