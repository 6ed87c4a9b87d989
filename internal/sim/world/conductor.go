package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/sim/world/logic/mathx"
	"spancraft.ai/internal/sim/world/logic/power"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// Conductor is a cable strung between two pole attachment points. Its collision
// and power flags are re-derived on every refresh.
type Conductor struct {
	ID       uint64
	From, To mgl64.Vec3
	Curve    []mgl64.Vec3

	HasCollision bool
	Colliding    []store.Pos
	IsPowered    bool

	// Phase offsets the client-side current animation only.
	Phase float64
}

func (c *Conductor) Edge() power.Edge {
	return power.Edge{From: power.KeyOf(c.From), To: power.KeyOf(c.To)}
}

// Matches compares endpoints by node key in either direction.
func (c *Conductor) Matches(from, to mgl64.Vec3) bool {
	a, b := power.KeyOf(from), power.KeyOf(to)
	e := c.Edge()
	return (e.From == a && e.To == b) || (e.From == b && e.To == a)
}

func (c *Conductor) Span() float64 {
	return c.To.Sub(c.From).Len()
}

func (w *World) Conductors() []*Conductor { return w.conductors }

func (w *World) conductorByID(id uint64) (int, *Conductor) {
	for i, c := range w.conductors {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (w *World) findConductor(from, to mgl64.Vec3) *Conductor {
	for _, c := range w.conductors {
		if c.Matches(from, to) {
			return c
		}
	}
	return nil
}

func (w *World) addConductor(from, to mgl64.Vec3) *Conductor {
	w.nextConductor++
	c := &Conductor{
		ID:    w.nextConductor,
		From:  from,
		To:    to,
		Curve: w.shape.Curve(from, to, w.cfg.Conductor.CurveResolution),
		Phase: mathx.Unit(mathx.Hash2(w.cfg.Seed, int(w.nextConductor), 0)) * 2 * math.Pi,
	}
	w.conductors = append(w.conductors, c)
	return c
}

func (w *World) dropConductorAt(i int) *Conductor {
	c := w.conductors[i]
	w.conductors = append(w.conductors[:i], w.conductors[i+1:]...)
	return c
}

// dropMatching removes the first conductor joining from and to.
func (w *World) dropMatching(from, to mgl64.Vec3) bool {
	for i, c := range w.conductors {
		if c.Matches(from, to) {
			w.dropConductorAt(i)
			return true
		}
	}
	return false
}

func (w *World) poleAt(v mgl64.Vec3) bool {
	return w.store.BlockAt(power.KeyOf(v).Pos()).IsPole()
}

func poleCenter(p store.Pos) mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X), float64(p.Y), float64(p.Z)}
}
