package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/history"
	"spancraft.ai/internal/sim/world/logic/collision"
	"spancraft.ai/internal/sim/world/terrain/store"
)

const (
	playerWidth  = 0.6
	playerHeight = 1.8
)

// CandidateVoxel is the empty voxel in front of a ray hit on a block face.
func CandidateVoxel(hit, normal mgl64.Vec3) store.Pos {
	return collision.VoxelOf(hit.Add(normal.Mul(0.5)))
}

func playerOverlaps(player mgl64.Vec3, v store.Pos) bool {
	dx := math.Abs(player.X() - float64(v.X))
	dz := math.Abs(player.Z() - float64(v.Z))
	dy := player.Y() - float64(v.Y)
	return dx < playerWidth/2+0.5 && dz < playerWidth/2+0.5 && dy > -1 && dy < playerHeight
}

func (w *World) PlaceBlock(p store.Pos, b catalogs.BlockType) error {
	if !b.Placeable() {
		return ErrNotPlaceable
	}
	if w.store.Has(p) {
		return ErrOccupied
	}
	if w.player != nil && playerOverlaps(*w.player, p) {
		return ErrPlayerBlocking
	}
	if !w.canPlace() {
		return ErrOverBudget
	}
	cost := 0
	if w.challenge.Running() {
		cost = w.BlockCost(p)
	}
	w.store.Set(p, b)
	w.history.Record(history.Action{Kind: history.BlockPlace, Pos: p, Block: b, Cost: w.spend(cost)})
	w.refresh()
	return nil
}

// RemoveBlock deletes a player or terrain block. Challenge structures are
// protected. Conductors attached to a removed pole stay in place.
func (w *World) RemoveBlock(p store.Pos) error {
	b, ok := w.store.Get(p)
	if !ok {
		return ErrNoBlock
	}
	if w.isProtected(p) {
		return ErrProtected
	}
	delta := 0
	if w.challenge.Running() {
		// Excavating natural ground is charged; anything else is refunded.
		cost := w.BlockCost(p)
		if b.IsTerrain() {
			delta = cost
		} else {
			delta = -cost
		}
	}
	w.store.Delete(p)
	w.history.Record(history.Action{Kind: history.BlockRemove, Pos: p, Block: b, Cost: w.spend(delta)})
	w.refresh()
	return nil
}

// PlaceConductor strings a cable between the poles at from and to.
func (w *World) PlaceConductor(from, to store.Pos) error {
	if !w.store.BlockAt(from).IsPole() || !w.store.BlockAt(to).IsPole() {
		return ErrNotPole
	}
	if from.X == to.X && from.Z == to.Z {
		return ErrSamePole
	}
	if !w.canPlace() {
		return ErrOverBudget
	}
	a, b := poleCenter(from), poleCenter(to)
	cost := 0
	if w.challenge.Running() {
		cost = w.ConductorCost(a, b)
	}
	w.addConductor(a, b)
	w.history.Record(history.Action{Kind: history.ConductorPlace, From: a, To: b, Cost: w.spend(cost)})
	w.refresh()
	return nil
}

func (w *World) RemoveConductor(id uint64) error {
	i, c := w.conductorByID(id)
	if c == nil {
		return ErrNoConductor
	}
	delta := 0
	if w.challenge.Running() {
		delta = -w.ConductorCost(c.From, c.To)
	}
	w.dropConductorAt(i)
	w.history.Record(history.Action{Kind: history.ConductorRemove, From: c.From, To: c.To, Cost: w.spend(delta)})
	w.refresh()
	return nil
}

// RemoveConductorAt removes the first conductor joining the two attachment points.
func (w *World) RemoveConductorAt(from, to mgl64.Vec3) error {
	c := w.findConductor(from, to)
	if c == nil {
		return ErrNoConductor
	}
	return w.RemoveConductor(c.ID)
}

// Undo reverts the latest recorded edit. Edits whose referent is gone are
// skipped silently. The bool is false when there is nothing to undo.
func (w *World) Undo() (history.Action, bool) {
	a, ok := w.history.Undo()
	if !ok {
		return a, false
	}
	w.revert(a)
	w.refresh()
	return a, true
}

// Redo re-applies the latest undone edit without consulting the budget gate.
func (w *World) Redo() (history.Action, bool) {
	a, ok := w.history.Redo()
	if !ok {
		return a, false
	}
	w.reapply(a)
	w.refresh()
	return a, true
}

func (w *World) revert(a history.Action) {
	switch a.Kind {
	case history.BlockPlace:
		if w.isProtected(a.Pos) || w.store.BlockAt(a.Pos) != a.Block {
			return
		}
		w.store.Delete(a.Pos)
	case history.BlockRemove:
		if w.store.Has(a.Pos) {
			return
		}
		w.store.Set(a.Pos, a.Block)
	case history.ConductorPlace:
		if !w.dropMatching(a.From, a.To) {
			return
		}
	case history.ConductorRemove:
		if !w.poleAt(a.From) || !w.poleAt(a.To) {
			return
		}
		w.addConductor(a.From, a.To)
	default:
		return
	}
	w.spend(-a.Cost)
}

func (w *World) reapply(a history.Action) {
	switch a.Kind {
	case history.BlockPlace:
		if w.store.Has(a.Pos) {
			return
		}
		w.store.Set(a.Pos, a.Block)
	case history.BlockRemove:
		if w.isProtected(a.Pos) || w.store.BlockAt(a.Pos) != a.Block {
			return
		}
		w.store.Delete(a.Pos)
	case history.ConductorPlace:
		if !w.poleAt(a.From) || !w.poleAt(a.To) {
			return
		}
		w.addConductor(a.From, a.To)
	case history.ConductorRemove:
		if !w.dropMatching(a.From, a.To) {
			return
		}
	default:
		return
	}
	w.spend(a.Cost)
}
