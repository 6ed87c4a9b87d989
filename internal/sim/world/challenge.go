package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/logic/power"
	"spancraft.ai/internal/sim/world/logic/scoring"
	"spancraft.ai/internal/sim/world/terrain/store"
)

type ChallengeState string

const (
	ChallengeInactive  ChallengeState = "inactive"
	ChallengeActive    ChallengeState = "active"
	ChallengeCompleted ChallengeState = "completed"
)

type Challenge struct {
	State  ChallengeState
	Budget int
	Spent  int

	// Terminal poles on top of the two structures.
	Substation power.NodeKey
	Customer   power.NodeKey
	Powered    bool

	StartTick     uint64
	CompletedTick uint64
}

// Running is true while spend is tracked, including after completion.
func (c Challenge) Running() bool {
	return c.State == ChallengeActive || c.State == ChallengeCompleted
}

func (c Challenge) Stars() int {
	return scoring.Stars(c.Spent, c.Budget)
}

func (c Challenge) View() ChallengeView {
	v := ChallengeView{State: c.State}
	if c.State == "" {
		v.State = ChallengeInactive
	}
	if !c.Running() {
		return v
	}
	v.Budget = c.Budget
	v.Spent = c.Spent
	v.Remaining = c.Budget - c.Spent
	v.Stars = c.Stars()
	v.Powered = c.Powered
	return v
}

const structureSize = 2

// StartChallenge resets spend and builds the substation and customer at
// opposite corners. A running challenge is torn down first. History is cleared
// so earlier edits cannot move the new spend.
func (w *World) StartChallenge() {
	if w.challenge.Running() {
		w.removeStructures()
	}
	inset := w.cfg.Challenge.CornerInset
	minX, minZ := w.gen.MinX(), w.gen.MinZ()
	maxX := minX + w.cfg.World.SizeX - 1
	maxZ := minZ + w.cfg.World.SizeZ - 1

	w.challenge = Challenge{
		State:      ChallengeActive,
		Budget:     w.cfg.Challenge.Budget,
		Substation: w.placeStructure(minX+inset, minZ+inset, catalogs.Substation),
		Customer:   w.placeStructure(maxX-inset, maxZ-inset, catalogs.Customer),
		StartTick:  w.tick.Load(),
	}
	w.history.Clear()
	w.refresh()
	w.log.Info().
		Ints("substation", []int{w.challenge.Substation.X, w.challenge.Substation.Y, w.challenge.Substation.Z}).
		Ints("customer", []int{w.challenge.Customer.X, w.challenge.Customer.Y, w.challenge.Customer.Z}).
		Int("budget", w.challenge.Budget).
		Msg("challenge started")
}

// EndChallenge stops scoring and removes the structures.
func (w *World) EndChallenge() error {
	if !w.challenge.Running() {
		return ErrNoChallenge
	}
	w.removeStructures()
	w.log.Info().Str("state", string(w.challenge.State)).Int("spent", w.challenge.Spent).Msg("challenge ended")
	w.challenge = Challenge{State: ChallengeInactive}
	w.refresh()
	return nil
}

// placeStructure builds a 2x2x2 cluster footed above the highest ground in its
// footprint, with a metal-pole terminal on the (x0, z0) corner.
func (w *World) placeStructure(x0, z0 int, tag catalogs.BlockType) power.NodeKey {
	base := w.gen.FootprintMax(x0, z0, structureSize, structureSize) + 1
	for dx := 0; dx < structureSize; dx++ {
		for dy := 0; dy < structureSize; dy++ {
			for dz := 0; dz < structureSize; dz++ {
				p := store.Pos{X: x0 + dx, Y: base + dy, Z: z0 + dz}
				w.claim(p, tag)
			}
		}
	}
	term := store.Pos{X: x0, Y: base + structureSize, Z: z0}
	w.claim(term, catalogs.MetalPole)
	return power.KeyOfPos(term)
}

// claim overwrites p with a structure tag, remembering what was there.
func (w *World) claim(p store.Pos, tag catalogs.BlockType) {
	if _, ok := w.protected[p]; !ok {
		w.protected[p] = w.store.BlockAt(p)
	}
	w.store.Set(p, tag)
}

func (w *World) isProtected(p store.Pos) bool {
	_, ok := w.protected[p]
	return ok
}

// removeStructures puts back whatever the structures displaced.
func (w *World) removeStructures() {
	for p, prior := range w.protected {
		if prior == catalogs.Air {
			w.store.Delete(p)
		} else {
			w.store.Set(p, prior)
		}
	}
	w.protected = map[store.Pos]catalogs.BlockType{}
}

func (w *World) checkCompletion() {
	c := &w.challenge
	if c.State != ChallengeActive || !c.Powered {
		return
	}
	for _, cd := range w.conductors {
		if cd.HasCollision {
			return
		}
	}
	c.State = ChallengeCompleted
	c.CompletedTick = w.tick.Load()

	res := ChallengeResult{
		StartTick:     c.StartTick,
		CompletedTick: c.CompletedTick,
		Budget:        c.Budget,
		Spent:         c.Spent,
		Stars:         c.Stars(),
		Conductors:    len(w.conductors),
		Blocks:        w.store.Len(),
	}
	w.log.Info().Int("spent", res.Spent).Int("budget", res.Budget).Int("stars", res.Stars).Msg("challenge completed")
	if w.resultLogger != nil {
		if err := w.resultLogger.WriteResult(res); err != nil {
			w.log.Warn().Err(err).Msg("challenge result write failed")
		}
	}
}

// BlockCost prices a voxel by height and local slope.
func (w *World) BlockCost(p store.Pos) int {
	h := w.gen.Height(p.X, p.Z)
	return scoring.BlockCost(w.cfg.Challenge.BaseBlockCost, p.Y, h, w.gen.MeanNeighbourHeight(p.X, p.Z))
}

func (w *World) ConductorCost(from, to mgl64.Vec3) int {
	return scoring.ConductorCost(w.cfg.Challenge.BaseConductorCost, to.Sub(from).Len(), w.cfg.Challenge.OptimalSpan)
}

// canPlace refuses new spending once the budget is already exceeded.
func (w *World) canPlace() bool {
	return !w.challenge.Running() || w.challenge.Spent <= w.challenge.Budget
}

// spend applies delta to the running challenge, never dropping below zero, and
// returns the change actually applied.
func (w *World) spend(delta int) int {
	if !w.challenge.Running() || delta == 0 {
		return 0
	}
	next := w.challenge.Spent + delta
	if next < 0 {
		next = 0
	}
	applied := next - w.challenge.Spent
	w.challenge.Spent = next
	return applied
}

// Terminal returns the voxel positions of the substation and customer poles.
func (c Challenge) Terminal() (substation, customer store.Pos) {
	return c.Substation.Pos(), c.Customer.Pos()
}
