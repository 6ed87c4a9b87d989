package history

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/terrain/store"
)

type Kind string

const (
	BlockPlace      Kind = "block_place"
	BlockRemove     Kind = "block_remove"
	ConductorPlace  Kind = "conductor_place"
	ConductorRemove Kind = "conductor_remove"
)

// Action is one reversible edit. Block actions carry Pos and Block; conductor
// actions carry the endpoints.
type Action struct {
	Kind  Kind               `json:"kind"`
	Pos   store.Pos          `json:"pos"`
	Block catalogs.BlockType `json:"block"`
	From  mgl64.Vec3         `json:"from"`
	To    mgl64.Vec3         `json:"to"`
	// Cost is the signed change to challenge spend the edit caused.
	Cost int `json:"cost,omitempty"`
}

func (a Action) IsConductor() bool {
	return a.Kind == ConductorPlace || a.Kind == ConductorRemove
}

type Status struct {
	Undo  int `json:"undo"`
	Redo  int `json:"redo"`
	Total int `json:"total"`
}

// History is a bounded linear undo/redo ledger. It never touches the world.
type History struct {
	capacity int
	undo     []Action
	redo     []Action
	log      zerolog.Logger
}

func New(capacity int, log zerolog.Logger) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{capacity: capacity, log: log}
}

// Record pushes a new action, clears redo and drops the oldest entry when full.
func (h *History) Record(a Action) {
	h.undo = append(h.undo, a)
	if over := len(h.undo) - h.capacity; over > 0 {
		h.undo = append(h.undo[:0], h.undo[over:]...)
	}
	h.redo = h.redo[:0]
	h.logAction("record", a)
}

// Undo returns the most recent action for the caller to invert.
func (h *History) Undo() (Action, bool) {
	if len(h.undo) == 0 {
		return Action{}, false
	}
	a := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, a)
	h.logAction("undo", a)
	return a, true
}

// Redo returns the most recently undone action for the caller to re-apply.
func (h *History) Redo() (Action, bool) {
	if len(h.redo) == 0 {
		return Action{}, false
	}
	a := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, a)
	h.logAction("redo", a)
	return a, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func (h *History) Status() Status {
	return Status{Undo: len(h.undo), Redo: len(h.redo), Total: len(h.undo) + len(h.redo)}
}

func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
	h.log.Debug().Msg("history cleared")
}

func (h *History) logAction(op string, a Action) {
	ev := h.log.Debug().Str("op", op).Str("kind", string(a.Kind))
	if a.IsConductor() {
		ev = ev.Floats64("from", a.From[:]).Floats64("to", a.To[:])
	} else {
		ev = ev.Ints("pos", []int{a.Pos.X, a.Pos.Y, a.Pos.Z}).Stringer("block", a.Block)
	}
	ev.Int("undo", len(h.undo)).Int("redo", len(h.redo)).Msg("history")
}
