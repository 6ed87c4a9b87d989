package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/history"
	"spancraft.ai/internal/sim/world/terrain/store"
)

type CommandKind string

const (
	CmdPlaceBlock      CommandKind = "place_block"
	CmdRemoveBlock     CommandKind = "remove_block"
	CmdPlaceConductor  CommandKind = "place_conductor"
	CmdRemoveConductor CommandKind = "remove_conductor"
	CmdUndo            CommandKind = "undo"
	CmdRedo            CommandKind = "redo"
	CmdStartChallenge  CommandKind = "start_challenge"
	CmdEndChallenge    CommandKind = "end_challenge"
	CmdReset           CommandKind = "reset"
	CmdMovePlayer      CommandKind = "move_player"
	CmdImportScene     CommandKind = "import_scene"
)

// Command is one serialized user intent. Which fields matter depends on Kind:
// block commands use Pos (or Hit+Normal for placement) and Block, conductor
// placement uses From and To pole voxels, conductor removal uses Conductor.
// Scene is only read by import_scene.
type Command struct {
	Kind      CommandKind        `json:"kind"`
	Pos       *store.Pos         `json:"pos,omitempty"`
	Hit       *mgl64.Vec3        `json:"hit,omitempty"`
	Normal    *mgl64.Vec3        `json:"normal,omitempty"`
	Block     catalogs.BlockType `json:"block,omitempty"`
	From      *store.Pos         `json:"from,omitempty"`
	To        *store.Pos         `json:"to,omitempty"`
	Conductor uint64             `json:"conductor,omitempty"`
	Player    *mgl64.Vec3        `json:"player,omitempty"`
	Scene     *snapshot.SceneV1  `json:"scene,omitempty"`
}

// CommandEnvelope carries a command into the run loop. Resp, when set, receives
// the outcome once the command has been applied. An envelope with Fn set runs
// Fn on the loop goroutine instead and is not journaled.
type CommandEnvelope struct {
	Cmd  Command
	Fn   func(*World)
	Resp chan error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type ResultLogger interface {
	WriteResult(res ChallengeResult) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Commands []RecordedCommand `json:"commands"`
	Digest   string            `json:"digest"`
}

type RecordedCommand struct {
	Cmd   Command `json:"cmd"`
	Error string  `json:"error,omitempty"`
}

type ChallengeResult struct {
	StartTick     uint64 `json:"start_tick"`
	CompletedTick uint64 `json:"completed_tick"`
	Budget        int    `json:"budget"`
	Spent         int    `json:"spent"`
	Stars         int    `json:"stars"`
	Conductors    int    `json:"conductors"`
	Blocks        int    `json:"blocks"`
}

// View is the per-tick state published to subscribers.
type View struct {
	Tick       uint64          `json:"tick"`
	Blocks     int             `json:"blocks"`
	Poles      int             `json:"poles"`
	Conductors []ConductorView `json:"conductors"`
	Challenge  ChallengeView   `json:"challenge"`
	History    history.Status  `json:"history"`
}

type ConductorView struct {
	ID        uint64      `json:"id"`
	From      [3]float64  `json:"from"`
	To        [3]float64  `json:"to"`
	Powered   bool        `json:"powered"`
	Faulted   bool        `json:"faulted"`
	Colliding []store.Pos `json:"colliding,omitempty"`
	Phase     float64     `json:"phase"`
}

type ChallengeView struct {
	State     ChallengeState `json:"state"`
	Budget    int            `json:"budget"`
	Spent     int            `json:"spent"`
	Remaining int            `json:"remaining"`
	Stars     int            `json:"stars"`
	Powered   bool           `json:"powered"`
}
