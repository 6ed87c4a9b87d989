package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/protocol"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// ToCommand converts a CMD message into a world command. Scene payloads are
// schema-checked here so a malformed file never reaches the run loop.
func ToCommand(m protocol.CmdMsg) (world.Command, error) {
	cmd := world.Command{
		Kind:      world.CommandKind(m.Kind),
		Pos:       voxel(m.Pos),
		Hit:       vec(m.Hit),
		Normal:    vec(m.Normal),
		From:      voxel(m.From),
		To:        voxel(m.To),
		Conductor: m.Conductor,
		Player:    vec(m.Player),
	}
	if m.Block != "" {
		b, err := catalogs.ParseBlockType(m.Block)
		if err != nil {
			return cmd, fmt.Errorf("%w: %v", world.ErrBadCommand, err)
		}
		cmd.Block = b
	}
	if cmd.Kind == world.CmdImportScene {
		if len(m.Scene) == 0 {
			return cmd, world.ErrBadCommand
		}
		scene, err := snapshot.DecodeJSON(m.Scene)
		if err != nil {
			return cmd, err
		}
		cmd.Scene = &scene
	}
	return cmd, nil
}

func voxel(p *[3]int) *store.Pos {
	if p == nil {
		return nil
	}
	return &store.Pos{X: p[0], Y: p[1], Z: p[2]}
}

func vec(v *[3]float64) *mgl64.Vec3 {
	if v == nil {
		return nil
	}
	out := mgl64.Vec3(*v)
	return &out
}

// StateMsg renders a tick view for the wire.
func StateMsg(v world.View) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            v.Tick,
		Blocks:          v.Blocks,
		Poles:           v.Poles,
		Conductors:      make([]protocol.ConductorState, 0, len(v.Conductors)),
		Challenge: protocol.ChallengeState{
			State:     string(v.Challenge.State),
			Budget:    v.Challenge.Budget,
			Spent:     v.Challenge.Spent,
			Remaining: v.Challenge.Remaining,
			Stars:     v.Challenge.Stars,
			Powered:   v.Challenge.Powered,
		},
		History: protocol.HistoryState{Undo: v.History.Undo, Redo: v.History.Redo, Total: v.History.Total},
	}
	for _, c := range v.Conductors {
		cs := protocol.ConductorState{
			ID:      c.ID,
			From:    c.From,
			To:      c.To,
			Powered: c.Powered,
			Faulted: c.Faulted,
			Phase:   c.Phase,
		}
		for _, p := range c.Colliding {
			cs.Colliding = append(cs.Colliding, [3]int{p.X, p.Y, p.Z})
		}
		msg.Conductors = append(msg.Conductors, cs)
	}
	return msg
}

var codes = []struct {
	err  error
	code string
}{
	{world.ErrOverBudget, protocol.ErrOverBudget},
	{world.ErrOccupied, protocol.ErrOccupied},
	{world.ErrPlayerBlocking, protocol.ErrBlocked},
	{world.ErrNotPlaceable, protocol.ErrInvalidTarget},
	{world.ErrSamePole, protocol.ErrInvalidTarget},
	{world.ErrNotPole, protocol.ErrInvalidTarget},
	{world.ErrProtected, protocol.ErrNoPermission},
	{world.ErrNoBlock, protocol.ErrNotFound},
	{world.ErrNoConductor, protocol.ErrNotFound},
	{world.ErrNoChallenge, protocol.ErrConflict},
	{world.ErrNothingToUndo, protocol.ErrStale},
	{world.ErrNothingToRedo, protocol.ErrStale},
	{world.ErrUnknownCommand, protocol.ErrUnknownCommand},
	{world.ErrBadCommand, protocol.ErrBadRequest},
	{snapshot.ErrInvalidScene, protocol.ErrInvalidScene},
	{context.DeadlineExceeded, protocol.ErrBusy},
	{context.Canceled, protocol.ErrBusy},
}

// CodeFor maps an edit error to its protocol code.
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return protocol.ErrInternal
}
