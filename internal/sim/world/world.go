package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world/history"
	"spancraft.ai/internal/sim/world/logic/collision"
	"spancraft.ai/internal/sim/world/logic/geometry"
	"spancraft.ai/internal/sim/world/logic/power"
	"spancraft.ai/internal/sim/world/terrain/gen"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// World is the whole simulation state. It is owned by a single goroutine: call
// the edit methods directly only when Run is not active, otherwise go through
// Submit.
type World struct {
	cfg tuning.Tuning
	log zerolog.Logger

	store   *store.Store
	gen     *gen.Generator
	shape   geometry.Shape
	collide collision.Options

	conductors    []*Conductor
	nextConductor uint64

	history   *history.History
	challenge Challenge
	// Challenge structure voxels, including terminal poles.
	// protected maps each structure voxel to the tag it replaced (air if none).
	protected map[store.Pos]catalogs.BlockType
	player    *mgl64.Vec3

	power power.Result

	tick     atomic.Uint64
	inbox    chan CommandEnvelope
	stop     chan struct{}
	stopOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]chan View
	nextSub int

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	resultLogger ResultLogger
}

// New builds a world and populates it with terrain and random poles.
func New(cfg tuning.Tuning, log zerolog.Logger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	shape := geometry.Shape{Mode: geometry.Mode(cfg.Conductor.CurveMode), SagRatio: cfg.Conductor.SagRatio}
	w := &World{
		cfg:   cfg,
		log:   log.With().Str("component", "world").Logger(),
		store: store.New(),
		gen:   gen.New(cfg.Seed, cfg.World),
		shape: shape,
		collide: collision.Options{
			Shape:     shape,
			Samples:   cfg.Conductor.CollisionSamples,
			Clearance: cfg.Conductor.EndpointClearance,
		},
		history:   history.New(cfg.HistoryCapacity, log.With().Str("component", "history").Logger()),
		protected: map[store.Pos]catalogs.BlockType{},
		inbox:     make(chan CommandEnvelope, 1024),
		stop:      make(chan struct{}),
		subs:      map[int]chan View{},
	}
	w.Reset()
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)     { w.tickLogger = l }
func (w *World) SetResultLogger(l ResultLogger) { w.resultLogger = l }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) CurrentTick() uint64           { return w.tick.Load() }
func (w *World) Tuning() tuning.Tuning         { return w.cfg }
func (w *World) Store() *store.Store           { return w.store }
func (w *World) Generator() *gen.Generator     { return w.gen }
func (w *World) History() history.Status       { return w.history.Status() }
func (w *World) Challenge() Challenge          { return w.challenge }

// Submit queues cmd for the next tick and waits for its outcome.
func (w *World) Submit(ctx context.Context, cmd Command) error {
	resp := make(chan error, 1)
	select {
	case w.inbox <- CommandEnvelope{Cmd: cmd, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query runs fn on the loop goroutine between commands, for reads that need a
// consistent view of the whole world.
func (w *World) Query(ctx context.Context, fn func(*World)) error {
	resp := make(chan error, 1)
	select {
	case w.inbox <- CommandEnvelope{Fn: fn, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a listener for per-tick views. Slow listeners only see
// the latest view.
func (w *World) Subscribe() (int, <-chan View) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := w.nextSub
	w.nextSub++
	ch := make(chan View, 1)
	w.subs[id] = ch
	return id, ch
}

func (w *World) Unsubscribe(id int) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	if ch, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(ch)
	}
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []CommandEnvelope
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case env := <-w.inbox:
			pending = append(pending, env)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// AdvanceTo moves the tick counter forward without stepping. Ticks that carry
// no commands leave the state unchanged, so replay can jump over them.
func (w *World) AdvanceTo(tick uint64) {
	if tick > w.tick.Load() {
		w.tick.Store(tick)
	}
}

// StepOnce applies cmds and advances one tick, returning the tick that was
// stepped and the resulting state digest.
func (w *World) StepOnce(cmds []Command) (tick uint64, digest string) {
	envs := make([]CommandEnvelope, 0, len(cmds))
	for _, c := range cmds {
		envs = append(envs, CommandEnvelope{Cmd: c})
	}
	tick = w.tick.Load()
	w.step(envs)
	return tick, w.StateDigest()
}

func (w *World) step(cmds []CommandEnvelope) {
	nowTick := w.tick.Load()

	// Commands apply in inbox order.
	recorded := make([]RecordedCommand, 0, len(cmds))
	for _, env := range cmds {
		if env.Fn != nil {
			env.Fn(w)
			if env.Resp != nil {
				env.Resp <- nil
			}
			continue
		}
		err := w.Apply(env.Cmd)
		rc := RecordedCommand{Cmd: env.Cmd}
		if err != nil {
			rc.Error = err.Error()
			w.log.Debug().Err(err).Str("cmd", string(env.Cmd.Kind)).Uint64("tick", nowTick).Msg("command rejected")
		}
		recorded = append(recorded, rc)
		if env.Resp != nil {
			env.Resp <- err
		}
	}

	w.refresh()

	view := w.View()
	w.subMu.Lock()
	for _, ch := range w.subs {
		sendLatest(ch, view)
	}
	w.subMu.Unlock()

	if w.tickLogger != nil && len(recorded) > 0 {
		if err := w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Commands: recorded, Digest: w.StateDigest()}); err != nil {
			w.log.Warn().Err(err).Uint64("tick", nowTick).Msg("tick log write failed")
		}
	}

	w.tick.Add(1)
}

// Apply dispatches a single command.
func (w *World) Apply(cmd Command) error {
	switch cmd.Kind {
	case CmdPlaceBlock:
		switch {
		case cmd.Pos != nil:
			return w.PlaceBlock(*cmd.Pos, cmd.Block)
		case cmd.Hit != nil && cmd.Normal != nil:
			return w.PlaceBlock(CandidateVoxel(*cmd.Hit, *cmd.Normal), cmd.Block)
		}
		return ErrBadCommand
	case CmdRemoveBlock:
		if cmd.Pos == nil {
			return ErrBadCommand
		}
		return w.Remove(w.Classify(*cmd.Pos))
	case CmdPlaceConductor:
		if cmd.From == nil || cmd.To == nil {
			return ErrBadCommand
		}
		return w.PlaceConductor(*cmd.From, *cmd.To)
	case CmdRemoveConductor:
		return w.RemoveConductor(cmd.Conductor)
	case CmdUndo:
		if _, ok := w.Undo(); !ok {
			return ErrNothingToUndo
		}
		return nil
	case CmdRedo:
		if _, ok := w.Redo(); !ok {
			return ErrNothingToRedo
		}
		return nil
	case CmdStartChallenge:
		w.StartChallenge()
		return nil
	case CmdEndChallenge:
		return w.EndChallenge()
	case CmdReset:
		w.Reset()
		return nil
	case CmdImportScene:
		if cmd.Scene == nil {
			return ErrBadCommand
		}
		return w.Import(*cmd.Scene)
	case CmdMovePlayer:
		if cmd.Player == nil {
			w.SetPlayer(nil)
			return nil
		}
		p := *cmd.Player
		w.SetPlayer(&p)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

// SetPlayer records where the player stands so placements cannot trap them.
// Nil disables the check.
func (w *World) SetPlayer(p *mgl64.Vec3) { w.player = p }

// Reset discards everything and regenerates terrain and random poles.
func (w *World) Reset() {
	w.store.Clear()
	w.conductors = nil
	w.protected = map[store.Pos]catalogs.BlockType{}
	w.challenge = Challenge{State: ChallengeInactive}
	w.history.Clear()
	n := w.gen.Generate(w.store)
	bases := w.gen.RandomPoles(w.store, w.cfg.Poles.RandomCount, w.cfg.Poles.Height, w.cfg.Poles.MinSpacing)
	w.refresh()
	w.log.Info().Int("terrain", n).Int("poles", len(bases)).Int64("seed", w.cfg.Seed).Msg("world reset")
}

// refresh re-derives collision, power and completion from the current store and
// conductor list. Every edit calls it before returning.
func (w *World) refresh() {
	for _, c := range w.conductors {
		res := collision.Check(c.From, c.To, w.store, w.collide)
		c.HasCollision = res.HasCollision
		c.Colliding = res.Blocks
	}

	var extra []power.NodeKey
	if w.challenge.Running() && w.store.BlockAt(w.challenge.Substation.Pos()).IsPole() {
		extra = append(extra, w.challenge.Substation)
	}
	sources := power.CollectSources(w.store, extra...)
	edges := make([]power.Edge, len(w.conductors))
	for i, c := range w.conductors {
		edges[i] = c.Edge()
	}
	w.power = power.Propagate(sources, edges)
	for i, c := range w.conductors {
		c.IsPowered = w.power.EdgePowered(i)
	}

	w.challenge.Powered = false
	if w.challenge.Running() && w.store.BlockAt(w.challenge.Customer.Pos()).IsPole() {
		w.challenge.Powered = w.power.IsPowered(w.challenge.Customer)
	}
	w.checkCompletion()
}

// IsPowered reports whether the attachment point at p carries power.
func (w *World) IsPowered(p store.Pos) bool {
	return w.power.IsPowered(power.KeyOfPos(p))
}

func (w *World) View() View {
	v := View{
		Tick:       w.tick.Load(),
		Blocks:     w.store.Len(),
		Conductors: make([]ConductorView, 0, len(w.conductors)),
		Challenge:  w.challenge.View(),
		History:    w.history.Status(),
	}
	for _, e := range w.store.Entries() {
		if e.Block.IsPole() {
			v.Poles++
		}
	}
	for _, c := range w.conductors {
		v.Conductors = append(v.Conductors, ConductorView{
			ID:        c.ID,
			From:      [3]float64(c.From),
			To:        [3]float64(c.To),
			Powered:   c.IsPowered,
			Faulted:   c.HasCollision,
			Colliding: c.Colliding,
			Phase:     c.Phase,
		})
	}
	return v
}

func sendLatest(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// IsRejection reports whether err is an ordinary refused edit rather than a fault.
func IsRejection(err error) bool {
	for _, e := range []error{
		ErrOverBudget, ErrOccupied, ErrPlayerBlocking, ErrNotPlaceable, ErrSamePole, ErrNotPole,
		ErrProtected, ErrNoBlock, ErrNoConductor, ErrNoChallenge, ErrNothingToUndo, ErrNothingToRedo,
		ErrBadCommand, snapshot.ErrInvalidScene,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
