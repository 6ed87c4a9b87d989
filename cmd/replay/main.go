package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	persistlog "spancraft.ai/internal/persistence/log"
	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world"
)

func main() {
	var (
		scenePath  = flag.String("scene", "", "path to .scene.zst to start from (optional; default is a fresh world from tuning)")
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *scenePath == "" && *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "need -scene and/or -events")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	w, err := world.New(tune, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	if *scenePath != "" {
		scene, err := snapshot.ReadScene(*scenePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read scene:", err)
			os.Exit(1)
		}
		fmt.Printf("scene v%d tick=%d seed=%d size=%dx%d blocks=%d poles=%d wires=%d\n",
			scene.Header.Version, scene.Header.Tick, scene.Header.Seed, scene.Header.SizeX, scene.Header.SizeZ,
			len(scene.Blocks), len(scene.Poles), len(scene.Wires))
		if err := w.Import(scene); err != nil {
			fmt.Fprintln(os.Stderr, "import scene:", err)
			os.Exit(1)
		}
	}
	if *eventsDir == "" {
		return
	}

	startTick := w.CurrentTick()
	verifyFrom := *fromTick
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	var checked, rejected uint64
	err = persistlog.WalkJournal(*eventsDir, func(entry world.TickLogEntry) error {
		if entry.Tick < startTick {
			return nil
		}
		if *toTick != 0 && entry.Tick > *toTick {
			return persistlog.ErrStop
		}
		if entry.Tick < w.CurrentTick() {
			return fmt.Errorf("tick went backwards: entry=%d world=%d", entry.Tick, w.CurrentTick())
		}
		w.AdvanceTo(entry.Tick)

		cmds := make([]world.Command, 0, len(entry.Commands))
		for _, rc := range entry.Commands {
			cmds = append(cmds, rc.Cmd)
			if rc.Error != "" {
				rejected++
			}
		}
		tick, gotDigest := w.StepOnce(cmds)
		if tick >= verifyFrom {
			checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "no events dir:", *eventsDir)
		} else {
			fmt.Fprintln(os.Stderr, "replay:", err)
		}
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks rejected_cmds=%d (from tick=%d to tick=%d)\n", checked, rejected, startTick, w.CurrentTick())
}
