package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spancraft.ai/internal/sim/world"
)

func TestTickLogger_WriteThenReadJournal(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 3; i++ {
		e := world.TickLogEntry{
			Tick:     i * 5,
			Commands: []world.RecordedCommand{{Cmd: world.Command{Kind: world.CmdUndo}, Error: "nothing to undo"}},
			Digest:   "d",
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadJournal(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries=%d want=3", len(got))
	}
	if got[2].Tick != 10 || got[2].Commands[0].Cmd.Kind != world.CmdUndo {
		t.Fatalf("unexpected entry: %+v", got[2])
	}
}

func TestJSONLZstdWriter_ReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	for tick := uint64(1); tick <= 2; tick++ {
		w := NewJSONLZstdWriter(dir, "events")
		w.now = fixed
		if err := w.Write(world.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	files, err := JournalFiles(dir)
	if err != nil {
		t.Fatalf("JournalFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "events-2026-01-02-03.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	got, err := ReadJournal(dir)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(got) != 2 || got[0].Tick != 1 || got[1].Tick != 2 {
		t.Fatalf("entries=%+v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	hour := 3
	w := NewJSONLZstdWriter(dir, "events")
	w.now = func() time.Time { return time.Date(2026, 1, 2, hour, 0, 0, 0, time.UTC) }

	for i := 0; i < 2; i++ {
		if err := w.Write(world.TickLogEntry{Tick: uint64(i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		hour++
	}
	_ = w.Close()

	files, err := JournalFiles(dir)
	if err != nil {
		t.Fatalf("JournalFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
}

func TestWalkJournal_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 5; i++ {
		_ = l.WriteTick(world.TickLogEntry{Tick: i})
	}
	_ = l.Close()

	seen := 0
	err := WalkJournal(filepath.Join(dir, "events"), func(e world.TickLogEntry) error {
		seen++
		if e.Tick == 1 {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkJournal: %v", err)
	}
	if seen != 2 {
		t.Fatalf("seen=%d want=2", seen)
	}
}

func TestWalkJournal_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "events-2026-01-01-00.jsonl.zst"), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJournal(dir); err == nil {
		t.Fatalf("expected error for corrupt journal")
	}
}

type failingTicks struct{ n int }

func (f *failingTicks) WriteTick(world.TickLogEntry) error {
	f.n++
	return errors.New("disk full")
}

func TestTeeTicks_WritesAllAndJoinsErrors(t *testing.T) {
	a, b := &failingTicks{}, &failingTicks{}
	err := TeeTicks(a, nil, b).WriteTick(world.TickLogEntry{Tick: 1})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("writes a=%d b=%d", a.n, b.n)
	}
}

func TestResultLogger_Writes(t *testing.T) {
	dir := t.TempDir()
	l := NewResultLogger(dir)
	if err := TeeResults(l).WriteResult(world.ChallengeResult{Spent: 10, Budget: 20, Stars: 3}); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	_ = l.Close()
	ents, err := os.ReadDir(filepath.Join(dir, "results"))
	if err != nil || len(ents) != 1 {
		t.Fatalf("results dir: %v %v", ents, err)
	}
}
