package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"spancraft.ai/internal/sim/world"
)

// ErrStop ends a journal walk early without reporting an error.
var ErrStop = errors.New("stop")

// JournalFiles lists events-*.jsonl.zst files in dir in chronological order.
func JournalFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// WalkJournal calls fn for every entry in dir, oldest file first. Returning
// ErrStop from fn ends the walk cleanly.
func WalkJournal(dir string, fn func(world.TickLogEntry) error) error {
	files, err := JournalFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := walkFile(path, fn); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// ReadJournal loads every entry in dir.
func ReadJournal(dir string) ([]world.TickLogEntry, error) {
	var out []world.TickLogEntry
	err := WalkJournal(dir, func(e world.TickLogEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func walkFile(path string, fn func(world.TickLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Files reopened within the same hour hold several concatenated frames.
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var entry world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return sc.Err()
}
