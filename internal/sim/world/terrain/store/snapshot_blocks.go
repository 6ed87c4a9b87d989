package store

import (
	"fmt"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/catalogs"
)

// ExportBlocks splits the store into scene block and pole lists, both sorted.
func (s *Store) ExportBlocks() (blocks, poles []snapshot.BlockV1) {
	blocks = []snapshot.BlockV1{}
	poles = []snapshot.BlockV1{}
	for _, e := range s.Entries() {
		b := snapshot.BlockV1{X: e.Pos.X, Y: e.Pos.Y, Z: e.Pos.Z, Type: e.Block.String()}
		if e.Block.IsPole() {
			poles = append(poles, b)
		} else {
			blocks = append(blocks, b)
		}
	}
	return blocks, poles
}

// ImportBlocks builds a new store from scene lists. Later entries overwrite earlier ones.
func ImportBlocks(blocks, poles []snapshot.BlockV1) (*Store, error) {
	s := New()
	for _, b := range blocks {
		t, err := catalogs.ParseBlockType(b.Type)
		if err != nil {
			return nil, fmt.Errorf("block at %d,%d,%d: %w", b.X, b.Y, b.Z, err)
		}
		s.Set(Pos{X: b.X, Y: b.Y, Z: b.Z}, t)
	}
	for _, p := range poles {
		t, err := catalogs.ParseBlockType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("pole at %d,%d,%d: %w", p.X, p.Y, p.Z, err)
		}
		if !t.IsPole() {
			return nil, fmt.Errorf("pole at %d,%d,%d has type %s", p.X, p.Y, p.Z, t)
		}
		s.Set(Pos{X: p.X, Y: p.Y, Z: p.Z}, t)
	}
	return s, nil
}
