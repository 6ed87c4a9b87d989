package store

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"spancraft.ai/internal/sim/catalogs"
)

// Pos is an integer voxel coordinate. Any value is valid.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos) Add(dx, dy, dz int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Pos) Less(o Pos) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

type Entry struct {
	Pos   Pos
	Block catalogs.BlockType
}

// Store is a sparse voxel map. Unset coordinates are air.
type Store struct {
	blocks map[Pos]catalogs.BlockType

	dirty bool
	hash  [32]byte
}

func New() *Store {
	return &Store{blocks: map[Pos]catalogs.BlockType{}, dirty: true}
}

func (s *Store) Has(p Pos) bool {
	_, ok := s.blocks[p]
	return ok
}

func (s *Store) Get(p Pos) (catalogs.BlockType, bool) {
	b, ok := s.blocks[p]
	return b, ok
}

// BlockAt returns catalogs.Air for empty coordinates.
func (s *Store) BlockAt(p Pos) catalogs.BlockType {
	return s.blocks[p]
}

// Set overwrites any previous tag. Setting air deletes.
func (s *Store) Set(p Pos, b catalogs.BlockType) {
	if b == catalogs.Air {
		s.Delete(p)
		return
	}
	if old, ok := s.blocks[p]; ok && old == b {
		return
	}
	s.blocks[p] = b
	s.dirty = true
}

// Delete reports whether a block was removed.
func (s *Store) Delete(p Pos) bool {
	if _, ok := s.blocks[p]; !ok {
		return false
	}
	delete(s.blocks, p)
	s.dirty = true
	return true
}

func (s *Store) Clear() {
	if len(s.blocks) == 0 {
		return
	}
	s.blocks = map[Pos]catalogs.BlockType{}
	s.dirty = true
}

func (s *Store) Len() int { return len(s.blocks) }

// Find returns every coordinate holding b, sorted.
func (s *Store) Find(b catalogs.BlockType) []Pos {
	var out []Pos
	for p, v := range s.blocks {
		if v == b {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Entries returns all blocks sorted by coordinate.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.blocks))
	for p, b := range s.blocks {
		out = append(out, Entry{Pos: p, Block: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

// Digest hashes the sorted contents. It is cached until the next mutation.
func (s *Store) Digest() [32]byte {
	if !s.dirty {
		return s.hash
	}
	h := sha256.New()
	var tmp [26]byte
	for _, e := range s.Entries() {
		binary.LittleEndian.PutUint64(tmp[0:], uint64(int64(e.Pos.X)))
		binary.LittleEndian.PutUint64(tmp[8:], uint64(int64(e.Pos.Y)))
		binary.LittleEndian.PutUint64(tmp[16:], uint64(int64(e.Pos.Z)))
		binary.LittleEndian.PutUint16(tmp[24:], uint16(e.Block))
		h.Write(tmp[:])
	}
	copy(s.hash[:], h.Sum(nil))
	s.dirty = false
	return s.hash
}
