package world

import (
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/terrain/store"
)

type EntityKind uint8

const (
	EntityNone EntityKind = iota
	EntityTerrainBlock
	EntityPole
	EntityConductor
	EntityStructureBlock
)

func (k EntityKind) String() string {
	switch k {
	case EntityTerrainBlock:
		return "terrain_block"
	case EntityPole:
		return "pole"
	case EntityConductor:
		return "conductor"
	case EntityStructureBlock:
		return "structure_block"
	}
	return "none"
}

// Entity is whatever a pick ray or command targets.
type Entity struct {
	Kind      EntityKind
	Pos       store.Pos
	Block     catalogs.BlockType
	Conductor uint64
}

// Classify tags the voxel at p.
func (w *World) Classify(p store.Pos) Entity {
	b, ok := w.store.Get(p)
	switch {
	case !ok:
		return Entity{Kind: EntityNone, Pos: p}
	case w.isProtected(p):
		return Entity{Kind: EntityStructureBlock, Pos: p, Block: b}
	case b.IsPole():
		return Entity{Kind: EntityPole, Pos: p, Block: b}
	}
	return Entity{Kind: EntityTerrainBlock, Pos: p, Block: b}
}

func ConductorEntity(id uint64) Entity {
	return Entity{Kind: EntityConductor, Conductor: id}
}

// Remove deletes the targeted entity.
func (w *World) Remove(e Entity) error {
	switch e.Kind {
	case EntityTerrainBlock, EntityPole:
		return w.RemoveBlock(e.Pos)
	case EntityConductor:
		return w.RemoveConductor(e.Conductor)
	case EntityStructureBlock:
		return ErrProtected
	}
	return ErrNoBlock
}
