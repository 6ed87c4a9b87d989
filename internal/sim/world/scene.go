package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zyedidia/generic/mapset"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/logic/power"
	"spancraft.ai/internal/sim/world/terrain/gen"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// Export captures blocks, poles and wires as a scene. Challenge structures are
// left out; the voxels they displaced are written in their place.
func (w *World) Export() snapshot.SceneV1 {
	blocks, poles := w.sceneStore().ExportBlocks()
	scene := snapshot.SceneV1{
		Header: snapshot.Header{
			Version:       snapshot.Version,
			Tick:          w.tick.Load(),
			Seed:          w.cfg.Seed,
			SizeX:         w.cfg.World.SizeX,
			SizeZ:         w.cfg.World.SizeZ,
			PaletteDigest: catalogs.PaletteDigest(),
		},
		Blocks: blocks,
		Poles:  poles,
		Wires:  make([]snapshot.WireV1, 0, len(w.conductors)),
	}
	for _, c := range w.conductors {
		scene.Wires = append(scene.Wires, snapshot.WireV1{From: point(c.From), To: point(c.To)})
	}
	return scene
}

// Import replaces the store and conductor list with the scene and resumes at
// its tick. Wires whose endpoints do not land on a listed pole are dropped. On
// error the world is left untouched.
func (w *World) Import(scene snapshot.SceneV1) error {
	st, err := store.ImportBlocks(scene.Blocks, scene.Poles)
	if err != nil {
		return fmt.Errorf("%w: %v", snapshot.ErrInvalidScene, err)
	}

	poles := mapset.New[power.NodeKey]()
	for _, p := range scene.Poles {
		poles.Put(power.NodeKey{X: p.X, Y: p.Y, Z: p.Z})
	}

	if h := scene.Header; h.SizeX > 0 && h.SizeZ > 0 {
		w.cfg.Seed = h.Seed
		w.cfg.World.SizeX = h.SizeX
		w.cfg.World.SizeZ = h.SizeZ
		w.gen = gen.New(w.cfg.Seed, w.cfg.World)
	}
	w.tick.Store(scene.Header.Tick)
	w.store = st
	w.conductors = nil
	w.protected = map[store.Pos]catalogs.BlockType{}
	w.challenge = Challenge{State: ChallengeInactive}
	w.history.Clear()

	dropped := 0
	for _, wire := range scene.Wires {
		from, to := power.KeyOf(vec(wire.From)), power.KeyOf(vec(wire.To))
		if !poles.Has(from) || !poles.Has(to) || (from.X == to.X && from.Z == to.Z) {
			dropped++
			continue
		}
		w.addConductor(from.Vec(), to.Vec())
	}
	w.refresh()
	w.log.Info().
		Int("blocks", len(scene.Blocks)).
		Int("poles", len(scene.Poles)).
		Int("wires", len(w.conductors)).
		Int("dropped_wires", dropped).
		Msg("scene imported")
	return nil
}

func (w *World) sceneStore() *store.Store {
	if len(w.protected) == 0 {
		return w.store
	}
	s := store.New()
	for _, e := range w.store.Entries() {
		if _, ok := w.protected[e.Pos]; !ok {
			s.Set(e.Pos, e.Block)
		}
	}
	for p, prior := range w.protected {
		if prior != catalogs.Air {
			s.Set(p, prior)
		}
	}
	return s
}

func point(v mgl64.Vec3) snapshot.PointV1 {
	return snapshot.PointV1{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func vec(p snapshot.PointV1) mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}
