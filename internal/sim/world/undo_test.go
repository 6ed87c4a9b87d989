package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/history"
)

func TestUndoRedoRestoresEveryState(t *testing.T) {
	w := newFlatWorld(t)
	w.StartChallenge()

	edits := []func() error{
		func() error { return w.PlaceBlock(pos(0, 1, 0), catalogs.Pole) },
		func() error { return w.PlaceBlock(pos(4, 1, 0), catalogs.Pole) },
		func() error { return w.PlaceConductor(pos(0, 1, 0), pos(4, 1, 0)) },
		func() error { return w.RemoveBlock(pos(2, 0, 2)) },
		func() error { return w.PlaceBlock(pos(2, 1, 2), catalogs.Brick) },
		func() error { return w.RemoveConductor(w.Conductors()[0].ID) },
		func() error { return w.RemoveBlock(pos(2, 1, 2)) },
	}
	digests := []string{w.StateDigest()}
	for i, edit := range edits {
		require.NoError(t, edit(), "edit %d", i)
		digests = append(digests, w.StateDigest())
	}
	assert.Equal(t, history.Status{Undo: len(edits), Total: len(edits)}, w.History())

	for i := len(edits) - 1; i >= 0; i-- {
		_, ok := w.Undo()
		require.True(t, ok)
		assert.Equal(t, digests[i], w.StateDigest(), "after undoing edit %d", i)
	}
	_, ok := w.Undo()
	assert.False(t, ok)
	assert.Zero(t, w.Challenge().Spent)

	for i := range edits {
		_, ok := w.Redo()
		require.True(t, ok)
		assert.Equal(t, digests[i+1], w.StateDigest(), "after redoing edit %d", i)
	}
	_, ok = w.Redo()
	assert.False(t, ok)
}

func TestNewEditClearsRedo(t *testing.T) {
	w := newFlatWorld(t)
	require.NoError(t, w.PlaceBlock(pos(0, 1, 0), catalogs.Brick))
	_, ok := w.Undo()
	require.True(t, ok)
	require.True(t, w.History().Redo > 0)

	require.NoError(t, w.PlaceBlock(pos(1, 1, 0), catalogs.Brick))
	assert.Zero(t, w.History().Redo)
	_, ok = w.Redo()
	assert.False(t, ok)
}

func TestUndoSkipsMissingReferent(t *testing.T) {
	w := newFlatWorld(t)
	require.NoError(t, w.PlaceBlock(pos(0, 1, 0), catalogs.Pole))
	require.NoError(t, w.PlaceBlock(pos(4, 1, 0), catalogs.Pole))
	require.NoError(t, w.PlaceConductor(pos(0, 1, 0), pos(4, 1, 0)))
	require.NoError(t, w.RemoveConductor(w.Conductors()[0].ID))

	// Out-of-band removal: the conductor cannot be restored without its pole.
	w.store.Delete(pos(4, 1, 0))
	a, ok := w.Undo()
	require.True(t, ok)
	assert.Equal(t, history.ConductorRemove, a.Kind)
	assert.Empty(t, w.Conductors())

	a, ok = w.Undo()
	require.True(t, ok)
	assert.Equal(t, history.ConductorPlace, a.Kind)
	_, ok = w.Undo()
	require.True(t, ok)
	assert.Equal(t, catalogs.Air, w.Store().BlockAt(pos(4, 1, 0)))

	// Re-placing over a voxel that was filled meanwhile is skipped too.
	w.store.Set(pos(4, 1, 0), catalogs.Stone)
	_, ok = w.Redo()
	require.True(t, ok)
	assert.Equal(t, catalogs.Stone, w.Store().BlockAt(pos(4, 1, 0)))
}

func TestUndoNeverTouchesStructures(t *testing.T) {
	w := newChallengeWorld(t)
	w.StartChallenge()
	term := w.Challenge().Substation.Pos()

	w.history.Record(history.Action{Kind: history.BlockPlace, Pos: term, Block: catalogs.MetalPole})
	_, ok := w.Undo()
	require.True(t, ok)
	assert.Equal(t, catalogs.MetalPole, w.Store().BlockAt(term))

	w.history.Record(history.Action{Kind: history.BlockRemove, Pos: term, Block: catalogs.MetalPole})
	_, ok = w.Undo()
	require.True(t, ok)
	_, ok = w.Redo()
	require.True(t, ok)
	assert.Equal(t, catalogs.MetalPole, w.Store().BlockAt(term))
}
