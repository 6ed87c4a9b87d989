package world

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/logic/power"
)

type resultRecorder struct {
	results []ChallengeResult
}

func (r *resultRecorder) WriteResult(res ChallengeResult) error {
	r.results = append(r.results, res)
	return nil
}

func newChallengeWorld(t *testing.T) *World {
	t.Helper()
	cfg := flatTuning()
	cfg.World.SizeX = 16
	cfg.World.SizeZ = 16
	cfg.Challenge.CornerInset = 2
	w, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return w
}

func TestStartChallengeBuildsStructures(t *testing.T) {
	w := newChallengeWorld(t)
	w.StartChallenge()

	c := w.Challenge()
	assert.Equal(t, ChallengeActive, c.State)
	assert.Equal(t, power.NodeKey{X: -6, Y: 3, Z: -6}, c.Substation)
	assert.Equal(t, power.NodeKey{X: 5, Y: 3, Z: 5}, c.Customer)
	assert.Equal(t, catalogs.Substation, w.Store().BlockAt(pos(-5, 2, -5)))
	assert.Equal(t, catalogs.Customer, w.Store().BlockAt(pos(6, 1, 6)))
	assert.Equal(t, catalogs.MetalPole, w.Store().BlockAt(pos(5, 3, 5)))

	assert.Equal(t, EntityStructureBlock, w.Classify(pos(-6, 1, -6)).Kind)
	assert.Equal(t, EntityStructureBlock, w.Classify(pos(-6, 3, -6)).Kind)
	assert.ErrorIs(t, w.RemoveBlock(pos(-6, 1, -6)), ErrProtected)
	assert.ErrorIs(t, w.Remove(w.Classify(pos(5, 3, 5))), ErrProtected)

	// The substation terminal is a source while the challenge runs.
	assert.True(t, w.IsPowered(pos(-6, 3, -6)))
	assert.False(t, c.Powered)

	require.NoError(t, w.EndChallenge())
	assert.Equal(t, catalogs.Air, w.Store().BlockAt(pos(-6, 1, -6)))
	assert.Equal(t, catalogs.Air, w.Store().BlockAt(pos(5, 3, 5)))
	assert.Equal(t, ChallengeInactive, w.Challenge().State)
	assert.ErrorIs(t, w.EndChallenge(), ErrNoChallenge)
}

func TestChallengeStructuresRestoreDisplacedVoxels(t *testing.T) {
	w := newChallengeWorld(t)
	for y := 1; y <= 5; y++ {
		require.NoError(t, w.PlaceBlock(pos(-6, y, -6), catalogs.Pole))
	}
	require.NoError(t, w.PlaceBlock(pos(6, 2, 6), catalogs.Brick))

	w.StartChallenge()
	assert.Equal(t, catalogs.Substation, w.Store().BlockAt(pos(-6, 1, -6)))
	assert.Equal(t, catalogs.MetalPole, w.Store().BlockAt(pos(-6, 3, -6)))
	assert.Equal(t, catalogs.Customer, w.Store().BlockAt(pos(6, 2, 6)))

	// Restarting must not record the first structures as displaced voxels.
	w.StartChallenge()
	require.NoError(t, w.EndChallenge())

	for y := 1; y <= 5; y++ {
		assert.Equal(t, catalogs.Pole, w.Store().BlockAt(pos(-6, y, -6)), "y=%d", y)
	}
	assert.Equal(t, catalogs.Brick, w.Store().BlockAt(pos(6, 2, 6)))
	assert.Equal(t, catalogs.Air, w.Store().BlockAt(pos(5, 1, 5)))
	assert.Equal(t, EntityPole, w.Classify(pos(-6, 1, -6)).Kind)
}

func TestRestartingChallengeReplacesStructures(t *testing.T) {
	w := newChallengeWorld(t)
	w.StartChallenge()
	before := w.Store().Len()
	require.NoError(t, w.PlaceBlock(pos(0, 1, 0), catalogs.Brick))
	w.StartChallenge()

	assert.Equal(t, before+1, w.Store().Len())
	assert.Zero(t, w.Challenge().Spent)
	assert.Zero(t, w.History().Undo)
}

func TestChallengeSpendAndRefund(t *testing.T) {
	w := newChallengeWorld(t)
	require.NoError(t, w.PlaceBlock(pos(0, 1, 0), catalogs.Stone))
	w.StartChallenge()

	// Refunds never push spend below zero.
	require.NoError(t, w.RemoveBlock(pos(0, 1, 0)))
	assert.Zero(t, w.Challenge().Spent)

	dig := w.BlockCost(pos(1, 0, 1))
	assert.Equal(t, 100, dig)
	require.NoError(t, w.RemoveBlock(pos(1, 0, 1)))
	assert.Equal(t, dig, w.Challenge().Spent)

	high := w.BlockCost(pos(2, 3, 2))
	assert.Equal(t, 115, high)
	require.NoError(t, w.PlaceBlock(pos(2, 3, 2), catalogs.Pole))
	require.NoError(t, w.PlaceBlock(pos(6, 3, 2), catalogs.Pole))
	assert.Equal(t, dig+2*high, w.Challenge().Spent)

	wire := w.ConductorCost(poleCenter(pos(2, 3, 2)), poleCenter(pos(6, 3, 2)))
	assert.Equal(t, 58, wire)
	require.NoError(t, w.PlaceConductor(pos(2, 3, 2), pos(6, 3, 2)))
	assert.Equal(t, dig+2*high+wire, w.Challenge().Spent)

	require.NoError(t, w.RemoveConductor(w.Conductors()[0].ID))
	assert.Equal(t, dig+2*high, w.Challenge().Spent)
	require.NoError(t, w.RemoveBlock(pos(6, 3, 2)))
	assert.Equal(t, dig+high, w.Challenge().Spent)

	v := w.View().Challenge
	assert.Equal(t, w.Challenge().Budget-v.Spent, v.Remaining)
	assert.Equal(t, 3, v.Stars)
}

func TestBudgetGateAllowsOneOverspend(t *testing.T) {
	cfg := flatTuning()
	cfg.Challenge.Budget = 100
	w, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.PlaceBlock(pos(3, 3, 0), catalogs.Pole))
	w.StartChallenge()

	require.NoError(t, w.PlaceBlock(pos(0, 3, 0), catalogs.Pole))
	assert.Equal(t, 115, w.Challenge().Spent)
	assert.Equal(t, 2, w.Challenge().Stars())

	assert.ErrorIs(t, w.PlaceBlock(pos(6, 3, 0), catalogs.Pole), ErrOverBudget)
	assert.ErrorIs(t, w.PlaceConductor(pos(0, 3, 0), pos(3, 3, 0)), ErrOverBudget)

	// Removal and undo are not gated.
	_, ok := w.Undo()
	require.True(t, ok)
	assert.Zero(t, w.Challenge().Spent)
	_, ok = w.Redo()
	require.True(t, ok)
	assert.Equal(t, 115, w.Challenge().Spent)
	require.NoError(t, w.RemoveBlock(pos(0, 3, 0)))
	assert.Zero(t, w.Challenge().Spent)
	require.NoError(t, w.PlaceBlock(pos(6, 3, 0), catalogs.Pole))
}

func TestChallengeCompletesOnceWhenCustomerPowered(t *testing.T) {
	w := newChallengeWorld(t)
	rec := &resultRecorder{}
	w.SetResultLogger(rec)
	w.StartChallenge()

	route := []struct{ x, z int }{{-6, -2}, {-6, 2}, {-6, 5}, {-2, 5}, {2, 5}}
	for _, r := range route {
		require.NoError(t, w.PlaceBlock(pos(r.x, 3, r.z), catalogs.Pole))
	}
	require.NoError(t, w.PlaceBlock(pos(-6, 3, 0), catalogs.Dirt))

	prev := pos(-6, 3, -6)
	for _, r := range route {
		next := pos(r.x, 3, r.z)
		require.NoError(t, w.PlaceConductor(prev, next))
		prev = next
	}
	require.NoError(t, w.PlaceConductor(prev, pos(5, 3, 5)))

	// Power reaches the customer but a faulted span blocks completion.
	c := w.Challenge()
	assert.True(t, c.Powered)
	assert.Equal(t, ChallengeActive, c.State)
	assert.True(t, w.Conductors()[1].HasCollision)
	assert.Empty(t, rec.results)

	require.NoError(t, w.RemoveBlock(pos(-6, 3, 0)))
	c = w.Challenge()
	assert.Equal(t, ChallengeCompleted, c.State)
	require.Len(t, rec.results, 1)
	assert.Equal(t, c.Spent, rec.results[0].Spent)
	assert.Equal(t, 3, rec.results[0].Stars)
	assert.Equal(t, 6, rec.results[0].Conductors)

	// Further edits keep scoring but do not fire again.
	spent := c.Spent
	require.NoError(t, w.PlaceBlock(pos(0, 1, 0), catalogs.Brick))
	assert.Greater(t, w.Challenge().Spent, spent)
	assert.Len(t, rec.results, 1)
	assert.Equal(t, ChallengeCompleted, w.View().Challenge.State)
}

func TestCustomerUnpoweredWithoutPath(t *testing.T) {
	w := newChallengeWorld(t)
	w.StartChallenge()
	require.NoError(t, w.PlaceBlock(pos(0, 3, 0), catalogs.Pole))
	require.NoError(t, w.PlaceConductor(pos(0, 3, 0), pos(5, 3, 5)))

	assert.False(t, w.Challenge().Powered)
	assert.False(t, w.IsPowered(pos(5, 3, 5)))
	assert.Equal(t, ChallengeActive, w.Challenge().State)
}
