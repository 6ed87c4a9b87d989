package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateDetectsInvalidTuning(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Tuning)
		wantErr string
	}{
		{
			name:    "zero world size",
			mutate:  func(t *Tuning) { t.World.SizeX = 0 },
			wantErr: "world size must be positive",
		},
		{
			name:    "too few collision samples",
			mutate:  func(t *Tuning) { t.Conductor.CollisionSamples = 10 },
			wantErr: "collision_samples must be at least 30",
		},
		{
			name:    "unknown curve mode",
			mutate:  func(t *Tuning) { t.Conductor.CurveMode = "spline" },
			wantErr: `curve_mode "spline" is not supported`,
		},
		{
			name:    "no budget",
			mutate:  func(t *Tuning) { t.Challenge.Budget = 0 },
			wantErr: "challenge.budget must be positive",
		},
		{
			name:    "no history",
			mutate:  func(t *Tuning) { t.HistoryCapacity = 0 },
			wantErr: "history_capacity must be positive",
		},
		{
			name:    "rate window without max",
			mutate:  func(t *Tuning) { t.RateLimits.CmdMax = 0 },
			wantErr: "rate_limits.cmd_max must be positive",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
seed: 42
world:
  size_x: 64
  random_terrain: false
conductor:
  curve_mode: " Catenary "
challenge:
  budget: 2500
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, 64, got.World.SizeX)
	assert.Equal(t, 40, got.World.SizeZ)
	assert.False(t, got.World.RandomTerrain)
	assert.Equal(t, CurveCatenary, got.Conductor.CurveMode)
	assert.Equal(t, 2500, got.Challenge.Budget)
	assert.Equal(t, 100.0, got.Challenge.BaseBlockCost)
	assert.Equal(t, 100, got.HistoryCapacity)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world: [1, 2"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tuning.yaml")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}
