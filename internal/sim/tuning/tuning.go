package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurveParabolic = "parabolic"
	CurveCatenary  = "catenary"
)

type Tuning struct {
	TickRateHz int   `yaml:"tick_rate_hz"`
	Seed       int64 `yaml:"seed"`

	World     WorldTuning     `yaml:"world"`
	Poles     PoleTuning      `yaml:"poles"`
	Conductor ConductorTuning `yaml:"conductor"`
	Challenge ChallengeTuning `yaml:"challenge"`

	HistoryCapacity int `yaml:"history_capacity"`

	RateLimits RateLimitTuning `yaml:"rate_limits"`
}

// RateLimitTuning caps commands per connection. A zero window disables it.
type RateLimitTuning struct {
	CmdWindowTicks uint64 `yaml:"cmd_window_ticks"`
	CmdMax         int    `yaml:"cmd_max"`
}

type WorldTuning struct {
	SizeX            int  `yaml:"size_x"`
	SizeZ            int  `yaml:"size_z"`
	TerrainThickness int  `yaml:"terrain_thickness"`
	RandomTerrain    bool `yaml:"random_terrain"`
}

type PoleTuning struct {
	RandomCount int `yaml:"random_count"`
	Height      int `yaml:"height"`
	MinSpacing  int `yaml:"min_spacing"`
}

type ConductorTuning struct {
	CurveMode         string  `yaml:"curve_mode"`
	SagRatio          float64 `yaml:"sag_ratio"`
	CurveResolution   int     `yaml:"curve_resolution"`
	CollisionSamples  int     `yaml:"collision_samples"`
	EndpointClearance float64 `yaml:"endpoint_clearance"`
}

type ChallengeTuning struct {
	Budget            int     `yaml:"budget"`
	BaseBlockCost     float64 `yaml:"base_block_cost"`
	BaseConductorCost float64 `yaml:"base_conductor_cost"`
	OptimalSpan       float64 `yaml:"optimal_span"`
	// Distance of the challenge structures from the world edge.
	CornerInset int `yaml:"corner_inset"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		World: WorldTuning{
			SizeX:            40,
			SizeZ:            40,
			TerrainThickness: 3,
			RandomTerrain:    true,
		},
		Poles: PoleTuning{
			RandomCount: 5,
			Height:      5,
			MinSpacing:  10,
		},
		Conductor: ConductorTuning{
			CurveMode:         CurveParabolic,
			SagRatio:          0.1,
			CurveResolution:   50,
			CollisionSamples:  30,
			EndpointClearance: 0.6,
		},
		Challenge: ChallengeTuning{
			Budget:            10000,
			BaseBlockCost:     100,
			BaseConductorCost: 50,
			OptimalSpan:       15,
			CornerInset:       4,
		},
		HistoryCapacity: 100,
		RateLimits: RateLimitTuning{
			CmdWindowTicks: 20,
			CmdMax:         60,
		},
	}
}

// Load overlays the yaml file at path on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Conductor.CurveMode = strings.ToLower(strings.TrimSpace(t.Conductor.CurveMode))
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, errors.New("tick_rate_hz must be positive"))
	}
	if t.World.SizeX <= 0 || t.World.SizeZ <= 0 {
		errs = append(errs, errors.New("world size must be positive"))
	}
	if t.World.TerrainThickness <= 0 {
		errs = append(errs, errors.New("world.terrain_thickness must be positive"))
	}
	if t.Poles.RandomCount < 0 || t.Poles.Height < 0 || t.Poles.MinSpacing < 0 {
		errs = append(errs, errors.New("poles settings must not be negative"))
	}
	switch t.Conductor.CurveMode {
	case CurveParabolic, CurveCatenary:
	default:
		errs = append(errs, fmt.Errorf("conductor.curve_mode %q is not supported", t.Conductor.CurveMode))
	}
	if t.Conductor.SagRatio < 0 {
		errs = append(errs, errors.New("conductor.sag_ratio must not be negative"))
	}
	if t.Conductor.CurveResolution < 2 {
		errs = append(errs, errors.New("conductor.curve_resolution must be at least 2"))
	}
	if t.Conductor.CollisionSamples < 30 {
		errs = append(errs, errors.New("conductor.collision_samples must be at least 30"))
	}
	if t.Conductor.EndpointClearance < 0 {
		errs = append(errs, errors.New("conductor.endpoint_clearance must not be negative"))
	}
	if t.Challenge.Budget <= 0 {
		errs = append(errs, errors.New("challenge.budget must be positive"))
	}
	if t.Challenge.BaseBlockCost <= 0 || t.Challenge.BaseConductorCost <= 0 {
		errs = append(errs, errors.New("challenge base costs must be positive"))
	}
	if t.Challenge.OptimalSpan <= 0 {
		errs = append(errs, errors.New("challenge.optimal_span must be positive"))
	}
	if t.Challenge.CornerInset < 0 {
		errs = append(errs, errors.New("challenge.corner_inset must not be negative"))
	}
	if t.HistoryCapacity <= 0 {
		errs = append(errs, errors.New("history_capacity must be positive"))
	}
	if t.RateLimits.CmdWindowTicks > 0 && t.RateLimits.CmdMax <= 0 {
		errs = append(errs, errors.New("rate_limits.cmd_max must be positive when a window is set"))
	}
	return errors.Join(errs...)
}
