// Package tuning loads the game constants from a YAML file.
// Every field has a default, so a tuning file only needs the keys it overrides.
package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every knob of the routing and simulation core.
type Tuning struct {
	Time    Time    `yaml:"time"`
	Vessels Vessels `yaml:"vessels"`
	Ports   Ports   `yaml:"ports"`
	Cargo   Cargo   `yaml:"cargo"`
	Routing Routing `yaml:"routing"`

	// Lane colors, assigned round-robin by lane count.
	LaneColors []string `yaml:"lane_colors"`
}

type Time struct {
	SecondsPerDay float64 `yaml:"seconds_per_day"` // Real seconds per in-game day
	OverflowDays  float64 `yaml:"overflow_days"`   // Sustained overflow before game over
	MaxFrameDelta float64 `yaml:"max_frame_delta"` // Upper bound on one tick's dt (seconds)
	FrameRateHz   int     `yaml:"frame_rate_hz"`
}

type Vessels struct {
	BaseCapacity    int     `yaml:"base_capacity"`
	CapacityUpgrade int     `yaml:"capacity_upgrade"`
	Speed           float64 `yaml:"speed"`         // Units per second
	DockDuration    float64 `yaml:"dock_duration"` // Seconds at exchange speed 1.0
}

type Ports struct {
	BaseCapacity  int     `yaml:"base_capacity"`
	Radius        float64 `yaml:"radius"`
	DockSlack     float64 `yaml:"dock_slack"`   // Added to Radius for the docking test
	SpawnChance   float64 `yaml:"spawn_chance"` // Per in-game day
	UpgradeFactor float64 `yaml:"upgrade_factor"`
	InitialCount  int     `yaml:"initial_count"`
	ProgressDays  float64 `yaml:"progress_days"` // Days until game progress reaches 1.0
}

type Cargo struct {
	SpawnChance float64 `yaml:"spawn_chance"` // Per port per tick
	// SpawnHeadroom lets generation continue past capacity by this many units.
	// Zero keeps generation strictly below capacity.
	SpawnHeadroom int `yaml:"spawn_headroom"`
}

type Routing struct {
	CellSize  float64 `yaml:"cell_size"`
	Clearance float64 `yaml:"clearance"`
	Tolerance float64 `yaml:"tolerance"` // Simplifier epsilon
}

// Default returns the stock game balance.
func Default() Tuning {
	return Tuning{
		Time: Time{
			SecondsPerDay: 60,
			OverflowDays:  3,
			MaxFrameDelta: 0.25,
			FrameRateHz:   60,
		},
		Vessels: Vessels{
			BaseCapacity:    6,
			CapacityUpgrade: 6,
			Speed:           100,
			DockDuration:    2,
		},
		Ports: Ports{
			BaseCapacity:  30,
			Radius:        12,
			DockSlack:     2,
			SpawnChance:   0.3,
			UpgradeFactor: 1.5,
			InitialCount:  3,
			ProgressDays:  30,
		},
		Cargo: Cargo{
			SpawnChance: 0.05,
		},
		Routing: Routing{
			CellSize:  24,
			Clearance: 12,
			Tolerance: 2.5,
		},
		LaneColors: []string{
			"#E53935", "#1E88E5", "#43A047", "#FFB300",
			"#8E24AA", "#00ACC1", "#F4511E", "#546E7A",
		},
	}
}

// Load reads a YAML tuning file over the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// OverflowLimit returns the sustained overflow, in seconds, that ends the game.
func (t Tuning) OverflowLimit() float64 {
	return t.Time.OverflowDays * t.Time.SecondsPerDay
}

// DockRadius is the distance from a port at which an arriving vessel docks.
func (t Tuning) DockRadius() float64 {
	return t.Ports.Radius + t.Ports.DockSlack
}

// Validate rejects values the simulation cannot run with.
func (t Tuning) Validate() error {
	var errs []error
	if t.Time.SecondsPerDay <= 0 {
		errs = append(errs, errors.New("time.seconds_per_day must be positive"))
	}
	if t.Time.OverflowDays <= 0 {
		errs = append(errs, errors.New("time.overflow_days must be positive"))
	}
	if t.Time.FrameRateHz <= 0 {
		errs = append(errs, errors.New("time.frame_rate_hz must be positive"))
	}
	if t.Vessels.Speed <= 0 {
		errs = append(errs, errors.New("vessels.speed must be positive"))
	}
	if t.Vessels.BaseCapacity <= 0 {
		errs = append(errs, errors.New("vessels.base_capacity must be positive"))
	}
	if t.Ports.BaseCapacity <= 0 {
		errs = append(errs, errors.New("ports.base_capacity must be positive"))
	}
	if t.Ports.UpgradeFactor < 1 {
		errs = append(errs, errors.New("ports.upgrade_factor must be at least 1"))
	}
	if t.Routing.CellSize <= 0 {
		errs = append(errs, errors.New("routing.cell_size must be positive"))
	}
	if t.Routing.Tolerance < 0 || t.Routing.Clearance < 0 {
		errs = append(errs, errors.New("routing.tolerance and routing.clearance must not be negative"))
	}
	if t.Cargo.SpawnChance < 0 || t.Cargo.SpawnChance > 1 || t.Ports.SpawnChance < 0 || t.Ports.SpawnChance > 1 {
		errs = append(errs, errors.New("spawn chances must be within [0, 1]"))
	}
	if len(t.LaneColors) == 0 {
		errs = append(errs, errors.New("lane_colors must not be empty"))
	}
	return errors.Join(errs...)
}
