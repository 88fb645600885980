// Package config holds the two configuration layers of the pumpwatch daemon:
//
//   - The static process Config, loaded once at startup from the environment
//     (envconfig + dotenv) and immutable thereafter.
//   - The runtime Snapshot, the versioned bundle of tunable thresholds pushed
//     by the remote configuration channel. Snapshots are immutable; updates
//     publish a wholly-new snapshot through an atomic pointer swap so a
//     monitoring cycle never observes a torn read.
package config

import (
	"time"

	"pumpwatch/internal/types"
)

// ROI is a normalized sub-rectangle of the captured frame expected to contain
// the LED display. All components are fractions of the frame in [0,1].
type ROI struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks that the rectangle stays inside the unit square. An ROI
// that would crop out of bounds is a configuration error, not a clamp.
func (r ROI) Validate() error {
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
		return types.NewAppError(types.ErrCodeConfigInvalidROI,
			"roi components must be positive and within [0,1]", nil)
	}
	if r.X+r.Width > 1 || r.Y+r.Height > 1 {
		return types.NewAppError(types.ErrCodeConfigInvalidROI,
			"roi extends beyond frame bounds", nil)
	}
	return nil
}

// Preprocess holds the individually toggleable image preprocessing steps
// applied before text extraction.
type Preprocess struct {
	Grayscale      bool    `json:"grayscale"`
	Threshold      bool    `json:"threshold"`
	ThresholdLevel uint8   `json:"threshold_level"`
	NoiseReduction bool    `json:"noise_reduction"`
	ScaleFactor    float64 `json:"scale_factor"` // 0 or 1 means no resize
}

// Snapshot is the immutable, versioned bundle of all tunable runtime
// parameters. A cycle loads exactly one snapshot at cycle start and uses it
// exclusively for that cycle.
type Snapshot struct {
	Version int64 `json:"version"`

	// Extraction
	ProviderPriority  []string      `json:"provider_priority"`
	ProviderTimeout   time.Duration `json:"provider_timeout"`
	MinimumConfidence float64       `json:"minimum_confidence"`
	Region            ROI           `json:"roi"`
	Preprocess        Preprocess    `json:"preprocess"`

	// Classification
	OffThreshold       float64  `json:"off_threshold"`        // amps
	IdleThreshold      float64  `json:"idle_threshold"`       // amps
	NormalMin          float64  `json:"normal_min"`           // amps
	NormalMax          float64  `json:"normal_max"`           // amps
	MaxValidCurrent    float64  `json:"max_valid_current"`    // amps; above this is OCR noise
	DryKeywords        []string `json:"dry_keywords"`
	RapidCycleKeywords []string `json:"rapid_cycle_keywords"`
	CaseSensitive      bool     `json:"case_sensitive"`

	// Safety
	MinimumCycleInterval      time.Duration `json:"minimum_cycle_interval"`
	MaxDailyCycles            int           `json:"max_daily_cycles"`
	PowerCycleDelay           time.Duration `json:"power_cycle_delay"`
	EnableDryConditionCycling bool          `json:"enable_dry_condition_cycling"`

	// Loop
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultSnapshot returns the factory settings used until the remote
// configuration channel delivers its first push. Current bands match the
// 1 HP pump heads the product ships against.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Version:           0,
		ProviderPriority:  []string{"tesseract", "cloud", "bridge"},
		ProviderTimeout:   15 * time.Second,
		MinimumConfidence: 0.70,
		Region:            ROI{X: 0.25, Y: 0.35, Width: 0.50, Height: 0.30},
		Preprocess: Preprocess{
			Grayscale:      true,
			Threshold:      true,
			ThresholdLevel: 128,
			NoiseReduction: true,
			ScaleFactor:    2.0,
		},
		OffThreshold:              0.5,
		IdleThreshold:             2.0,
		NormalMin:                 3.0,
		NormalMax:                 9.0,
		MaxValidCurrent:           50.0,
		DryKeywords:               []string{"dry", "dry run", "no water"},
		RapidCycleKeywords:        []string{"rapid", "cycling", "rapid cycle"},
		CaseSensitive:             false,
		MinimumCycleInterval:      30 * time.Minute,
		MaxDailyCycles:            10,
		PowerCycleDelay:           10 * time.Second,
		EnableDryConditionCycling: false,
		PollInterval:              60 * time.Second,
	}
}

// Validate checks the cross-field invariants a snapshot must satisfy before
// it may be published. An invalid snapshot is rejected wholesale; the store
// keeps the last-known-good one.
func (s *Snapshot) Validate() error {
	if err := s.Region.Validate(); err != nil {
		return err
	}
	if len(s.ProviderPriority) == 0 {
		return types.NewAppError(types.ErrCodeConfigMissingField,
			"provider priority list is empty", nil)
	}
	if s.MinimumConfidence < 0 || s.MinimumConfidence > 1 {
		return types.NewAppError(types.ErrCodeConfigInvalidThreshold,
			"minimum confidence must be within [0,1]", nil)
	}
	if s.OffThreshold < 0 || s.IdleThreshold <= s.OffThreshold {
		return types.NewAppError(types.ErrCodeConfigInvalidThreshold,
			"idle threshold must exceed off threshold", nil)
	}
	if s.NormalMax < s.NormalMin {
		return types.NewAppError(types.ErrCodeConfigInvalidThreshold,
			"normal band is inverted", nil)
	}
	if s.MaxValidCurrent < s.NormalMax {
		return types.NewAppError(types.ErrCodeConfigInvalidThreshold,
			"max valid current must cover the normal band", nil)
	}
	if s.MinimumCycleInterval <= 0 || s.PowerCycleDelay <= 0 || s.PollInterval <= 0 {
		return types.NewAppError(types.ErrCodeConfigInvalidInterval,
			"cycle interval, power-cycle delay and poll interval must be positive", nil)
	}
	if s.MaxDailyCycles <= 0 {
		return types.NewAppError(types.ErrCodeConfigInvalidThreshold,
			"max daily cycles must be positive", nil)
	}
	if s.ProviderTimeout <= 0 {
		return types.NewAppError(types.ErrCodeConfigInvalidInterval,
			"provider timeout must be positive", nil)
	}
	return nil
}
