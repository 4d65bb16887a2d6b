package tracer

import (
	"fmt"
	"time"
)

// ControlMode selects how a reading is turned into a turn rate.
type ControlMode string

const (
	// ControlOnOff turns at a fixed rate toward the set point.
	ControlOnOff ControlMode = "onoff"
	// ControlPID runs the PID regulator.
	ControlPID ControlMode = "pid"
)

// SpeedMode selects how forward speed is reduced in curves.
type SpeedMode string

const (
	// SpeedConstant always drives at BaseSpeed.
	SpeedConstant SpeedMode = "constant"
	// SpeedTurnScaled slows down in proportion to the commanded turn rate.
	SpeedTurnScaled SpeedMode = "turn"
	// SpeedErrorScaled slows down in proportion to the tracking error.
	SpeedErrorScaled SpeedMode = "error"
)

// MaxHistorySize bounds the oscillation detector's error history.
const MaxHistorySize = 32

// Config holds the tuning and feature switches of a line tracer.
// A Config is immutable once handed to New.
type Config struct {
	Control ControlMode `json:"control"`
	Speed   SpeedMode   `json:"speed"`

	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	IntegralLimit float64 `json:"integral_limit"`
	MaxTurnRate   float64 `json:"max_turn_rate"` // deg/s
	BaseSpeed     float64 `json:"base_speed"`    // mm/s
	OnOffTurnRate float64 `json:"onoff_turn_rate"`

	// Oscillation damping halves the integral when the sign of the error
	// flips on more than OscillationRatio of the history.
	OscillationDamping bool    `json:"oscillation_damping"`
	HistorySize        int     `json:"history_size"`
	OscillationRatio   float64 `json:"oscillation_ratio"`

	SpeedReduction float64 `json:"speed_reduction"`  // SpeedTurnScaled
	ErrorSpeedGain float64 `json:"error_speed_gain"` // SpeedErrorScaled
	MinSpeed       float64 `json:"min_speed"`        // SpeedErrorScaled

	Calibrate         bool    `json:"calibrate"`
	CalibrationMargin float64 `json:"calibration_margin"`
	GrayZoneRatio     float64 `json:"gray_zone_ratio"`

	CurveDetection   bool    `json:"curve_detection"`
	CurveMargin      float64 `json:"curve_margin"`
	SharpSpeedFactor float64 `json:"sharp_speed_factor"`
	SharpTurnFactor  float64 `json:"sharp_turn_factor"`

	LineSearch        bool          `json:"line_search"`
	LostLineThreshold int           `json:"lost_line_threshold"`
	LostMargin        float64       `json:"lost_margin"`
	SearchPattern     []float64     `json:"search_pattern"`
	SearchBiased      bool          `json:"search_biased"`
	SearchSettle      time.Duration `json:"search_settle"`

	TickPeriod   time.Duration `json:"tick_period"`
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultSearchPattern is the sweep used when the last known line
// position is left. It is mirrored for the other positions.
func DefaultSearchPattern() []float64 {
	return []float64{30, -60, 90, -120, 150, -180}
}

// DefaultConfig returns the full-featured reference tuning.
func DefaultConfig() Config {
	return Config{
		Control:            ControlPID,
		Speed:              SpeedTurnScaled,
		Kp:                 2.0,
		Ki:                 0.02,
		Kd:                 0.8,
		IntegralLimit:      100,
		MaxTurnRate:        250,
		BaseSpeed:          150,
		OnOffTurnRate:      100,
		OscillationDamping: true,
		HistorySize:        10,
		OscillationRatio:   0.6,
		SpeedReduction:     0.4,
		ErrorSpeedGain:     0.8,
		MinSpeed:           50,
		Calibrate:          true,
		CalibrationMargin:  5,
		GrayZoneRatio:      0.3,
		CurveDetection:     true,
		CurveMargin:        10,
		SharpSpeedFactor:   0.5,
		SharpTurnFactor:    0.8,
		LineSearch:         true,
		LostLineThreshold:  5,
		LostMargin:         5,
		SearchPattern:      DefaultSearchPattern(),
		SearchBiased:       true,
		SearchSettle:       50 * time.Millisecond,
		TickPeriod:         5 * time.Millisecond,
		PollInterval:       50 * time.Millisecond,
	}
}

// Levels are the progressive variants a Config can be built from.
const (
	LevelOnOff = iota + 1
	LevelCalibrated
	LevelProportional
	LevelPID
	LevelFull
)

// Preset returns the configuration of one of the five progressive
// variants, from plain on/off control (1) to the full controller (5).
func Preset(level int) (Config, error) {
	cfg := DefaultConfig()
	switch level {
	case LevelOnOff, LevelCalibrated:
		cfg.Control = ControlOnOff
		cfg.Speed = SpeedConstant
		cfg.Calibrate = level == LevelCalibrated
		cfg.OscillationDamping = false
		cfg.CurveDetection = false
		cfg.LineSearch = false
		cfg.TickPeriod = 10 * time.Millisecond
	case LevelProportional:
		cfg.Ki, cfg.Kd = 0, 0
		cfg.Speed = SpeedErrorScaled
		cfg.OscillationDamping = false
		cfg.CurveDetection = false
		cfg.LineSearch = false
		cfg.TickPeriod = 10 * time.Millisecond
	case LevelPID:
		cfg.Speed = SpeedErrorScaled
		cfg.OscillationDamping = false
		cfg.CurveMargin = 5
		cfg.SearchPattern = []float64{30, -60, 90, -120, 150}
		cfg.SearchBiased = false
	case LevelFull:
	default:
		return Config{}, fmt.Errorf("%w: unknown level %d", ErrInvalidConfig, level)
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Control {
	case ControlOnOff, ControlPID:
	default:
		return fmt.Errorf("%w: control mode %q", ErrInvalidConfig, c.Control)
	}
	switch c.Speed {
	case SpeedConstant, SpeedTurnScaled, SpeedErrorScaled:
	default:
		return fmt.Errorf("%w: speed mode %q", ErrInvalidConfig, c.Speed)
	}
	if c.MaxTurnRate <= 0 {
		return fmt.Errorf("%w: max turn rate must be positive", ErrInvalidConfig)
	}
	if c.IntegralLimit < 0 {
		return fmt.Errorf("%w: integral limit must not be negative", ErrInvalidConfig)
	}
	if c.BaseSpeed <= 0 {
		return fmt.Errorf("%w: base speed must be positive", ErrInvalidConfig)
	}
	if c.HistorySize < 2 || c.HistorySize > MaxHistorySize {
		return fmt.Errorf("%w: history size %d outside [2, %d]", ErrInvalidConfig, c.HistorySize, MaxHistorySize)
	}
	if c.TickPeriod <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: tick period and poll interval must be positive", ErrInvalidConfig)
	}
	if c.LineSearch && len(c.SearchPattern) == 0 {
		return fmt.Errorf("%w: line search enabled with an empty pattern", ErrInvalidConfig)
	}
	if c.LostLineThreshold < 0 {
		return fmt.Errorf("%w: lost line threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}
