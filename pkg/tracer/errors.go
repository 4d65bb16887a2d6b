package tracer

import "errors"

var (
	// ErrCalibration is returned when the black and white samples are
	// inverted or too close to derive usable thresholds.
	ErrCalibration = errors.New("calibration failed")

	// ErrLineLost marks a run that ended because the search sweep could
	// not reacquire the line. Run reports it as an outcome, not an error.
	ErrLineLost = errors.New("line lost")

	// ErrActuation wraps failures reported by the drive base.
	ErrActuation = errors.New("actuation fault")

	ErrAlreadyRunning = errors.New("already running")
	ErrInvalidConfig  = errors.New("invalid config")
)
