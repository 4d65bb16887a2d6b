package tracer

import (
	"context"
	"fmt"
	"time"
)

// Profile holds the thresholds derived from a white and a black sample.
type Profile struct {
	BlackThreshold float64 `json:"black_threshold"`
	WhiteThreshold float64 `json:"white_threshold"`
	Target         float64 `json:"target"`
	GrayZone       float64 `json:"gray_zone"`
}

// Surface is the coarse classification of a reading.
type Surface string

const (
	SurfaceBlack Surface = "black"
	SurfaceWhite Surface = "white"
	SurfaceGray  Surface = "gray"
)

// NewProfile derives thresholds from the two samples. The margin is
// moved inward from both samples and the gray zone is grayRatio of the
// remaining span.
func NewProfile(white, black, margin, grayRatio float64) (Profile, error) {
	if black >= white {
		return Profile{}, fmt.Errorf("%w: black sample %.1f%% is not darker than white sample %.1f%%",
			ErrCalibration, black, white)
	}
	p := Profile{
		BlackThreshold: black + margin,
		WhiteThreshold: white - margin,
	}
	if p.BlackThreshold >= p.WhiteThreshold {
		return Profile{}, fmt.Errorf("%w: samples %.1f%% and %.1f%% are closer than twice the %.1f%% margin",
			ErrCalibration, black, white, margin)
	}
	p.Target = (p.BlackThreshold + p.WhiteThreshold) / 2
	p.GrayZone = (p.WhiteThreshold - p.BlackThreshold) * grayRatio
	return p, nil
}

// OnOffProfile centres uncalibrated on/off control on a fixed 50%
// threshold.
func OnOffProfile() Profile {
	return Profile{
		BlackThreshold: 10,
		WhiteThreshold: 90,
		Target:         50,
		GrayZone:       24,
	}
}

// UncalibratedProfile returns the profile cfg runs with when it skips
// calibration.
func UncalibratedProfile(cfg Config) Profile {
	if cfg.Control == ControlOnOff {
		return OnOffProfile()
	}
	return DefaultProfile()
}

// DefaultProfile is the typical profile of a dark line on a light floor.
func DefaultProfile() Profile {
	return Profile{
		BlackThreshold: 10,
		WhiteThreshold: 85,
		Target:         47.5,
		GrayZone:       22.5,
	}
}

// Classify reports whether value reads as line, floor or the edge
// between them.
func (p Profile) Classify(value float64) Surface {
	switch {
	case value < p.BlackThreshold:
		return SurfaceBlack
	case value > p.WhiteThreshold:
		return SurfaceWhite
	default:
		return SurfaceGray
	}
}

func (p Profile) String() string {
	return fmt.Sprintf("black<%.1f%% target=%.1f%% white>%.1f%% gray=±%.1f",
		p.BlackThreshold, p.Target, p.WhiteThreshold, p.GrayZone)
}

// Calibrate asks the operator to place the sensor on the floor and then
// on the line, confirming each with the button. While waiting it keeps
// reporting the live reading as EventSample.
func Calibrate(ctx context.Context, sensor Sensor, confirm Button, n Notifier, clock Clock, cfg Config) (Profile, error) {
	if n == nil {
		n = NopNotifier{}
	}
	if clock == nil {
		clock = RealClock{}
	}

	white, err := samplePhase(ctx, sensor, confirm, n, clock, cfg.PollInterval, EventCalibrateWhite)
	if err != nil {
		return Profile{}, fmt.Errorf("sample white: %w", err)
	}
	black, err := samplePhase(ctx, sensor, confirm, n, clock, cfg.PollInterval, EventCalibrateBlack)
	if err != nil {
		return Profile{}, fmt.Errorf("sample black: %w", err)
	}

	p, err := NewProfile(white, black, cfg.CalibrationMargin, cfg.GrayZoneRatio)
	if err != nil {
		n.Notify(Event{Kind: EventCalibrationFailed})
		return Profile{}, err
	}
	n.Notify(Event{Kind: EventCalibrated, Value: p.Target})
	return p, nil
}

// WaitForConfirm reports the live reading as EventSample until the
// operator releases and then presses the confirm button.
func WaitForConfirm(ctx context.Context, sensor Sensor, confirm Button, n Notifier, clock Clock, cfg Config) error {
	if n == nil {
		n = NopNotifier{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	_, err := waitPress(ctx, sensor, confirm, n, clock, cfg.PollInterval)
	return err
}

func samplePhase(ctx context.Context, sensor Sensor, confirm Button, n Notifier, clock Clock, poll time.Duration, kind EventKind) (float64, error) {
	n.Notify(Event{Kind: kind})
	return waitPress(ctx, sensor, confirm, n, clock, poll)
}

// waitPress waits for the button to be released, then for a press, and
// returns the reading taken at the press.
func waitPress(ctx context.Context, sensor Sensor, confirm Button, n Notifier, clock Clock, poll time.Duration) (float64, error) {
	released := false
	for {
		value, err := sensor.Reflectance(ctx)
		if err != nil {
			return 0, fmt.Errorf("read sensor: %w", err)
		}
		pressed, err := confirm.Pressed()
		if err != nil {
			return 0, fmt.Errorf("read button: %w", err)
		}
		n.Notify(Event{Kind: EventSample, Value: value})
		if !pressed {
			released = true
		} else if released {
			return value, nil
		}

		if err := clock.Sleep(ctx, poll); err != nil {
			return 0, err
		}
	}
}
