package tracer

import (
	"context"
	"time"
)

// Sensor samples the reflectance under the robot, in percent
// (low = dark line, high = light floor).
type Sensor interface {
	Reflectance(ctx context.Context) (float64, error)
}

// DriveBase commands a differential-drive robot.
type DriveBase interface {
	// Drive sets forward speed (mm/s) and turn rate (deg/s, positive is
	// clockwise) and returns without waiting.
	Drive(ctx context.Context, speed, turnRate float64) error
	// Turn pivots in place by angle degrees relative to the current
	// heading and returns once the rotation is complete.
	Turn(ctx context.Context, angle float64) error
	// Stop halts both wheels.
	Stop(ctx context.Context) error
}

// Button is a polled operator input.
type Button interface {
	Pressed() (bool, error)
}

// Event is a user-facing signal. Notifiers must never block the caller
// for long and their failures are not reported.
type Event struct {
	Kind  EventKind
	Value float64
}

// EventKind identifies an Event.
type EventKind int

const (
	EventReady EventKind = iota
	EventCalibrateWhite
	EventCalibrateBlack
	EventSample
	EventCalibrated
	EventCalibrationFailed
	EventStart
	EventSharpCurve
	EventSearchStart
	EventLineFound
	EventLineLost
	EventStopped
	EventFault
)

var eventNames = map[EventKind]string{
	EventReady:             "ready",
	EventCalibrateWhite:    "calibrate_white",
	EventCalibrateBlack:    "calibrate_black",
	EventSample:            "sample",
	EventCalibrated:        "calibrated",
	EventCalibrationFailed: "calibration_failed",
	EventStart:             "start",
	EventSharpCurve:        "sharp_curve",
	EventSearchStart:       "search_start",
	EventLineFound:         "line_found",
	EventLineLost:          "line_lost",
	EventStopped:           "stopped",
	EventFault:             "fault",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// Notifier receives best-effort user feedback.
type Notifier interface {
	Notify(Event)
}

// Notifiers fans an event out to several notifiers.
type Notifiers []Notifier

// Notify forwards ev to every non-nil notifier.
func (ns Notifiers) Notify(ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// Clock paces the control loop. The simulator supplies a virtual one.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Hardware bundles the collaborators a Tracer drives.
type Hardware struct {
	Sensor   Sensor
	Drive    DriveBase
	Stop     Button   // polled once per tick
	Notifier Notifier // optional
	Clock    Clock    // optional, defaults to RealClock
}
