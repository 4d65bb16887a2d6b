package tracer

import (
	"context"
	"fmt"
	"time"
)

// NewSearchPattern orients base for the last known line position: base
// as is when the line was last seen on the left, mirrored otherwise.
func NewSearchPattern(base []float64, last LinePosition) []float64 {
	out := make([]float64, len(base))
	for i, a := range base {
		if last == PositionLeft {
			out[i] = a
		} else {
			out[i] = -a
		}
	}
	return out
}

// SearchResult describes a completed sweep.
type SearchResult struct {
	Found    bool
	Steps    int
	Angle    float64 // offset of the successful step
	Reading  float64 // reading of the last step
	Position LinePosition
}

// Searcher sweeps a pivot pattern to reacquire a lost line.
type Searcher struct {
	Drive    DriveBase
	Sensor   Sensor
	Notifier Notifier
	Clock    Clock
	Settle   time.Duration
}

// Search pivots by each offset in turn and samples once after each
// pivot. A reading darker than target ends the sweep successfully. When
// every offset fails the robot is stopped and Found is false. Collaborator
// errors abort the sweep.
func (s Searcher) Search(ctx context.Context, pattern []float64, target float64) (SearchResult, error) {
	n := s.Notifier
	if n == nil {
		n = NopNotifier{}
	}
	clock := s.Clock
	if clock == nil {
		clock = RealClock{}
	}

	n.Notify(Event{Kind: EventSearchStart})
	var res SearchResult
	for i, angle := range pattern {
		if err := s.Drive.Turn(ctx, angle); err != nil {
			return res, fmt.Errorf("%w: turn %.0f: %w", ErrActuation, angle, err)
		}
		res.Steps++

		reading, err := s.Sensor.Reflectance(ctx)
		if err != nil {
			return res, fmt.Errorf("read sensor: %w", err)
		}
		res.Reading = reading

		if reading < target {
			res.Found = true
			res.Angle = angle
			res.Position = PositionRight
			if angle > 0 {
				res.Position = PositionLeft
			}
			n.Notify(Event{Kind: EventLineFound, Value: angle})
			return res, nil
		}

		if i < len(pattern)-1 {
			if err := clock.Sleep(ctx, s.Settle); err != nil {
				return res, err
			}
		}
	}

	if err := s.Drive.Stop(ctx); err != nil {
		return res, fmt.Errorf("%w: stop: %w", ErrActuation, err)
	}
	n.Notify(Event{Kind: EventLineLost})
	return res, nil
}
