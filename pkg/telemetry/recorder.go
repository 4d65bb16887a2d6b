// Package telemetry collects, summarizes, plots and forwards the
// per-tick records a tracer publishes.
package telemetry

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gwillem/linetrace/pkg/tracer"
)

// Recorder is a tracer.Sink keeping the most recent ticks in memory.
type Recorder struct {
	mu    sync.Mutex
	limit int
	ticks []tracer.Tick
}

// NewRecorder keeps at most limit ticks; 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Publish implements tracer.Sink.
func (r *Recorder) Publish(t tracer.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.ticks) == r.limit {
		copy(r.ticks, r.ticks[1:])
		r.ticks = r.ticks[:len(r.ticks)-1]
	}
	r.ticks = append(r.ticks, t)
}

// Ticks returns a copy of the recorded ticks, oldest first.
func (r *Recorder) Ticks() []tracer.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracer.Tick(nil), r.ticks...)
}

// Len returns the number of recorded ticks.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

// Summary describes the tracking quality of a run.
type Summary struct {
	Ticks    int           `json:"ticks"`
	Duration time.Duration `json:"duration"`

	// Error statistics over ticks where the regulator ran.
	MeanAbsError float64 `json:"mean_abs_error"`
	RMSError     float64 `json:"rms_error"`
	ErrorStdDev  float64 `json:"error_std_dev"`
	MaxAbsError  float64 `json:"max_abs_error"`

	MeanSpeed   float64 `json:"mean_speed"`
	MaxTurnRate float64 `json:"max_turn_rate"`

	SharpTicks       int `json:"sharp_ticks"`
	SearchTicks      int `json:"search_ticks"`
	OscillatingTicks int `json:"oscillating_ticks"`
}

// Summarize computes a Summary. Sharp-curve and search ticks count
// toward the totals but not toward the error statistics.
func Summarize(ticks []tracer.Tick) Summary {
	s := Summary{Ticks: len(ticks)}
	if len(ticks) == 0 {
		return s
	}
	s.Duration = ticks[len(ticks)-1].At - ticks[0].At

	var errs, absErrs, speeds, turns []float64
	for _, t := range ticks {
		speeds = append(speeds, t.Speed)
		turns = append(turns, math.Abs(t.TurnRate))
		if t.Oscillating {
			s.OscillatingTicks++
		}
		switch {
		case t.Mode == tracer.ModeSearching:
			s.SearchTicks++
		case t.Curve != tracer.CurveNone:
			s.SharpTicks++
		default:
			errs = append(errs, t.Error)
			absErrs = append(absErrs, math.Abs(t.Error))
		}
	}

	s.MeanSpeed = stat.Mean(speeds, nil)
	s.MaxTurnRate = floats.Max(turns)
	if len(errs) > 0 {
		s.MeanAbsError = stat.Mean(absErrs, nil)
		s.MaxAbsError = floats.Max(absErrs)
		s.RMSError = floats.Norm(errs, 2) / math.Sqrt(float64(len(errs)))
	}
	if len(errs) > 1 {
		s.ErrorStdDev = stat.StdDev(errs, nil)
	}
	return s
}
