// Package tracer implements a single-sensor line-following controller
// for a differential-drive robot: calibration, a PID regulator with
// anti-windup and oscillation damping, sharp-curve handling and a line
// search that recovers from losing the line.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Mode is the line-tracking state of a tick.
type Mode string

const (
	ModeTracking  Mode = "tracking"
	ModeSearching Mode = "searching"
)

// Tick is the telemetry of one control-loop iteration.
type Tick struct {
	Index       int           `json:"index"`
	At          time.Duration `json:"at"`
	Reflectance float64       `json:"reflectance"`
	Error       float64       `json:"error"`
	TurnRate    float64       `json:"turn_rate"`
	Speed       float64       `json:"speed"`
	Curve       Curve         `json:"curve"`
	Position    LinePosition  `json:"position"`
	LostCount   int           `json:"lost_count"`
	Integral    float64       `json:"integral"`
	Oscillating bool          `json:"oscillating"`
	Mode        Mode          `json:"mode"`
}

// Sink receives every tick of a run.
type Sink interface {
	Publish(Tick)
}

// Outcome is how a run ended.
type Outcome int

const (
	OutcomeStopped Outcome = iota
	OutcomeLineLost
	OutcomeCancelled
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeLineLost:
		return "line lost"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "fault"
	}
}

// Result summarizes a finished run.
type Result struct {
	Outcome   Outcome
	Ticks     int
	Searches  int
	Elapsed   time.Duration
	Regulator RegulatorState
	Tracking  LineTracking
}

// Err returns ErrLineLost for runs that ended with the line lost.
func (r Result) Err() error {
	if r.Outcome == OutcomeLineLost {
		return ErrLineLost
	}
	return nil
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger mirrors the tracer's log lines to l.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracer) { t.logger = l }
}

// WithSink registers a tick sink.
func WithSink(s Sink) Option {
	return func(t *Tracer) { t.sinks = append(t.sinks, s) }
}

// Tracer runs the control loop.
type Tracer struct {
	cfg      Config
	profile  Profile
	hw       Hardware
	notifier Notifier
	clock    Clock
	reg      Regulator
	searcher Searcher
	sinks    []Sink
	logger   *log.Logger

	// Owned by the control loop.
	state    RegulatorState
	tracking LineTracking
	ticks    int
	searches int
	start    time.Time

	mu      sync.Mutex
	running bool
	tickCh  chan Tick
	logCh   chan string
}

// New creates a tracer for an already calibrated profile.
func New(cfg Config, profile Profile, hw Hardware, opts ...Option) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Sensor == nil || hw.Drive == nil || hw.Stop == nil {
		return nil, fmt.Errorf("%w: sensor, drive base and stop button are required", ErrInvalidConfig)
	}
	if !(profile.BlackThreshold < profile.Target && profile.Target < profile.WhiteThreshold) {
		return nil, fmt.Errorf("%w: profile %v", ErrCalibration, profile)
	}

	t := &Tracer{
		cfg:      cfg,
		profile:  profile,
		hw:       hw,
		notifier: hw.Notifier,
		clock:    hw.Clock,
		reg:      NewRegulator(cfg, profile),
		state:    NewRegulatorState(cfg.HistorySize),
		tickCh:   make(chan Tick, 1),
		logCh:    make(chan string, 64),
	}
	if t.notifier == nil {
		t.notifier = NopNotifier{}
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	t.searcher = Searcher{
		Drive:    hw.Drive,
		Sensor:   hw.Sensor,
		Notifier: t.notifier,
		Clock:    t.clock,
		Settle:   cfg.SearchSettle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Ticks returns a channel that receives the latest tick.
func (t *Tracer) Ticks() <-chan Tick {
	return t.tickCh
}

// Logs returns a channel that receives log messages.
func (t *Tracer) Logs() <-chan string {
	return t.logCh
}

// Config returns the tracer's configuration.
func (t *Tracer) Config() Config {
	return t.cfg
}

// Profile returns the calibration profile in use.
func (t *Tracer) Profile() Profile {
	return t.profile
}

// State returns the regulator state and line tracking of the last tick.
// Only call it while Run is not executing.
func (t *Tracer) State() (RegulatorState, LineTracking) {
	return t.state, t.tracking
}

func (t *Tracer) log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if t.logger != nil {
		t.logger.Print(msg)
	}
	msg = fmt.Sprintf("[%s] %s", t.clock.Now().Format("15:04:05"), msg)
	select {
	case t.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run drives the control loop until the stop button is pressed, the line
// is lost for good, ctx is done or a collaborator fails. Run may be
// called again after it returns. The robot is
// always stopped before Run returns. A lost line is reported through
// Result.Outcome with a nil error.
func (t *Tracer) Run(ctx context.Context) (res Result, err error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	t.running = true
	t.mu.Unlock()

	// Each run starts from a fresh regulator and tracking state.
	t.state = NewRegulatorState(t.cfg.HistorySize)
	t.tracking = LineTracking{}
	t.ticks, t.searches = 0, 0
	t.start = t.clock.Now()
	t.notifier.Notify(Event{Kind: EventStart})
	t.log("Line tracing started at %v per tick (%s)", t.cfg.TickPeriod, t.profile)

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFault
			err = fmt.Errorf("panic in control loop: %v", r)
		}
		if stopErr := t.hw.Drive.Stop(context.Background()); stopErr != nil {
			t.log("Warning: failed to stop drive: %v", stopErr)
			if err == nil {
				res.Outcome = OutcomeFault
				err = fmt.Errorf("%w: stop: %w", ErrActuation, stopErr)
			}
		}
		t.finish(&res, err)

		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	return t.loop(ctx)
}

func (t *Tracer) loop(ctx context.Context) (Result, error) {
	next := t.start
	for {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: OutcomeCancelled}, err
		}

		pressed, err := t.hw.Stop.Pressed()
		if err != nil {
			return Result{Outcome: OutcomeFault}, fmt.Errorf("read stop button: %w", err)
		}
		if pressed {
			return Result{Outcome: OutcomeStopped}, nil
		}

		value, err := t.hw.Sensor.Reflectance(ctx)
		if err != nil {
			return Result{Outcome: OutcomeFault}, fmt.Errorf("read sensor: %w", err)
		}

		lost, err := t.Step(ctx, value)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{Outcome: OutcomeCancelled}, err
			}
			return Result{Outcome: OutcomeFault}, err
		}
		if lost {
			return Result{Outcome: OutcomeLineLost}, nil
		}

		// Fixed-rate schedule; an overrun moves the next boundary
		// instead of bursting to catch up.
		next = next.Add(t.cfg.TickPeriod)
		if wait := next.Sub(t.clock.Now()); wait > 0 {
			if err := t.clock.Sleep(ctx, wait); err != nil {
				return Result{Outcome: OutcomeCancelled}, err
			}
		} else {
			next = t.clock.Now()
		}
	}
}

func (t *Tracer) finish(res *Result, err error) {
	res.Ticks = t.ticks
	res.Searches = t.searches
	res.Elapsed = t.clock.Now().Sub(t.start)
	res.Regulator = t.state
	res.Tracking = t.tracking

	switch {
	case err != nil && res.Outcome != OutcomeCancelled:
		t.notifier.Notify(Event{Kind: EventFault})
		t.log("Stopped on error: %v", err)
	case res.Outcome == OutcomeLineLost:
		t.log("Line not found after %d searches", res.Searches)
	default:
		t.notifier.Notify(Event{Kind: EventStopped})
	}
	t.log("Run %s after %.2fs, %d ticks, final integral %.2f, final error %.2f",
		res.Outcome, res.Elapsed.Seconds(), res.Ticks, res.Regulator.Integral, res.Regulator.LastError)
}

// Step runs one tick of control on a reading that was just taken. It
// reports true when the line search failed and the run must end.
func (t *Tracer) Step(ctx context.Context, value float64) (bool, error) {
	tick := Tick{
		Index: t.ticks,
		Mode:  ModeTracking,
	}
	if !t.start.IsZero() {
		tick.At = t.clock.Now().Sub(t.start)
	}
	t.ticks++

	if t.tracking.Observe(t.profile, t.cfg.LostMargin, t.cfg.LostLineThreshold, value) && t.cfg.LineSearch {
		tick.Mode = ModeSearching
		found, reading, err := t.reacquire(ctx)
		if err != nil {
			return false, err
		}
		if !found {
			tick.Reflectance = reading
			tick.LostCount = t.tracking.LostCount
			t.publish(tick)
			return true, nil
		}
		value = reading
	}

	tick.Reflectance = value
	curve := CurveNone
	if t.cfg.CurveDetection {
		curve = ClassifyCurve(t.profile, t.cfg.CurveMargin, value)
	}

	var speed, turn float64
	switch curve {
	case SharpLeft, SharpRight:
		speed = t.cfg.BaseSpeed * t.cfg.SharpSpeedFactor
		turn = t.cfg.MaxTurnRate * t.cfg.SharpTurnFactor
		t.tracking.Position = PositionRight
		if curve == SharpLeft {
			turn = -turn
			t.tracking.Position = PositionLeft
		}
		t.state.Integral = 0
		tick.Error = value - t.profile.Target
		t.notifier.Notify(Event{Kind: EventSharpCurve, Value: turn})
	default:
		var out Output
		if t.cfg.Control == ControlOnOff {
			out = t.reg.OnOff(value)
		} else {
			t.state, out = t.reg.Update(t.state, value)
		}
		turn = out.TurnRate
		speed = t.speedFor(out)
		t.tracking.Position = PositionOf(t.profile, value)
		tick.Error = out.Error
		tick.Oscillating = out.Oscillating
	}

	if err := t.hw.Drive.Drive(ctx, speed, turn); err != nil {
		return false, fmt.Errorf("%w: drive: %w", ErrActuation, err)
	}

	tick.Curve = curve
	tick.Speed = speed
	tick.TurnRate = turn
	tick.Position = t.tracking.Position
	tick.LostCount = t.tracking.LostCount
	tick.Integral = t.state.Integral
	t.publish(tick)
	return false, nil
}

// reacquire runs the search sweep and, on success, discards the regulator
// memory that was built up while the line was gone.
func (t *Tracer) reacquire(ctx context.Context) (bool, float64, error) {
	t.searches++
	t.log("Line lost for %d ticks, searching (last seen %s)", t.tracking.LostCount, t.tracking.Position)

	pattern := t.cfg.SearchPattern
	if t.cfg.SearchBiased {
		pattern = NewSearchPattern(pattern, t.tracking.Position)
	}
	res, err := t.searcher.Search(ctx, pattern, t.profile.Target)
	if err != nil {
		return false, 0, fmt.Errorf("search: %w", err)
	}
	if !res.Found {
		return false, res.Reading, nil
	}

	t.log("Line found after %d pivots at %+.0f°", res.Steps, res.Angle)
	t.tracking.LostCount = 0
	t.tracking.Position = res.Position
	t.state = t.state.Reset()
	return true, res.Reading, nil
}

func (t *Tracer) speedFor(out Output) float64 {
	switch t.cfg.Speed {
	case SpeedTurnScaled:
		return t.cfg.BaseSpeed * (1 - abs(out.TurnRate)/t.cfg.MaxTurnRate*t.cfg.SpeedReduction)
	case SpeedErrorScaled:
		return max(t.cfg.BaseSpeed-abs(out.Error)*t.cfg.ErrorSpeedGain, t.cfg.MinSpeed)
	default:
		return t.cfg.BaseSpeed
	}
}

func (t *Tracer) publish(tick Tick) {
	for _, s := range t.sinks {
		s.Publish(tick)
	}
	select {
	case t.tickCh <- tick:
	default:
		// Drop old tick if channel full, replace with new
		select {
		case <-t.tickCh:
		default:
		}
		t.tickCh <- tick
	}
}
