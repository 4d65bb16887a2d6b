package tracer

import (
	"context"
	"time"
)

// scriptSensor returns values in order and repeats the last one.
type scriptSensor struct {
	values []float64
	reads  int
	err    error
}

func (s *scriptSensor) Reflectance(ctx context.Context) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	i := min(s.reads, len(s.values)-1)
	s.reads++
	return s.values[i], nil
}

// scriptButton reports presses in order and repeats the last state.
type scriptButton struct {
	states []bool
	polls  int
}

func (b *scriptButton) Pressed() (bool, error) {
	if len(b.states) == 0 {
		b.polls++
		return false, nil
	}
	i := min(b.polls, len(b.states)-1)
	b.polls++
	return b.states[i], nil
}

// pressAfter is released for n polls and pressed afterwards.
func pressAfter(n int) *scriptButton {
	states := make([]bool, n+1)
	states[n] = true
	return &scriptButton{states: states}
}

type driveCmd struct {
	speed, turn float64
}

type recordingDrive struct {
	drives   []driveCmd
	turns    []float64
	stops    int
	driveErr error
	turnErr  error
	stopErr  error
	panicOn  int // panic on the nth Drive call when > 0
}

func (d *recordingDrive) Drive(ctx context.Context, speed, turn float64) error {
	d.drives = append(d.drives, driveCmd{speed, turn})
	if d.panicOn > 0 && len(d.drives) == d.panicOn {
		panic("motor controller exploded")
	}
	return d.driveErr
}

func (d *recordingDrive) Turn(ctx context.Context, angle float64) error {
	d.turns = append(d.turns, angle)
	return d.turnErr
}

func (d *recordingDrive) Stop(ctx context.Context) error {
	d.stops++
	return d.stopErr
}

func (d *recordingDrive) last() driveCmd {
	return d.drives[len(d.drives)-1]
}

type fakeClock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
	return nil
}

type eventLog []EventKind

func (l *eventLog) Notify(ev Event) { *l = append(*l, ev.Kind) }

func (l eventLog) has(k EventKind) bool {
	for _, e := range l {
		if e == k {
			return true
		}
	}
	return false
}

type tickRecorder []Tick

func (r *tickRecorder) Publish(t Tick) { *r = append(*r, t) }

// testProfile is the profile of a 10% line on a 90% floor.
func testProfile() Profile {
	p, err := NewProfile(90, 10, 5, 0.3)
	if err != nil {
		panic(err)
	}
	return p
}
