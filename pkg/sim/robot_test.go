package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linetrace/pkg/tracer"
)

func TestRobot_PlacedOnEdge(t *testing.T) {
	r := New(Line(2000, 20), DefaultOptions())
	ctx := context.Background()

	assert.Equal(t, Point{0, 10}, r.SensorPoint())
	v, err := r.Reflectance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	r.Place(30)
	v, _ = r.Reflectance(ctx)
	assert.Equal(t, 95.0, v, "floor")

	r.Place(-10)
	v, _ = r.Reflectance(ctx)
	assert.Equal(t, 5.0, v, "line center")
}

func TestRobot_Kinematics(t *testing.T) {
	r := New(Line(2000, 20), DefaultOptions())
	ctx := context.Background()

	require.NoError(t, r.Drive(ctx, 100, 0))
	require.NoError(t, r.Sleep(ctx, time.Second))
	assert.InDelta(t, 100-30, r.Pose().X, 1e-9)
	assert.InDelta(t, 100, r.Odometer(), 1e-9)
	assert.Equal(t, time.Second, r.Elapsed())

	// Positive turn rate is clockwise: a quarter turn to the right.
	require.NoError(t, r.Drive(ctx, 0, 90))
	require.NoError(t, r.Sleep(ctx, time.Second))
	assert.InDelta(t, -math.Pi/2, r.Pose().Heading, 1e-9)

	require.NoError(t, r.Turn(ctx, -90))
	assert.InDelta(t, 0, r.Pose().Heading, 1e-9)
	assert.Equal(t, 1, r.Turns())
	assert.Equal(t, 2*time.Second+250*time.Millisecond, r.Elapsed())

	require.NoError(t, r.Stop(ctx))
	before := r.Pose()
	require.NoError(t, r.Sleep(ctx, time.Second))
	assert.Equal(t, before, r.Pose())
}

func TestRobot_SleepCancelled(t *testing.T) {
	r := New(Line(100, 20), DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Sleep(ctx, time.Millisecond), context.Canceled)
	assert.Zero(t, r.Elapsed())
}

func TestRobot_NoiseIsSeeded(t *testing.T) {
	opts := DefaultOptions()
	opts.Noise = 2
	opts.Seed = 7
	a, b := New(Line(100, 20), opts), New(Line(100, 20), opts)

	for i := 0; i < 20; i++ {
		va, _ := a.Reflectance(context.Background())
		vb, _ := b.Reflectance(context.Background())
		require.Equal(t, va, vb)
	}
}

func TestRobot_StopAfter(t *testing.T) {
	r := New(Line(100, 20), DefaultOptions())
	stop := r.StopAfter(10 * time.Millisecond)

	pressed, _ := stop.Pressed()
	assert.False(t, pressed)
	require.NoError(t, r.Sleep(context.Background(), 10*time.Millisecond))
	pressed, _ = stop.Pressed()
	assert.True(t, pressed)
}

func newSimTracer(t *testing.T, r *Robot, cfg tracer.Config, d time.Duration) *tracer.Tracer {
	t.Helper()
	profile, err := r.Profile(cfg.CalibrationMargin, cfg.GrayZoneRatio)
	require.NoError(t, err)
	tr, err := tracer.New(cfg, profile, r.Hardware(r.StopAfter(d), nil))
	require.NoError(t, err)
	return tr
}

func TestTracer_StraightOnEdge(t *testing.T) {
	r := New(Line(2000, 20), DefaultOptions())
	tr := newSimTracer(t, r, tracer.DefaultConfig(), 2*time.Second)

	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tracer.OutcomeStopped, res.Outcome)
	assert.Equal(t, 400, res.Ticks)
	assert.Zero(t, res.Regulator.LastError)
	assert.Zero(t, r.Turns())
	assert.InDelta(t, 300, r.Odometer(), 1e-6)
	assert.InDelta(t, 10, r.SensorPoint().Y, 1e-9)
}

func TestTracer_FullLapOnOval(t *testing.T) {
	track := Oval(600, 200, 20)
	r := New(track, DefaultOptions())
	tr := newSimTracer(t, r, tracer.DefaultConfig(), 20*time.Second)

	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tracer.OutcomeStopped, res.Outcome)
	assert.Zero(t, res.Searches)
	assert.Greater(t, r.Odometer(), track.Length())
	assert.Less(t, track.Distance(r.SensorPoint()), track.Width)
}

func TestTracer_LosesLineOffTrack(t *testing.T) {
	r := New(Line(2000, 20), DefaultOptions())
	r.Place(100)

	cfg := tracer.DefaultConfig()
	cfg.LostMargin = 2 // below the floor reading
	tr := newSimTracer(t, r, cfg, time.Minute)

	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tracer.OutcomeLineLost, res.Outcome)
	assert.Equal(t, 6, res.Ticks)
	assert.Equal(t, len(cfg.SearchPattern), r.Turns())
}
