package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gwillem/linetrace/pkg/tracer"
)

// Options describe the simulated robot.
type Options struct {
	SensorOffset float64 // mm ahead of the axle
	SpotSize     float64 // mm, diameter of the sensed spot
	Black        float64 // reflectance over the line, percent
	White        float64 // reflectance over the floor, percent
	Noise        float64 // standard deviation of the reading, percent
	Seed         int64
	PivotRate    float64       // deg/s used to time in-place turns
	Step         time.Duration // physics integration step
	// Realtime makes Sleep also wait on the wall clock, for live display.
	Realtime bool
}

// DefaultOptions returns a robot roughly matching the reference build.
func DefaultOptions() Options {
	return Options{
		SensorOffset: 30,
		SpotSize:     8,
		Black:        5,
		White:        95,
		PivotRate:    360,
		Step:         time.Millisecond,
	}
}

// Pose is the axle center and heading (radians, counter-clockwise from
// the x axis).
type Pose struct {
	X, Y, Heading float64
}

// Robot is a differential-drive robot on a Track. It implements
// tracer.Sensor, tracer.DriveBase and tracer.Clock; time only advances
// through Sleep and Turn.
type Robot struct {
	track Track
	opts  Options

	mu       sync.Mutex
	rng      *rand.Rand
	pose     Pose
	speed    float64
	turnRate float64
	start    time.Time
	now      time.Time
	odometer float64
	turns    int
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// New places a robot at the start of track with the sensor on the left
// edge of the line, the point where the reading equals the set point.
func New(track Track, opts Options) *Robot {
	if opts.Step <= 0 {
		opts.Step = time.Millisecond
	}
	if opts.PivotRate <= 0 {
		opts.PivotRate = 360
	}
	r := &Robot{
		track: track,
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		start: epoch,
		now:   epoch,
	}
	r.Place(0)
	return r
}

// Place moves the robot back to the start of the track, shifting the
// sensor lateral mm further left of the line edge (negative moves it
// onto the line), and stops it.
func (r *Robot) Place(lateral float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	origin, dir := r.track.Start()
	sensor := origin.add(dir.left().scale(r.track.Width/2 + lateral))
	axle := sensor.sub(dir.scale(r.opts.SensorOffset))
	r.pose = Pose{X: axle.X, Y: axle.Y, Heading: dir.angle()}
	r.speed, r.turnRate = 0, 0
}

// Pose returns the current pose.
func (r *Robot) Pose() Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pose
}

// Odometer returns the distance driven in mm, pivots excluded.
func (r *Robot) Odometer() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.odometer
}

// Turns returns how many in-place turns were made.
func (r *Robot) Turns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns
}

// Elapsed returns the simulated time since New.
func (r *Robot) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now.Sub(r.start)
}

// SensorPoint returns where the sensor currently looks.
func (r *Robot) SensorPoint() Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sensorPoint()
}

func (r *Robot) sensorPoint() Point {
	return Point{r.pose.X, r.pose.Y}.add(polar(r.opts.SensorOffset, r.pose.Heading))
}

// Coverage returns how much of a spot of the given size at distance d
// from the center line lies over a line of the given width, in [0, 1].
func Coverage(d, width, spot float64) float64 {
	if spot <= 0 {
		if d <= width/2 {
			return 1
		}
		return 0
	}
	return math.Max(0, math.Min(1, (width/2+spot/2-d)/spot))
}

// Reflectance implements tracer.Sensor.
func (r *Robot) Reflectance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.track.Distance(r.sensorPoint())
	v := r.opts.White - (r.opts.White-r.opts.Black)*Coverage(d, r.track.Width, r.opts.SpotSize)
	if r.opts.Noise > 0 {
		v += r.rng.NormFloat64() * r.opts.Noise
	}
	return math.Max(0, math.Min(100, v)), nil
}

// Drive implements tracer.DriveBase.
func (r *Robot) Drive(ctx context.Context, speed, turnRate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed, r.turnRate = speed, turnRate
	return nil
}

// Turn implements tracer.DriveBase. The pivot is applied at once and
// the clock advances by the time it would take at PivotRate.
func (r *Robot) Turn(ctx context.Context, angle float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.pose.Heading -= angle * math.Pi / 180
	r.speed, r.turnRate = 0, 0
	r.turns++
	d := time.Duration(math.Abs(angle) / r.opts.PivotRate * float64(time.Second))
	r.now = r.now.Add(d)
	r.mu.Unlock()

	if r.opts.Realtime {
		return tracer.RealClock{}.Sleep(ctx, d)
	}
	return nil
}

// Stop implements tracer.DriveBase.
func (r *Robot) Stop(ctx context.Context) error {
	return r.Drive(ctx, 0, 0)
}

// Now implements tracer.Clock.
func (r *Robot) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Sleep implements tracer.Clock by integrating the motion over d.
func (r *Robot) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	r.mu.Lock()
	steps := int(math.Max(1, math.Round(float64(d)/float64(r.opts.Step))))
	h := d.Seconds() / float64(steps)
	for i := 0; i < steps; i++ {
		r.pose.Heading -= r.turnRate * math.Pi / 180 * h
		r.pose.X += r.speed * math.Cos(r.pose.Heading) * h
		r.pose.Y += r.speed * math.Sin(r.pose.Heading) * h
		r.odometer += math.Abs(r.speed) * h
	}
	r.now = r.now.Add(d)
	r.mu.Unlock()

	if r.opts.Realtime {
		return tracer.RealClock{}.Sleep(ctx, d)
	}
	return nil
}

// Profile returns the calibration the robot would measure with the
// sensor fully over the floor and fully over the line.
func (r *Robot) Profile(margin, grayRatio float64) (tracer.Profile, error) {
	return tracer.NewProfile(r.opts.White, r.opts.Black, margin, grayRatio)
}

// StopAfter returns a stop button that reads pressed once d of
// simulated time has passed.
func (r *Robot) StopAfter(d time.Duration) tracer.Button {
	deadline := r.Now().Add(d)
	return buttonFunc(func() bool { return !r.Now().Before(deadline) })
}

// Hardware bundles the robot with a stop button for tracer.New.
func (r *Robot) Hardware(stop tracer.Button, n tracer.Notifier) tracer.Hardware {
	return tracer.Hardware{
		Sensor:   r,
		Drive:    r,
		Stop:     stop,
		Notifier: n,
		Clock:    r,
	}
}

type buttonFunc func() bool

func (f buttonFunc) Pressed() (bool, error) { return f(), nil }
