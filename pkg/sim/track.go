// Package sim is a kinematic simulator of a single-sensor line tracer.
// A Robot implements the sensor, drive base and clock the tracer
// package drives, so a full run can be replayed without hardware.
package sim

import "math"

// Point is a position on the floor in mm.
type Point struct {
	X, Y float64
}

func (p Point) add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) scale(f float64) Point { return Point{p.X * f, p.Y * f} }
func (p Point) dot(q Point) float64   { return p.X*q.X + p.Y*q.Y }
func (p Point) norm() float64         { return math.Hypot(p.X, p.Y) }
func (p Point) dist(q Point) float64  { return p.sub(q).norm() }
func (p Point) left() Point           { return Point{-p.Y, p.X} }
func (p Point) unit() Point           { return p.scale(1 / p.norm()) }
func polar(r, a float64) Point        { return Point{r * math.Cos(a), r * math.Sin(a)} }
func (p Point) angle() float64        { return math.Atan2(p.Y, p.X) }

// Track is a dark line of constant width along a polyline.
type Track struct {
	Points []Point
	Closed bool
	Width  float64
}

const arcSegments = 36

// Oval returns a closed track of two straights joined by half circles,
// driven counter-clockwise from the middle of the bottom straight.
func Oval(straight, radius, width float64) Track {
	h := straight / 2
	pts := make([]Point, 0, 2*arcSegments+3)
	pts = append(pts, Point{0, -radius})
	for i := 0; i <= arcSegments; i++ {
		a := -math.Pi/2 + math.Pi*float64(i)/arcSegments
		pts = append(pts, Point{h, 0}.add(polar(radius, a)))
	}
	for i := 0; i <= arcSegments; i++ {
		a := math.Pi/2 + math.Pi*float64(i)/arcSegments
		pts = append(pts, Point{-h, 0}.add(polar(radius, a)))
	}
	return Track{Points: pts, Closed: true, Width: width}
}

// Line returns an open straight track along the x axis.
func Line(length, width float64) Track {
	return Track{Points: []Point{{0, 0}, {length, 0}}, Width: width}
}

func (t Track) segments(fn func(a, b Point)) {
	n := len(t.Points)
	m := n - 1
	if t.Closed {
		m = n
	}
	for i := 0; i < m; i++ {
		fn(t.Points[i], t.Points[(i+1)%n])
	}
}

// Distance returns the shortest distance from p to the track center line.
func (t Track) Distance(p Point) float64 {
	best := math.Inf(1)
	if len(t.Points) == 1 {
		return p.dist(t.Points[0])
	}
	t.segments(func(a, b Point) {
		ab := b.sub(a)
		l2 := ab.dot(ab)
		f := 0.0
		if l2 > 0 {
			f = math.Max(0, math.Min(1, p.sub(a).dot(ab)/l2))
		}
		best = math.Min(best, p.dist(a.add(ab.scale(f))))
	})
	return best
}

// Length returns the length of the center line.
func (t Track) Length() float64 {
	var l float64
	t.segments(func(a, b Point) { l += a.dist(b) })
	return l
}

// Start returns the first point of the track and the unit direction of
// travel from it.
func (t Track) Start() (Point, Point) {
	if len(t.Points) < 2 {
		return Point{}, Point{1, 0}
	}
	return t.Points[0], t.Points[1].sub(t.Points[0]).unit()
}
