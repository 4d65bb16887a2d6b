package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrack_Distance(t *testing.T) {
	tr := Line(1000, 20)

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"on line", Point{500, 0}, 0},
		{"left of line", Point{500, 12}, 12},
		{"right of line", Point{200, -7}, 7},
		{"before start", Point{-30, 40}, 50},
		{"after end", Point{1003, 4}, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tr.Distance(tt.p), 1e-9, tt.name)
	}
}

func TestTrack_Oval(t *testing.T) {
	tr := Oval(600, 200, 20)

	assert.True(t, tr.Closed)
	assert.InDelta(t, 1200+2*math.Pi*200, tr.Length(), 5, "polyline approximates the arcs")

	origin, dir := tr.Start()
	assert.Equal(t, Point{0, -200}, origin)
	assert.InDelta(t, 1, dir.X, 1e-9)

	assert.InDelta(t, 0, tr.Distance(Point{300 + 200, 0}), 1e-9, "apex of the right arc")
	assert.InDelta(t, 200, tr.Distance(Point{0, 0}), 1e-9, "center is a straight away")
}

func TestCoverage(t *testing.T) {
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1},
		{6, 1},
		{10, 0.5},
		{14, 0},
		{40, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Coverage(tt.d, 20, 8), 1e-9, "d=%v", tt.d)
	}

	assert.Equal(t, 1.0, Coverage(10, 20, 0))
	assert.Equal(t, 0.0, Coverage(10.1, 20, 0))
}
