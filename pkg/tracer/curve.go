package tracer

import "fmt"

// Curve is the result of sharp-curve classification.
type Curve int

const (
	CurveNone Curve = iota
	SharpLeft
	SharpRight
)

func (c Curve) String() string {
	switch c {
	case SharpLeft:
		return "sharp_left"
	case SharpRight:
		return "sharp_right"
	default:
		return "none"
	}
}

// ClassifyCurve flags readings within margin of either threshold.
// Left wins when the two regions overlap.
func ClassifyCurve(p Profile, margin, value float64) Curve {
	switch {
	case value < p.BlackThreshold+margin:
		return SharpLeft
	case value > p.WhiteThreshold-margin:
		return SharpRight
	default:
		return CurveNone
	}
}

// LinePosition is the last known side of the line relative to the sensor.
type LinePosition int

const (
	PositionLeft   LinePosition = -1
	PositionCenter LinePosition = 0
	PositionRight  LinePosition = 1
)

func (p LinePosition) String() string {
	switch p {
	case PositionLeft:
		return "left"
	case PositionRight:
		return "right"
	default:
		return "center"
	}
}

// PositionOf places value against the profile's gray zone.
func PositionOf(p Profile, value float64) LinePosition {
	switch {
	case abs(value-p.Target) < p.GrayZone:
		return PositionCenter
	case value < p.Target:
		return PositionLeft
	default:
		return PositionRight
	}
}

// LineTracking is the loss counter and last known line side.
type LineTracking struct {
	Position  LinePosition
	LostCount int
}

// Observe updates the loss counter for value and reports whether the
// line has now been missing for more than threshold ticks.
func (t *LineTracking) Observe(p Profile, lostMargin float64, threshold int, value float64) bool {
	if value > p.WhiteThreshold+lostMargin {
		t.LostCount++
		return t.LostCount > threshold
	}
	t.LostCount = 0
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (c Curve) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (p LinePosition) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (c *Curve) UnmarshalText(b []byte) error {
	for _, v := range []Curve{CurveNone, SharpLeft, SharpRight} {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown curve %q", b)
}

func (p *LinePosition) UnmarshalText(b []byte) error {
	for _, v := range []LinePosition{PositionLeft, PositionCenter, PositionRight} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown line position %q", b)
}
