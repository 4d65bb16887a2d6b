package robot

import "math"

// StepsPerRev is the encoder resolution of an STS servo.
const StepsPerRev = 4096

// MotorCalibration holds calibration data for a single wheel servo.
type MotorCalibration struct {
	ID int `json:"id"`
	// DriveMode 1 inverts the direction, for the wheel mounted mirrored.
	DriveMode int `json:"drive_mode"`
}

// Calibration holds calibration data for both wheels, keyed by wheel name.
type Calibration map[WheelName]MotorCalibration

// DefaultCalibration is the stock wiring: left wheel ID 1 mounted
// mirrored, right wheel ID 2.
func DefaultCalibration() Calibration {
	return Calibration{
		LeftWheel:  {ID: 1, DriveMode: 1},
		RightWheel: {ID: 2},
	}
}

// Steps converts a wheel travel in mm to servo steps for a wheel of the
// given diameter, honoring the drive mode.
func (c MotorCalibration) Steps(mm, wheelDiameter float64) int {
	if wheelDiameter <= 0 {
		return 0
	}
	steps := int(math.Round(mm / (math.Pi * wheelDiameter) * StepsPerRev))
	if c.DriveMode == 1 {
		steps = -steps
	}
	return steps
}

// MotorIDs returns the servo IDs for all wheels in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllWheels() to ensure consistent ordering
	for _, name := range AllWheels() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns wheel name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (WheelName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}

// SensorRange maps raw ADC counts of the reflectance sensor to percent.
// RangeMin is the darkest raw reading, RangeMax the brightest.
type SensorRange struct {
	RangeMin int `json:"range_min"`
	RangeMax int `json:"range_max"`
}

// Normalize converts a raw reading to a reflectance in [0, 100].
func (r SensorRange) Normalize(raw int) float64 {
	rangeSize := float64(r.RangeMax - r.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	pct := float64(raw-r.RangeMin) / rangeSize * 100
	return math.Max(0, math.Min(100, pct))
}

// Denormalize converts a reflectance in percent back to raw counts.
func (r SensorRange) Denormalize(pct float64) int {
	rangeSize := float64(r.RangeMax - r.RangeMin)
	return int(math.Round(pct/100*rangeSize)) + r.RangeMin
}

// Valid reports whether the range spans at least one count.
func (r SensorRange) Valid() bool {
	return r.RangeMax != r.RangeMin
}
