// Package robot provides the hardware behind a line-tracing robot: a
// pair of feetech wheel servos, an analog reflectance sensor on an
// ADS1115, and a button/display/buzzer panel on GPIO and I2C.
package robot

// WheelName identifies a drive wheel.
type WheelName string

// Wheel names of the differential drive.
const (
	LeftWheel  WheelName = "left"
	RightWheel WheelName = "right"
)

// AllWheels returns all wheel names in order (matching servo IDs 1-2).
func AllWheels() []WheelName {
	return []WheelName{
		LeftWheel,
		RightWheel,
	}
}
