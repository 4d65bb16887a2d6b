package robot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Geometry describes the differential drive in mm.
type Geometry struct {
	WheelDiameter float64
	AxleTrack     float64
}

// WheelSpeeds splits a forward speed (mm/s) and a clockwise turn rate
// (deg/s) into left and right wheel speeds in mm/s.
func (g Geometry) WheelSpeeds(speed, turnRate float64) (left, right float64) {
	w := turnRate * math.Pi / 180 * g.AxleTrack / 2
	return speed + w, speed - w
}

// SpinTravel returns how far each wheel travels, in mm, to rotate the
// robot in place by angle degrees. The left wheel moves forward for a
// positive (clockwise) angle, the right wheel backward by the same amount.
func (g Geometry) SpinTravel(angle float64) float64 {
	return angle / 360 * math.Pi * g.AxleTrack
}

// Drive base tuning.
const (
	// Goal velocity is sign-magnitude with the sign in bit 15.
	velocitySignBit   = 1 << 15
	maxGoalVelocity   = velocitySignBit - 1 // steps/s
	defaultPivotSpeed = 100                 // mm/s per wheel during Turn
)

// WheelBase drives two feetech servos in wheel (velocity) mode. Drive
// writes the goal velocity of both wheels in one sync write; Turn pivots
// at PivotSpeed for the time the requested angle takes.
type WheelBase struct {
	bus         *feetech.Bus
	calibration Calibration
	geometry    Geometry

	// PivotSpeed is the wheel speed in mm/s used by Turn.
	PivotSpeed float64

	mu    sync.Mutex
	sleep func(context.Context, time.Duration) error
}

// NewWheelBase creates and initializes a wheel base connection.
func NewWheelBase(cfg WheelsConfig) (*WheelBase, error) {
	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	return newWheelBase(bus, cfg), nil
}

func newWheelBase(bus *feetech.Bus, cfg WheelsConfig) *WheelBase {
	return &WheelBase{
		bus:         bus,
		calibration: cfg.Calibration,
		geometry:    Geometry{WheelDiameter: cfg.WheelDiameter, AxleTrack: cfg.AxleTrack},
		PivotSpeed:  defaultPivotSpeed,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the bus connection.
func (w *WheelBase) Close() error {
	return w.bus.Close()
}

// Enable switches both wheels to wheel mode and enables torque. The
// operating mode can only be changed with torque off and the EEPROM
// unlocked.
func (w *WheelBase) Enable(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	steps := []struct {
		name  string
		reg   feetech.Register
		value byte
	}{
		{"disable torque", feetech.RegTorqueEnable, 0},
		{"unlock", feetech.RegLock, 0},
		{"wheel mode", feetech.RegOperatingMode, feetech.ModeVelocity},
		{"enable torque", feetech.RegTorqueEnable, 1},
	}
	for _, s := range steps {
		if err := w.writeByte(ctx, s.reg, s.value); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return w.setSpeeds(ctx, 0, 0)
}

// Disable stops the wheels, releases torque and puts the servos back in
// position mode.
func (w *WheelBase) Disable(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.setSpeeds(ctx, 0, 0); err != nil {
		return err
	}
	if err := w.writeByte(ctx, feetech.RegTorqueEnable, 0); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	if err := w.writeByte(ctx, feetech.RegOperatingMode, feetech.ModePosition); err != nil {
		return fmt.Errorf("position mode: %w", err)
	}
	return nil
}

// Drive implements tracer.DriveBase.
func (w *WheelBase) Drive(ctx context.Context, speed, turnRate float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	left, right := w.geometry.WheelSpeeds(speed, turnRate)
	return w.setSpeeds(ctx, left, right)
}

// Turn implements tracer.DriveBase. It pivots in place for as long as
// the angle takes at PivotSpeed and stops the wheels before returning,
// also when ctx is cancelled.
func (w *WheelBase) Turn(ctx context.Context, angle float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	travel := w.geometry.SpinTravel(angle)
	if travel == 0 || w.PivotSpeed <= 0 {
		return w.setSpeeds(ctx, 0, 0)
	}
	pivot := math.Copysign(w.PivotSpeed, travel)
	if err := w.setSpeeds(ctx, pivot, -pivot); err != nil {
		return err
	}

	d := time.Duration(math.Abs(travel) / w.PivotSpeed * float64(time.Second))
	sleepErr := w.sleep(ctx, d)
	if err := w.setSpeeds(context.Background(), 0, 0); err != nil {
		return err
	}
	if sleepErr != nil {
		return fmt.Errorf("turn %.0f: %w", angle, sleepErr)
	}
	return nil
}

// Stop implements tracer.DriveBase.
func (w *WheelBase) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.setSpeeds(ctx, 0, 0)
}

// velocities converts wheel speeds in mm/s to goal velocities in
// steps/s keyed by servo ID.
func (w *WheelBase) velocities(left, right float64) map[int]int {
	speeds := map[WheelName]float64{LeftWheel: left, RightWheel: right}
	out := make(map[int]int, len(w.calibration))
	for name, mmps := range speeds {
		cal, ok := w.calibration[name]
		if !ok {
			continue
		}
		v := cal.Steps(mmps, w.geometry.WheelDiameter)
		out[cal.ID] = max(-maxGoalVelocity, min(maxGoalVelocity, v))
	}
	return out
}

// encodeVelocity returns the sign-magnitude register value of v.
func encodeVelocity(v int) uint16 {
	if v < 0 {
		return uint16(-v) | velocitySignBit
	}
	return uint16(v)
}

func (w *WheelBase) setSpeeds(ctx context.Context, left, right float64) error {
	proto := w.bus.Protocol()
	data := make(map[int][]byte, 2)
	for id, v := range w.velocities(left, right) {
		data[id] = proto.EncodeWord(encodeVelocity(v))
	}
	reg := feetech.RegGoalVelocity
	if err := w.bus.SyncWrite(ctx, reg.Address, reg.Size, data); err != nil {
		return fmt.Errorf("write velocities: %w", err)
	}
	return nil
}

func (w *WheelBase) writeByte(ctx context.Context, reg feetech.Register, value byte) error {
	data := make(map[int][]byte, len(w.calibration))
	for _, id := range w.calibration.MotorIDs() {
		data[id] = []byte{value}
	}
	return w.bus.SyncWrite(ctx, reg.Address, 1, data)
}
