package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfile(t *testing.T) {
	p, err := NewProfile(90, 10, 5, 0.3)
	require.NoError(t, err)

	assert.Equal(t, 15.0, p.BlackThreshold)
	assert.Equal(t, 85.0, p.WhiteThreshold)
	assert.Equal(t, 50.0, p.Target)
	assert.InDelta(t, 21.0, p.GrayZone, 1e-9)
}

func TestNewProfile_Monotonic(t *testing.T) {
	for black := 0.0; black <= 100; black += 2.5 {
		for white := black + 10.5; white <= 100; white += 2.5 {
			p, err := NewProfile(white, black, 5, 0.3)
			require.NoError(t, err, "black=%v white=%v", black, white)
			assert.Less(t, p.BlackThreshold, p.Target, "black=%v white=%v", black, white)
			assert.Less(t, p.Target, p.WhiteThreshold, "black=%v white=%v", black, white)
		}
	}
}

func TestNewProfile_Rejects(t *testing.T) {
	tests := []struct {
		name         string
		white, black float64
	}{
		{"inverted", 10, 90},
		{"equal", 50, 50},
		{"within margin", 55, 46},
		{"exactly twice the margin", 60, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfile(tt.white, tt.black, 5, 0.3)
			assert.ErrorIs(t, err, ErrCalibration)
		})
	}
}

func TestProfile_Classify(t *testing.T) {
	p := testProfile()

	tests := []struct {
		value float64
		want  Surface
	}{
		{5, SurfaceBlack},
		{14.9, SurfaceBlack},
		{15, SurfaceGray},
		{50, SurfaceGray},
		{85, SurfaceGray},
		{85.1, SurfaceWhite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(tt.value), "value %v", tt.value)
	}
}

func TestCalibrate(t *testing.T) {
	sensor := &scriptSensor{values: []float64{91, 90, 11, 10}}
	// white: released, pressed; black: released, pressed
	button := &scriptButton{states: []bool{false, true, false, true}}
	var events eventLog
	clock := newFakeClock()
	cfg := DefaultConfig()

	p, err := Calibrate(context.Background(), sensor, button, &events, clock, cfg)
	require.NoError(t, err)

	assert.Equal(t, 15.0, p.BlackThreshold)
	assert.Equal(t, 85.0, p.WhiteThreshold)
	assert.Equal(t, 50.0, p.Target)
	assert.Equal(t, 2, clock.sleeps)
	assert.Equal(t, EventCalibrateWhite, events[0])
	assert.True(t, events.has(EventCalibrateBlack))
	assert.Equal(t, EventCalibrated, events[len(events)-1])
}

func TestCalibrate_WaitsForRelease(t *testing.T) {
	// The button is still held from the previous press, so the first
	// pressed poll of each phase must not count.
	sensor := &scriptSensor{values: []float64{70, 71, 80, 20, 21, 12}}
	button := &scriptButton{states: []bool{true, false, true, true, false, true}}

	p, err := Calibrate(context.Background(), sensor, button, nil, newFakeClock(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 75.0, p.WhiteThreshold) // 80 - 5
	assert.Equal(t, 17.0, p.BlackThreshold) // 12 + 5
}

func TestCalibrate_Inverted(t *testing.T) {
	sensor := &scriptSensor{values: []float64{10, 10, 90, 90}}
	button := &scriptButton{states: []bool{false, true, false, true}}
	var events eventLog

	_, err := Calibrate(context.Background(), sensor, button, &events, newFakeClock(), DefaultConfig())
	assert.ErrorIs(t, err, ErrCalibration)
	assert.True(t, events.has(EventCalibrationFailed))
	assert.False(t, events.has(EventCalibrated))
}

func TestCalibrate_SensorError(t *testing.T) {
	boom := errors.New("i2c nack")
	sensor := &scriptSensor{err: boom}

	_, err := Calibrate(context.Background(), sensor, &scriptButton{}, nil, newFakeClock(), DefaultConfig())
	assert.ErrorIs(t, err, boom)
}

func TestCalibrate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sensor := &scriptSensor{values: []float64{50}}
	_, err := Calibrate(ctx, sensor, &scriptButton{}, nil, newFakeClock(), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForConfirm(t *testing.T) {
	// Still held from the calibration press, then released and pressed.
	sensor := &scriptSensor{values: []float64{48}}
	button := &scriptButton{states: []bool{true, false, true}}
	var events eventLog
	clock := newFakeClock()

	err := WaitForConfirm(context.Background(), sensor, button, &events, clock, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, button.polls)
	assert.Equal(t, 2, clock.sleeps)
	assert.Equal(t, eventLog{EventSample, EventSample, EventSample}, events)
}

func TestWaitForConfirm_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForConfirm(ctx, &scriptSensor{values: []float64{50}}, &scriptButton{}, nil, newFakeClock(), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUncalibratedProfile(t *testing.T) {
	onoff, err := Preset(LevelOnOff)
	require.NoError(t, err)
	p := UncalibratedProfile(onoff)
	assert.Equal(t, 50.0, p.Target)
	assert.Equal(t, SurfaceBlack, p.Classify(5))
	assert.Equal(t, SurfaceWhite, p.Classify(95))

	// The fixed threshold splits readings at 50% on the on/off regulator.
	reg := NewRegulator(onoff, p)
	assert.Negative(t, reg.OnOff(49).TurnRate*reg.OnOff(51).TurnRate)

	_, err = New(onoff, p, Hardware{Sensor: &scriptSensor{}, Drive: &recordingDrive{}, Stop: &scriptButton{}})
	assert.NoError(t, err)

	pid, err := Preset(LevelPID)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), UncalibratedProfile(pid))
}
