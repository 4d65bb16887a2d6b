package tracer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHistory_Evicts(t *testing.T) {
	h := NewErrorHistory(3)
	assert.False(t, h.Full())

	for _, e := range []float64{1, 2, 3, 4, 5} {
		h.Push(e)
	}

	assert.True(t, h.Full())
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{3, 4, 5}, h.Values())
}

func TestErrorHistory_ValueSemantics(t *testing.T) {
	a := NewErrorHistory(4)
	a.Push(1)
	b := a
	b.Push(2)

	assert.Equal(t, []float64{1}, a.Values())
	assert.Equal(t, []float64{1, 2}, b.Values())
}

func TestErrorHistory_SizeClamped(t *testing.T) {
	assert.Equal(t, 1, NewErrorHistory(0).Cap())
	assert.Equal(t, MaxHistorySize, NewErrorHistory(1000).Cap())
}

func TestDetectOscillation(t *testing.T) {
	tests := []struct {
		name   string
		errors []float64
		want   bool
	}{
		{"not full", []float64{1, -1, 1, -1, 1, -1, 1, -1, 1}, false},
		{"alternating", []float64{1, -1, 1, -1, 1, -1, 1, -1, 1, -1}, true},
		{"steady", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, false},
		// 6 changes is not more than 60% of 10
		{"six changes", []float64{1, -1, 1, -1, 1, -1, 1, 1, 1, 1}, false},
		{"seven changes", []float64{1, -1, 1, -1, 1, -1, 1, -1, -1, -1}, true},
		{"zero breaks a change", []float64{1, 0, -1, 0, 1, 0, -1, 0, 1, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewErrorHistory(10)
			for _, e := range tt.errors {
				h.Push(e)
			}
			assert.Equal(t, tt.want, DetectOscillation(h, 0.6))
		})
	}
}

func testRegulator() Regulator {
	return NewRegulator(DefaultConfig(), testProfile())
}

// Scenario A: a reading sitting on the target never turns.
func TestRegulator_SteadyOnTarget(t *testing.T) {
	r := testRegulator()
	require.Equal(t, 50.0, r.Target)

	s := NewRegulatorState(10)
	for i := 0; i < 100; i++ {
		var out Output
		s, out = r.Update(s, 50)
		assert.Zero(t, out.TurnRate, "tick %d", i)
	}
	assert.Zero(t, s.Integral)
	assert.Zero(t, s.LastError)
}

// Scenario B: proportional term only.
func TestRegulator_ProportionalOnly(t *testing.T) {
	r := testRegulator()
	r.Ki, r.Kd = 0, 0

	_, out := r.Update(NewRegulatorState(10), 80)
	assert.Equal(t, 30.0, out.Error)
	assert.Equal(t, 60.0, out.TurnRate)

	r.MaxTurnRate = 40
	_, out = r.Update(NewRegulatorState(10), 80)
	assert.Equal(t, 40.0, out.TurnRate)
}

func TestRegulator_Terms(t *testing.T) {
	r := testRegulator()
	s := NewRegulatorState(10)

	s, out := r.Update(s, 60) // e=10
	assert.InDelta(t, 20.0, out.P, 1e-9)
	assert.InDelta(t, 0.2, out.I, 1e-9) // 0.02 * 10
	assert.InDelta(t, 8.0, out.D, 1e-9) // 0.8 * (10 - 0)
	assert.InDelta(t, 28.2, out.TurnRate, 1e-9)

	s, out = r.Update(s, 55) // e=5
	assert.InDelta(t, 15.0, s.Integral, 1e-9)
	assert.InDelta(t, -4.0, out.D, 1e-9)
	assert.InDelta(t, 10+0.3-4, out.TurnRate, 1e-9)
	assert.Equal(t, 5.0, s.LastError)
}

func TestRegulator_Clamps(t *testing.T) {
	r := testRegulator()
	rng := rand.New(rand.NewSource(42))
	s := NewRegulatorState(10)

	for i := 0; i < 5000; i++ {
		var out Output
		s, out = r.Update(s, rng.Float64()*100)
		require.LessOrEqual(t, math.Abs(s.Integral), r.IntegralLimit, "tick %d", i)
		require.LessOrEqual(t, math.Abs(out.TurnRate), r.MaxTurnRate, "tick %d", i)
	}

	// Sustained error saturates rather than winding up.
	s = NewRegulatorState(10)
	for i := 0; i < 1000; i++ {
		s, _ = r.Update(s, 100)
	}
	assert.Equal(t, r.IntegralLimit, s.Integral)

	r.Kp = 100
	_, out := r.Update(s, 0)
	assert.Equal(t, -r.MaxTurnRate, out.TurnRate)
}

func TestRegulator_OscillationHalvesOncePerTick(t *testing.T) {
	r := testRegulator()
	s := NewRegulatorState(10)

	// Alternate +20/-20 around the target: 70, 30, 70, ...
	for i := 0; i < 9; i++ {
		value := 70.0
		if i%2 == 1 {
			value = 30
		}
		var out Output
		s, out = r.Update(s, value)
		assert.False(t, out.Oscillating, "tick %d", i)
	}
	before := s.Integral // +20 after nine alternating errors

	s, out := r.Update(s, 30) // tenth error fills the history
	require.True(t, out.Oscillating)
	assert.InDelta(t, (before-20)*0.5, s.Integral, 1e-9)

	before = s.Integral
	s, out = r.Update(s, 70)
	require.True(t, out.Oscillating)
	assert.InDelta(t, (before+20)*0.5, s.Integral, 1e-9)
}

func TestRegulator_DampingDisabled(t *testing.T) {
	r := testRegulator()
	r.Damping = false
	s := NewRegulatorState(10)

	for i := 0; i < 20; i++ {
		value := 70.0
		if i%2 == 1 {
			value = 30
		}
		var out Output
		s, out = r.Update(s, value)
		assert.False(t, out.Oscillating)
	}
	assert.Zero(t, s.Integral)
}

func TestRegulatorState_Reset(t *testing.T) {
	r := testRegulator()
	s := NewRegulatorState(7)
	s, _ = r.Update(s, 80)
	s, _ = r.Update(s, 20)

	s = s.Reset()
	assert.Zero(t, s.Integral)
	assert.Zero(t, s.LastError)
	assert.Zero(t, s.History.Len())
	assert.Equal(t, 7, s.History.Cap())
}

func TestRegulator_OnOff(t *testing.T) {
	r := testRegulator()

	assert.Equal(t, -100.0, r.OnOff(20).TurnRate)
	assert.Equal(t, 100.0, r.OnOff(80).TurnRate)
	assert.Equal(t, 100.0, r.OnOff(50).TurnRate)
}
