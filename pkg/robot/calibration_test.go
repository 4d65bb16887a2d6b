package robot

import (
	"math"
	"testing"
)

func TestSensorRange_Normalize(t *testing.T) {
	r := SensorRange{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, 0.0},   // min -> 0
		{3000, 100.0}, // max -> 100
		{2000, 50.0},  // mid -> 50
		{1500, 25.0},  // quarter -> 25
		{500, 0.0},    // below range clamps
		{3500, 100.0}, // above range clamps
	}

	for _, tt := range tests {
		got := r.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestSensorRange_Inverted(t *testing.T) {
	// A sensor whose counts fall as reflectance rises.
	r := SensorRange{RangeMin: 3000, RangeMax: 1000}
	if got := r.Normalize(1000); got != 100 {
		t.Errorf("Normalize(1000) = %f, want 100", got)
	}
	if got := r.Normalize(2500); math.Abs(got-25) > 0.001 {
		t.Errorf("Normalize(2500) = %f, want 25", got)
	}
}

func TestSensorRange_Empty(t *testing.T) {
	r := SensorRange{RangeMin: 1200, RangeMax: 1200}
	if r.Valid() {
		t.Error("empty range reported valid")
	}
	if got := r.Normalize(1200); got != 0 {
		t.Errorf("Normalize on empty range = %f, want 0", got)
	}
}

func TestSensorRange_RoundTrip(t *testing.T) {
	r := SensorRange{
		RangeMin: 823,
		RangeMax: 3540,
	}

	// Test round-trip: raw -> normalized -> raw
	for raw := r.RangeMin; raw <= r.RangeMax; raw += 100 {
		norm := r.Normalize(raw)
		back := r.Denormalize(norm)
		if math.Abs(float64(back-raw)) > 1 {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, norm, back)
		}
	}
}

func TestMotorCalibration_Steps(t *testing.T) {
	const diameter = 56.0
	circumference := math.Pi * diameter

	tests := []struct {
		name     string
		cal      MotorCalibration
		mm       float64
		expected int
	}{
		{"one revolution", MotorCalibration{ID: 2}, circumference, 4096},
		{"half reverse", MotorCalibration{ID: 2}, -circumference / 2, -2048},
		{"mirrored", MotorCalibration{ID: 1, DriveMode: 1}, circumference, -4096},
		{"zero", MotorCalibration{ID: 1}, 0, 0},
	}

	for _, tt := range tests {
		if got := tt.cal.Steps(tt.mm, diameter); got != tt.expected {
			t.Errorf("%s: Steps(%f) = %d, want %d", tt.name, tt.mm, got, tt.expected)
		}
	}

	if got := (MotorCalibration{}).Steps(100, 0); got != 0 {
		t.Errorf("Steps with zero diameter = %d, want 0", got)
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		RightWheel: MotorCalibration{ID: 7},
		LeftWheel:  MotorCalibration{ID: 3},
	}

	ids := cal.MotorIDs()
	expected := []int{3, 7}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}

	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := DefaultCalibration()

	// Test finding existing ID
	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != LeftWheel {
		t.Errorf("ByID(1) returned name %s, want left", name)
	}
	if mc.DriveMode != 1 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	// Test non-existing ID
	_, _, ok = cal.ByID(99)
	if ok {
		t.Error("ByID(99) should return false")
	}
}
