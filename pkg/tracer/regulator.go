package tracer

import "math"

// ErrorHistory is a fixed-capacity ring of the most recent errors.
// It is a value type: copying it copies the samples.
type ErrorHistory struct {
	buf   [MaxHistorySize]float64
	size  int // capacity in use
	start int
	n     int
}

// NewErrorHistory returns an empty history holding up to size errors.
// size is clamped to [1, MaxHistorySize].
func NewErrorHistory(size int) ErrorHistory {
	size = max(1, min(size, MaxHistorySize))
	return ErrorHistory{size: size}
}

// Push appends e, evicting the oldest entry when full.
func (h *ErrorHistory) Push(e float64) {
	if h.size == 0 {
		h.size = 1
	}
	if h.n < h.size {
		h.buf[(h.start+h.n)%h.size] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % h.size
}

// Len is the number of stored errors.
func (h ErrorHistory) Len() int { return h.n }

// Cap is the capacity of the history.
func (h ErrorHistory) Cap() int { return h.size }

// Full reports whether the history holds Cap errors.
func (h ErrorHistory) Full() bool { return h.size > 0 && h.n == h.size }

// Values returns the stored errors, oldest first.
func (h ErrorHistory) Values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%h.size]
	}
	return out
}

// SignChanges counts adjacent pairs whose product is negative.
func (h ErrorHistory) SignChanges() int {
	changes := 0
	for i := 1; i < h.n; i++ {
		prev := h.buf[(h.start+i-1)%h.size]
		cur := h.buf[(h.start+i)%h.size]
		if prev*cur < 0 {
			changes++
		}
	}
	return changes
}

// DetectOscillation reports whether a full history flips sign on more
// than ratio of its capacity.
func DetectOscillation(h ErrorHistory, ratio float64) bool {
	if !h.Full() {
		return false
	}
	return float64(h.SignChanges()) > float64(h.Cap())*ratio
}

// RegulatorState is the mutable memory of the PID regulator. It is
// threaded through Regulator.Update by its single owner.
type RegulatorState struct {
	Integral  float64
	LastError float64
	History   ErrorHistory
}

// NewRegulatorState returns a zero state with an empty history of the
// given capacity.
func NewRegulatorState(historySize int) RegulatorState {
	return RegulatorState{History: NewErrorHistory(historySize)}
}

// Reset discards all accumulated memory, keeping the history capacity.
func (s RegulatorState) Reset() RegulatorState {
	return NewRegulatorState(s.History.Cap())
}

// Output describes one regulator update.
type Output struct {
	Error       float64
	P, I, D     float64
	TurnRate    float64
	Oscillating bool
}

// Regulator turns reflectance readings into turn rates.
type Regulator struct {
	Kp, Ki, Kd    float64
	IntegralLimit float64
	MaxTurnRate   float64
	Target        float64

	Damping          bool
	OscillationRatio float64
	OnOffTurnRate    float64
}

// NewRegulator builds a regulator for cfg around the profile's target.
func NewRegulator(cfg Config, p Profile) Regulator {
	return Regulator{
		Kp:               cfg.Kp,
		Ki:               cfg.Ki,
		Kd:               cfg.Kd,
		IntegralLimit:    cfg.IntegralLimit,
		MaxTurnRate:      cfg.MaxTurnRate,
		Target:           p.Target,
		Damping:          cfg.OscillationDamping,
		OscillationRatio: cfg.OscillationRatio,
		OnOffTurnRate:    cfg.OnOffTurnRate,
	}
}

// Update runs one PID step on value and returns the next state.
func (r Regulator) Update(s RegulatorState, value float64) (RegulatorState, Output) {
	e := value - r.Target
	s.History.Push(e)

	s.Integral = clamp(s.Integral+e, -r.IntegralLimit, r.IntegralLimit)

	// Fast lateral vibration winds the integral up without any real
	// drift, so bleed half of it off.
	osc := r.Damping && DetectOscillation(s.History, r.OscillationRatio)
	if osc {
		s.Integral *= 0.5
	}

	d := e - s.LastError
	out := Output{
		Error:       e,
		P:           r.Kp * e,
		I:           r.Ki * s.Integral,
		D:           r.Kd * d,
		Oscillating: osc,
	}
	out.TurnRate = clamp(out.P+out.I+out.D, -r.MaxTurnRate, r.MaxTurnRate)

	s.LastError = e
	return s, out
}

// OnOff is the bang-bang controller: a fixed turn toward the set point.
func (r Regulator) OnOff(value float64) Output {
	e := value - r.Target
	turn := r.OnOffTurnRate
	if value < r.Target {
		turn = -turn
	}
	return Output{Error: e, TurnRate: clamp(turn, -r.MaxTurnRate, r.MaxTurnRate)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
