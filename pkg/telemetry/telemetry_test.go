package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linetrace/pkg/tracer"
)

func ticksWithErrors(errs ...float64) []tracer.Tick {
	ticks := make([]tracer.Tick, len(errs))
	for i, e := range errs {
		ticks[i] = tracer.Tick{
			Index:       i,
			At:          time.Duration(i) * 5 * time.Millisecond,
			Reflectance: 50 + e,
			Error:       e,
			TurnRate:    2 * e,
			Speed:       150,
			Mode:        tracer.ModeTracking,
		}
	}
	return ticks
}

func TestRecorder_Limit(t *testing.T) {
	r := NewRecorder(3)
	for _, tick := range ticksWithErrors(1, 2, 3, 4, 5) {
		r.Publish(tick)
	}

	got := r.Ticks()
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].Index, got[1].Index, got[2].Index})

	got[0].Index = 99
	assert.Equal(t, 2, r.Ticks()[0].Index, "Ticks returns a copy")

	unlimited := NewRecorder(0)
	for _, tick := range ticksWithErrors(1, 2, 3, 4, 5) {
		unlimited.Publish(tick)
	}
	assert.Equal(t, 5, unlimited.Len())
}

func TestSummarize(t *testing.T) {
	ticks := ticksWithErrors(3, -4, 3, -4)
	ticks = append(ticks,
		tracer.Tick{At: 20 * time.Millisecond, Error: 40, TurnRate: 200, Speed: 75, Curve: tracer.SharpRight},
		tracer.Tick{At: 25 * time.Millisecond, Error: 45, Speed: 0, Mode: tracer.ModeSearching, Oscillating: true},
	)

	s := Summarize(ticks)
	assert.Equal(t, 6, s.Ticks)
	assert.Equal(t, 25*time.Millisecond, s.Duration)
	assert.InDelta(t, 3.5, s.MeanAbsError, 1e-9)
	assert.InDelta(t, 4, s.MaxAbsError, 1e-9)
	assert.InDelta(t, math.Sqrt(12.5), s.RMSError, 1e-9)
	assert.InDelta(t, math.Sqrt(49.0/3), s.ErrorStdDev, 1e-9)
	assert.InDelta(t, (4*150+75)/6.0, s.MeanSpeed, 1e-9)
	assert.Equal(t, 200.0, s.MaxTurnRate)
	assert.Equal(t, 1, s.SharpTicks)
	assert.Equal(t, 1, s.SearchTicks)
	assert.Equal(t, 1, s.OscillatingTicks)
}

func TestSummarize_Degenerate(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize(ticksWithErrors(-7))
	assert.Equal(t, 7.0, s.MeanAbsError)
	assert.Zero(t, s.ErrorStdDev)
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "run.png")
	require.NoError(t, SavePlot(ticksWithErrors(0, 5, -5, 2), 50, "test run", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	assert.Error(t, SavePlot(nil, 50, "empty", path))
}

// fakeToken completes immediately unless it is stuck.
type fakeToken struct {
	err   error
	stuck bool
	done  chan struct{}
}

func newToken(err error, stuck bool) *fakeToken {
	t := &fakeToken{err: err, stuck: stuck, done: make(chan struct{})}
	if !stuck {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	if t.stuck {
		select {}
	}
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.stuck }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []message
	err   error
	stuck bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, message{topic, qos, retained, payload.([]byte)})
	return newToken(p.err, p.stuck)
}

func TestMQTTSink_Decimates(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "linetrace/ticks", 4)

	for _, tick := range ticksWithErrors(make([]float64, 10)...) {
		sink.Publish(tick)
	}

	require.Len(t, pub.msgs, 3) // ticks 0, 4, 8
	var got tracer.Tick
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &got))
	assert.Equal(t, 4, got.Index)
	assert.Equal(t, "linetrace/ticks", pub.msgs[1].topic)
	assert.False(t, pub.msgs[1].retained)
}

func TestMQTTSink_CountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := NewMQTTSink(pub, "t", 1)

	for _, tick := range ticksWithErrors(1, 2, 3) {
		sink.Publish(tick)
	}
	require.Eventually(t, func() bool { return sink.Failed() == 3 }, time.Second, time.Millisecond)
}

func TestMQTTSink_UnackedPublishFails(t *testing.T) {
	pub := &fakePublisher{stuck: true}
	sink := NewMQTTSink(pub, "t", 1)

	for _, tick := range ticksWithErrors(1, 2) {
		sink.Publish(tick)
	}
	require.Eventually(t, func() bool { return sink.Failed() == 2 }, time.Second, time.Millisecond)

	assert.ErrorContains(t, sink.PublishSummary(Summary{}), "timeout")
}

func TestMQTTSink_PublishSummary(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "linetrace/ticks", 1)

	require.NoError(t, sink.PublishSummary(Summary{Ticks: 12}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "linetrace/ticks/summary", pub.msgs[0].topic)
	assert.True(t, pub.msgs[0].retained)
	assert.Equal(t, byte(1), pub.msgs[0].qos)
}
