package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gwillem/linetrace/pkg/tracer"
)

// publishTimeout bounds how long a pending publish is waited for.
const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink forwards every Nth tick as JSON to an MQTT topic. Publishing
// never waits for the broker; failures are counted and logged.
type MQTTSink struct {
	pub    Publisher
	topic  string
	every  int
	n      int
	failed atomic.Int64
}

// NewMQTTSink publishes one tick out of every to topic.
func NewMQTTSink(pub Publisher, topic string, every int) *MQTTSink {
	if every < 1 {
		every = 1
	}
	return &MQTTSink{pub: pub, topic: topic, every: every}
}

// Dial connects to broker and returns the client.
func Dial(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)
	return client, nil
}

// Publish implements tracer.Sink.
func (s *MQTTSink) Publish(t tracer.Tick) {
	s.n++
	if (s.n-1)%s.every != 0 {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		s.fail(err)
		return
	}
	token := s.pub.Publish(s.topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			s.fail(fmt.Errorf("no ack within %v", publishTimeout))
			return
		}
		if err := token.Error(); err != nil {
			s.fail(err)
		}
	}()
}

// PublishSummary sends the run summary, retained, to topic/summary.
func (s *MQTTSink) PublishSummary(sum Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	token := s.pub.Publish(s.topic+"/summary", 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish summary: timeout")
	}
	return token.Error()
}

// Failed returns the number of ticks that could not be published.
func (s *MQTTSink) Failed() int64 {
	return s.failed.Load()
}

func (s *MQTTSink) fail(err error) {
	if s.failed.Add(1) == 1 {
		log.Printf("telemetry: publish to %s failed: %v", s.topic, err)
	}
}
