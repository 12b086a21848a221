// Package events mirrors final transcripts to Kafka for downstream
// consumers. The mirror is optional: when disabled it degrades to log-only
// mode, and a broker failure never affects the live broadcast path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/metrics"
)

// Config holds Kafka mirror configuration.
type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Mirror publishes final transcript events to a Kafka topic, keyed by room.
type Mirror struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	metrics *metrics.Metrics
}

// NewMirror creates a Kafka mirror. With Enabled false or no brokers it runs
// in log-only mode.
func NewMirror(cfg Config) *Mirror {
	m := metrics.DefaultMetrics

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logging.Info(logging.CategoryEvents, "Kafka mirror disabled, using log-only mode")
		return &Mirror{topic: cfg.Topic, enabled: false, metrics: m}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logging.Info(logging.CategoryEvents, "Kafka mirror initialized brokers=%v topic=%s", cfg.Brokers, cfg.Topic)
	return &Mirror{writer: writer, topic: cfg.Topic, enabled: true, metrics: m}
}

// PublishFinal mirrors one final transcript, keyed by its roomID.
func (m *Mirror) PublishFinal(ctx context.Context, ev bus.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}

	if !m.enabled || m.writer == nil {
		logging.Debug(logging.CategoryEvents, "transcript (log-only) room=%s payload=%s", ev.RoomID, payload)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.RoomID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("transcript.final")},
		},
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		m.metrics.KafkaPublishErrors.Inc()
		return fmt.Errorf("write to kafka: %w", err)
	}
	m.metrics.KafkaPublishTotal.Inc()
	return nil
}

// Close closes the Kafka writer.
func (m *Mirror) Close() error {
	if m.writer == nil {
		return nil
	}
	return m.writer.Close()
}
