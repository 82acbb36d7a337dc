// Package events publishes recognized letters, words and shortcuts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
	"github.com/ayusman/dactilo/internal/session"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// DefaultConfig returns a disabled publisher configuration.
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:9092"},
		Topic:   "dactilo.events",
	}
}

// Message is the JSON payload written for every event.
type Message struct {
	SessionID string    `json:"sessionId"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to a single topic keyed by session id. When Kafka is
// disabled it only logs.
type Publisher struct {
	writer  messageWriter
	topic   string
	enabled bool
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a publisher. m may be nil.
func New(cfg Config, m *metrics.Metrics) *Publisher {
	l := logging.WithComponent("events")

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		l.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{topic: cfg.Topic, metrics: m, log: l}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	l.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		enabled: true,
		metrics: m,
		log:     l,
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish writes ev to the topic. Events of one session share a key so they
// stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, sessionID string, ev session.Event) error {
	start := time.Now()

	payload, err := json.Marshal(Message{
		SessionID: sessionID,
		Kind:      string(ev.Kind),
		Text:      ev.Text,
		At:        ev.At,
	})
	if err != nil {
		return err
	}

	p.log.Debug().
		Str("topic", p.topic).
		Str("key", sessionID).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(string(ev.Kind), nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.Kind)},
		},
	}

	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordPublish(string(ev.Kind), err, time.Since(start).Seconds())
	if err != nil {
		p.log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("key", sessionID).
			Msg("Failed to write to Kafka")
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.log.Error().Err(err).Msg("Error closing Kafka writer")
		return err
	}
	return nil
}
