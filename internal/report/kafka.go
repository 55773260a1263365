package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/tweet-radar/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each envelope to a topic, keyed by run id.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 3,
	})}
}

func (s *KafkaSink) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "term", Value: []byte(env.Term)},
			{Key: "timestamp", Value: []byte(env.GeneratedAt.UTC().Format(time.RFC3339))},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write report message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// Open builds the sinks described by cfg: always the report file, plus Kafka
// when brokers are configured. The returned func releases any writers.
func Open(cfg config.Report) ([]Sink, func() error) {
	sinks := []Sink{NewFileSink(cfg.Path)}
	if len(cfg.KafkaBrokers) == 0 {
		return sinks, func() error { return nil }
	}

	k := NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	return append(sinks, k), k.Close
}
