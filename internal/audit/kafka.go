package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultSinkBuffer = 1024
	flushTimeout      = 5 * time.Second
)

// KafkaSink fans audit events out to a Kafka topic for external reporting
// pipelines. It is strictly best-effort: the Postgres/memory store is the
// source of truth, and a slow or unavailable broker must never block claim
// ingestion. Events are queued in memory and produced by Run.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	queue  chan Event
	logger *slog.Logger
}

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: kafka client: %w", err)
	}
	return &KafkaSink{
		client: client,
		topic:  topic,
		queue:  make(chan Event, defaultSinkBuffer),
		logger: logger,
	}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet. Called once
// at startup; an already-existing topic is not an error.
func (s *KafkaSink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("audit: create topic: %w", err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("audit: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Enqueue queues an event for production. Returns an error when the buffer
// is full; the caller logs and moves on.
func (s *KafkaSink) Enqueue(event Event) error {
	select {
	case s.queue <- event:
		return nil
	default:
		return fmt.Errorf("audit sink buffer full, dropping %s", event.Action)
	}
}

// Run drains the queue until ctx is cancelled, then flushes and closes the
// producer. Intended to run under the server's errgroup.
func (s *KafkaSink) Run(ctx context.Context) error {
	defer s.client.Close()

	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before shutting down.
			for {
				select {
				case event := <-s.queue:
					s.produce(context.Background(), event)
				default:
					flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
					err := s.client.Flush(flushCtx)
					cancel()
					return err
				}
			}
		case event := <-s.queue:
			s.produce(ctx, event)
		}
	}
}

func (s *KafkaSink) produce(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("audit sink marshal failed", "action", event.Action, "error", err)
		}
		return
	}
	record := &kgo.Record{Key: []byte(event.Subject), Value: data}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Error("audit sink produce failed", "action", event.Action, "error", err)
		}
	})
}
