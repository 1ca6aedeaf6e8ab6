// Package kafka provides a Kafka-backed audit sink so compliance events can
// be consumed by downstream retention and reporting pipelines.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "fecguard/pkg/platform/audit"
)

// Sink publishes audit events to a Kafka topic, keyed by donor so a donor's
// trail stays ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// NewSink connects to the brokers and ensures the audit topic exists.
func NewSink(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Sink{client: client, topic: topic}, nil
}

// Append produces the event synchronously. Audit writes are on the compliance
// path, so delivery errors propagate to the caller.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.DonorID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
