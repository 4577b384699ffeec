package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/anonto42/minglr/backend/internal/models"
)

// KafkaExporter writes delivered outbox events to a Kafka topic, keyed by event id.
type KafkaExporter struct {
	client *kgo.Client
	topic  string
}

// NewKafkaExporter connects to brokers
func NewKafkaExporter(brokers []string, topic string) (*KafkaExporter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaExporter{client: client, topic: topic}, nil
}

func (e *KafkaExporter) Export(ctx context.Context, ev models.OutboxEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(ev.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	return e.client.ProduceSync(ctx, record).FirstErr()
}

// Ping checks that a broker is reachable
func (e *KafkaExporter) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

func (e *KafkaExporter) Close() {
	e.client.Close()
}
