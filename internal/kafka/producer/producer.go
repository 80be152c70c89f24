package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/retry"
)

// Producer publishes compression results to a Kafka topic.
type Producer struct {
	writer   *kafka.Writer
	strategy retry.Strategy
}

// New creates a new Producer writing to topic on brokers.
func New(brokers []string, topic string, s retry.Strategy) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		strategy: s,
	}
}

// Message serializes res to JSON. The job ID is used as the message key for
// partitioning and ordering.
func Message(res model.Result) (kafka.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	return kafka.Message{
		Key:   []byte(res.JobID.String()),
		Value: data,
		Time:  res.Done,
	}, nil
}

// Produce sends res to Kafka, retrying according to the producer strategy.
func (p *Producer) Produce(ctx context.Context, res model.Result) error {
	msg, err := Message(res)
	if err != nil {
		return err
	}

	err = retry.Do(ctx, p.strategy, func(int) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
