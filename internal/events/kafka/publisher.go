// Package kafka publishes audit records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes audit records as JSON messages keyed by entry id.
type Publisher struct {
	writer  messageWriter
	logger  *zap.Logger
	timeout time.Duration
}

// NewPublisher builds a publisher for topic on brokers.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

func newPublisher(w messageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, logger: logger, timeout: 5 * time.Second}
}

// PublishAudit sends records in order. Records of one entry share a partition.
func (p *Publisher) PublishAudit(ctx context.Context, records ...models.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode audit record %d: %w", r.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(r.EntryIDSnapshot, 10)),
			Value: data,
			Headers: []kafka.Header{
				{Key: "action", Value: []byte(r.Action)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d audit records: %w", len(msgs), err)
	}
	p.logger.Debug("audit records published", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Nop discards audit records when no brokers are configured.
type Nop struct{}

// PublishAudit does nothing.
func (Nop) PublishAudit(context.Context, ...models.AuditRecord) error { return nil }
