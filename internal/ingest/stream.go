package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/types"
)

const defaultRetryPause = 2 * time.Second

// AlertHandler processes one decoded alert.
type AlertHandler func(ctx context.Context, a types.AlertRecord) error

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StreamConfig configures a StreamConsumer.
type StreamConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// StreamConsumer reads one JSON alert record per Kafka message.
type StreamConsumer struct {
	reader     messageReader
	logger     *zap.Logger
	topic      string
	retryPause time.Duration
}

// NewStreamConsumer creates a consumer-group reader for cfg.Topic.
func NewStreamConsumer(logger *zap.Logger, cfg StreamConfig) (*StreamConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newStreamConsumer(reader, logger, cfg.Topic), nil
}

func newStreamConsumer(reader messageReader, logger *zap.Logger, topic string) *StreamConsumer {
	return &StreamConsumer{
		reader:     reader,
		logger:     logger.Named("stream").With(zap.String("topic", topic)),
		topic:      topic,
		retryPause: defaultRetryPause,
	}
}

// Run fetches, decodes, handles and commits messages until ctx is cancelled
// or the reader is closed. Undecodable messages are committed and skipped so
// they are never redelivered. Fetch errors are logged and retried after a
// pause.
func (c *StreamConsumer) Run(ctx context.Context, handle AlertHandler) error {
	c.logger.Info("Consuming alert stream")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryPause):
			}
			continue
		}

		c.handleMessage(ctx, msg, handle)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Failed to commit message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *StreamConsumer) handleMessage(ctx context.Context, msg kafka.Message, handle AlertHandler) {
	a, err := Decode(msg.Value)
	if err != nil {
		ingestRecordsTotal.WithLabelValues(sourceStream, "decode_error").Inc()
		c.logger.Warn("Skipping undecodable message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	ingestRecordsTotal.WithLabelValues(sourceStream, "ok").Inc()

	if err := handle(ctx, a); err != nil {
		c.logger.Error("Alert handler failed",
			zap.String("alert_id", a.AlertID),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// Close closes the underlying reader.
func (c *StreamConsumer) Close() error {
	return c.reader.Close()
}
