package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic" default:"argo-bot.positions"`
	Compression  string        `yaml:"compression" json:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts" default:"3" validate:"gte=1"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" default:"10s"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout" default:"100ms"`
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by account, so one account's events stay ordered
// within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logger.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured, and a NopPublisher otherwise.
func NewPublisher(config KafkaConfig, log *logger.Logger) (Publisher, error) {
	if !config.Enabled() {
		return NopPublisher{}, nil
	}

	return NewKafkaPublisher(config, log)
}

func NewKafkaPublisher(config KafkaConfig, log *logger.Logger) (*KafkaPublisher, error) {
	if !config.Enabled() {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "kafka brokers are required")
	}

	if config.Topic == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            parseCompression(config.Compression),
		MaxAttempts:            max(config.MaxAttempts, 1),
		WriteTimeout:           config.WriteTimeout,
		BatchTimeout:           config.BatchTimeout,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(writer, config.Topic, log), nil
}

func newKafkaPublisher(writer messageWriter, topic string, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeEventPublish, err, "failed to encode %s event", event.Kind)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Account),
		Value: value,
		Time:  event.Time,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(errors.ErrCodeEventPublish, err, "failed to publish %s event", event.Kind)
	}

	p.logger.Debug("Event published",
		zap.String("account", event.Account),
		zap.String("kind", string(event.Kind)),
		zap.String("topic", p.topic),
	)

	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeEventPublish, "failed to close kafka writer", err)
	}

	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
