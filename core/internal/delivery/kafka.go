package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/utils"
)

// KafkaWriter subconjunto de *kafka.Writer usado por el sink.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configuración del sink Kafka.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaSink publica cada orden como un mensaje JSON con key order_id.
type KafkaSink struct {
	writer KafkaWriter
	topic  string
}

// NewKafkaSink crea el writer de kafka-go.
//
// El writer es síncrono: Deliver retorna cuando el broker confirmó (RequireAll).
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, domain.NewError(domain.ErrInvalidConfig, "kafka sink requires brokers")
	}
	if cfg.Topic == "" {
		return nil, domain.NewError(domain.ErrInvalidConfig, "kafka sink requires a topic")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	}
	return NewKafkaSinkWithWriter(writer, cfg.Topic), nil
}

// NewKafkaSinkWithWriter crea el sink sobre un writer existente.
func NewKafkaSinkWithWriter(writer KafkaWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Name implementa Named.
func (s *KafkaSink) Name() string { return "kafka" }

// Deliver implementa Sink.
func (s *KafkaSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "processed_timestamp", Value: []byte(order.ProcessedTimestamp)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return domain.WrapError(domain.ErrSinkUnavailable, fmt.Sprintf("kafka write to %s", s.topic), err)
	}
	return nil
}

// Close cierra el writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
