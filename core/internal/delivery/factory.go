package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Tipos de sink soportados.
const (
	SinkLog      = "log"
	SinkMemory   = "memory"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkAMQP     = "amqp"
	SinkPostgres = "postgres"
	SinkGRPC     = "grpc"
)

// SinkKinds lista los tipos válidos en delivery/sink.
var SinkKinds = []string{SinkLog, SinkMemory, SinkKafka, SinkRedis, SinkAMQP, SinkPostgres, SinkGRPC}

// Config configuración de entrega completa.
type Config struct {
	// Sink tipo de sink (ver SinkKinds)
	Sink string

	Dispatcher DispatcherConfig

	// OutboxEnabled envuelve el sink en un OutboxSink
	OutboxEnabled bool
	Outbox        OutboxConfig

	Kafka    KafkaConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Postgres PostgresConfig
	GRPC     GRPCConfig
}

// DefaultConfig sink de log, sin outbox.
func DefaultConfig() Config {
	return Config{
		Sink:       SinkLog,
		Dispatcher: DefaultDispatcherConfig(),
		Outbox:     DefaultOutboxConfig(),
		AMQP:       AMQPConfig{Queue: "orders"},
		Redis:      RedisConfig{Stream: "orders"},
		Kafka:      KafkaConfig{Topic: "orders"},
	}
}

// ValidSinkKind indica si kind es un tipo de sink conocido.
func ValidSinkKind(kind string) bool {
	for _, k := range SinkKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// NewSink construye el sink configurado y, si corresponde, lo envuelve en el outbox.
func NewSink(ctx context.Context, cfg Config, tel *telemetry.Client) (Sink, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Sink))
	if kind == "" {
		kind = SinkLog
	}

	var (
		sink Sink
		err  error
	)
	switch kind {
	case SinkLog:
		sink = NewLogSink(tel)
	case SinkMemory:
		sink = NewMemorySink()
	case SinkKafka:
		sink, err = NewKafkaSink(cfg.Kafka)
	case SinkRedis:
		sink, err = NewRedisSink(cfg.Redis)
	case SinkAMQP:
		sink, err = NewAMQPSink(ctx, cfg.AMQP)
	case SinkPostgres:
		sink, err = NewPostgresSink(ctx, cfg.Postgres)
	case SinkGRPC:
		sink, err = NewGRPCSink(ctx, cfg.GRPC, tel)
	default:
		return nil, domain.NewError(domain.ErrInvalidConfig, fmt.Sprintf("unknown sink %q", cfg.Sink)).
			WithDetail("valid", strings.Join(SinkKinds, ","))
	}
	if err != nil {
		return nil, err
	}

	if cfg.OutboxEnabled {
		outbox, err := NewOutboxSink(ctx, sink, cfg.Outbox, tel)
		if err != nil {
			_ = CloseSink(sink)
			return nil, err
		}
		sink = outbox
	}

	tel.Info(ctx, "Delivery sink ready",
		attribute.String("sink", NameOf(sink)),
		attribute.Bool("outbox_enabled", cfg.OutboxEnabled),
	)
	return sink, nil
}
