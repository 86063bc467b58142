// Package internal contiene el gateway FIX: configuración cargada desde ETCD,
// listener TCP y ciclo de vida de sesiones y entrega.
package internal

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/twh32/my-fix-project/core/internal/delivery"
	"github.com/twh32/my-fix-project/core/internal/session"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/etcd"
	"github.com/twh32/my-fix-project/sdk/utils"
)

// AppName namespace ETCD del gateway (/fixgate/{env}/).
const AppName = "fixgate"

// ConfigSource subconjunto de *etcd.Client usado por LoadConfig.
type ConfigSource interface {
	Env() string
	GetVarWithDefault(ctx context.Context, key, defaultValue string) (string, error)
	GetVarIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error)
	GetVarBoolWithDefault(ctx context.Context, key string, defaultValue bool) (bool, error)
	GetVarDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error)
	GetVarListWithDefault(ctx context.Context, key string, defaultValue []string) ([]string, error)
}

// Config configuración del gateway.
//
// Cargada desde ETCD en namespace fixgate/{environment}.
type Config struct {
	// Server
	ListenAddr      string        // server/listen_addr
	ShutdownTimeout time.Duration // server/shutdown_timeout_ms

	// Endpoints
	OTLPEndpoint    string // endpoints/otel/otlp_endpoint
	MetricsEndpoint string // endpoints/otel/metrics_endpoint

	// Sesión
	Session      session.Config // session/*
	DuplicateTTL time.Duration  // session/duplicate_ttl_ms (0 deshabilita)

	// Entrega
	Delivery delivery.Config // delivery/*, sinks/*

	// Telemetry
	ServiceName    string // telemetry/service_name
	ServiceVersion string // telemetry/service_version
	Environment    string // telemetry/environment
	LogLevel       string // telemetry/log_level
	MetricsEnabled bool   // telemetry/metrics_enabled
	TracesEnabled  bool   // telemetry/traces_enabled
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":5001",
		ShutdownTimeout: 10 * time.Second,
		Session:         session.DefaultConfig(),
		DuplicateTTL:    time.Hour,
		Delivery:        delivery.DefaultConfig(),
		ServiceName:     "fixgate",
		ServiceVersion:  "0.1.0",
		Environment:     "development",
		LogLevel:        "info",
	}
}

// LoadConfigFromEtcd crea el cliente ETCD (ENV y ETCD_ENDPOINTS) y carga la configuración.
//
// Uso:
//
//	cfg, err := internal.LoadConfigFromEtcd(ctx)
//	if err != nil {
//	    return err
//	}
func LoadConfigFromEtcd(ctx context.Context) (*Config, error) {
	// Obtener environment desde ENV (excepción aprobada)
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	etcdClient, err := etcd.New(
		etcd.WithApp(AppName),
		etcd.WithEnv(env),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ETCD client: %w", err)
	}
	defer etcdClient.Close()

	return LoadConfig(ctx, etcdClient)
}

// LoadConfig carga la configuración desde src, partiendo de DefaultConfig.
//
// Las claves ausentes o mal formadas conservan el default; el resultado se
// valida con Validate.
func LoadConfig(ctx context.Context, src ConfigSource) (*Config, error) {
	cfg := DefaultConfig()
	if env := src.Env(); env != "" {
		cfg.Environment = env
	}

	str := func(key string, dst *string) {
		if val, err := src.GetVarWithDefault(ctx, key, ""); err == nil && val != "" {
			*dst = strings.TrimSpace(val)
		}
	}
	num := func(key string, dst *int) {
		*dst, _ = src.GetVarIntWithDefault(ctx, key, *dst)
	}
	flag := func(key string, dst *bool) {
		*dst, _ = src.GetVarBoolWithDefault(ctx, key, *dst)
	}
	dur := func(key string, dst *time.Duration) {
		*dst, _ = src.GetVarDurationWithDefault(ctx, key, *dst)
	}

	// Server y endpoints
	str("server/listen_addr", &cfg.ListenAddr)
	dur("server/shutdown_timeout_ms", &cfg.ShutdownTimeout)
	str("endpoints/otel/otlp_endpoint", &cfg.OTLPEndpoint)
	str("endpoints/otel/metrics_endpoint", &cfg.MetricsEndpoint)

	// Sesión
	dur("session/heartbeat_interval_ms", &cfg.Session.HeartbeatInterval)
	dur("session/write_timeout_ms", &cfg.Session.WriteTimeout)
	num("session/max_frame_bytes", &cfg.Session.MaxFrameSize)
	flag("session/validate_checksum", &cfg.Session.ValidateChecksum)
	dur("session/duplicate_ttl_ms", &cfg.DuplicateTTL)

	// Entrega
	d := &cfg.Delivery
	str("delivery/sink", &d.Sink)
	num("delivery/queue_size", &d.Dispatcher.QueueSize)
	num("delivery/workers", &d.Dispatcher.Workers)
	dur("delivery/enqueue_timeout_ms", &d.Dispatcher.EnqueueTimeout)
	dur("delivery/deliver_timeout_ms", &d.Dispatcher.DeliverTimeout)
	flag("delivery/outbox_enabled", &d.OutboxEnabled)
	str("delivery/outbox_path", &d.Outbox.Path)
	num("delivery/max_retries", &d.Outbox.MaxRetries)
	dur("delivery/lease_timeout_ms", &d.Outbox.LeaseTimeout)
	if vals, err := src.GetVarListWithDefault(ctx, "delivery/retry_backoff_ms", nil); err == nil && len(vals) > 0 {
		if backoff := parseBackoff(vals); len(backoff) > 0 {
			d.Outbox.RetryBackoff = backoff
		}
	}

	// Sinks
	d.Kafka.Brokers, _ = src.GetVarListWithDefault(ctx, "sinks/kafka/brokers", d.Kafka.Brokers)
	str("sinks/kafka/topic", &d.Kafka.Topic)
	dur("sinks/kafka/batch_timeout_ms", &d.Kafka.BatchTimeout)
	str("sinks/redis/addr", &d.Redis.Addr)
	str("sinks/redis/password", &d.Redis.Password)
	num("sinks/redis/db", &d.Redis.DB)
	str("sinks/redis/stream", &d.Redis.Stream)
	maxLen := int(d.Redis.MaxLen)
	num("sinks/redis/max_len", &maxLen)
	d.Redis.MaxLen = int64(maxLen)
	str("sinks/amqp/url", &d.AMQP.URL)
	str("sinks/amqp/queue", &d.AMQP.Queue)
	num("sinks/amqp/dial_attempts", &d.AMQP.DialAttempts)
	str("sinks/postgres/dsn", &d.Postgres.DSN)
	flag("sinks/postgres/ensure_schema", &d.Postgres.EnsureSchema)
	num("sinks/postgres/dial_attempts", &d.Postgres.DialAttempts)
	str("sinks/grpc/target", &d.GRPC.Target)
	dur("sinks/grpc/timeout_ms", &d.GRPC.Timeout)

	// Telemetry
	str("telemetry/service_name", &cfg.ServiceName)
	str("telemetry/service_version", &cfg.ServiceVersion)
	str("telemetry/environment", &cfg.Environment)
	str("telemetry/log_level", &cfg.LogLevel)
	flag("telemetry/metrics_enabled", &cfg.MetricsEnabled)
	flag("telemetry/traces_enabled", &cfg.TracesEnabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica la configuración mínima requerida.
func (c *Config) Validate() error {
	invalid := func(key, msg string) error {
		return domain.NewError(domain.ErrInvalidConfig, msg).WithDetail("key", key)
	}

	if c.ListenAddr == "" {
		return invalid("server/listen_addr", "listen address not configured")
	}
	if c.Session.HeartbeatInterval <= 0 {
		return invalid("session/heartbeat_interval_ms", "heartbeat interval must be positive")
	}
	if c.Session.MaxFrameSize < 64 {
		return invalid("session/max_frame_bytes", "max frame size too small")
	}
	if c.Delivery.Dispatcher.EnqueueTimeout >= c.Session.HeartbeatInterval {
		return invalid("delivery/enqueue_timeout_ms", "enqueue timeout must be shorter than the heartbeat interval")
	}

	kind := strings.ToLower(c.Delivery.Sink)
	if !delivery.ValidSinkKind(kind) {
		return invalid("delivery/sink", fmt.Sprintf("unknown sink %q", c.Delivery.Sink))
	}
	switch kind {
	case delivery.SinkKafka:
		if len(c.Delivery.Kafka.Brokers) == 0 {
			return invalid("sinks/kafka/brokers", "kafka brokers not configured")
		}
	case delivery.SinkRedis:
		if c.Delivery.Redis.Addr == "" {
			return invalid("sinks/redis/addr", "redis address not configured")
		}
	case delivery.SinkAMQP:
		if c.Delivery.AMQP.URL == "" {
			return invalid("sinks/amqp/url", "amqp url not configured")
		}
	case delivery.SinkPostgres:
		if c.Delivery.Postgres.DSN == "" {
			return invalid("sinks/postgres/dsn", "postgres dsn not configured")
		}
	case delivery.SinkGRPC:
		if c.Delivery.GRPC.Target == "" {
			return invalid("sinks/grpc/target", "grpc target not configured")
		}
	}

	if c.Delivery.OutboxEnabled && c.Delivery.Outbox.Path == "" {
		return invalid("delivery/outbox_path", "outbox path not configured")
	}
	return nil
}

// parseBackoff convierte milisegundos CSV a duraciones, descartando inválidos.
func parseBackoff(vals []string) []time.Duration {
	ms := make([]int64, 0, len(vals))
	for _, v := range vals {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			ms = append(ms, n)
		}
	}
	return utils.DurationsFromMillis(ms)
}
