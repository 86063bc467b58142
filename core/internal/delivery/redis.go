package delivery

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/utils"
)

// RedisConfig configuración del sink Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// RedisSink agrega cada orden a un stream con XADD.
//
// Campos de la entrada: order_id, symbol y payload (JSON completo).
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink crea el cliente go-redis.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, domain.NewError(domain.ErrInvalidConfig, "redis sink requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisSinkWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisSinkWithClient crea el sink sobre un cliente existente.
func NewRedisSinkWithClient(client *redis.Client, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = "orders"
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// Name implementa Named.
func (s *RedisSink) Name() string { return "redis" }

// Deliver implementa Sink.
func (s *RedisSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"order_id": order.OrderID,
			"symbol":   order.Symbol,
			"payload":  string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return domain.WrapError(domain.ErrSinkUnavailable, fmt.Sprintf("redis xadd %s", s.stream), err)
	}
	return nil
}

// Close cierra el cliente.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
