package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/twh32/my-fix-project/core/internal/delivery"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/etcd"
)

// mapKV KV de solo lectura sobre un mapa, ya namespaced.
type mapKV map[string]string

func (m mapKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	resp := &clientv3.GetResponse{}
	if v, ok := m[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(v)}}
		resp.Count = 1
	}
	return resp, nil
}

func (m mapKV) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	return nil, errors.New("read-only")
}

func (m mapKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	return nil, errors.New("read-only")
}

func sourceWith(vars map[string]string) *etcd.Client {
	return etcd.NewWithKV(mapKV(vars), AppName, "test", time.Second)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), sourceWith(nil))
	require.NoError(t, err)

	assert.Equal(t, ":5001", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.True(t, cfg.Session.ValidateChecksum)
	assert.Equal(t, delivery.SinkLog, cfg.Delivery.Sink)
	assert.Equal(t, "test", cfg.Environment)
	assert.False(t, cfg.Delivery.OutboxEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), sourceWith(map[string]string{
		"server/listen_addr":            "127.0.0.1:7001",
		"session/heartbeat_interval_ms": "30000",
		"session/validate_checksum":     "false",
		"delivery/sink":                 "kafka",
		"delivery/queue_size":           "64",
		"delivery/enqueue_timeout_ms":   "250",
		"delivery/outbox_enabled":       "true",
		"delivery/outbox_path":          "/tmp/fixgate-outbox.db",
		"delivery/retry_backoff_ms":     "100, 200,abc,400",
		"sinks/kafka/brokers":           "k1:9092,k2:9092",
		"sinks/kafka/topic":             "fix.orders",
		"sinks/redis/max_len":           "1000",
		"telemetry/log_level":           "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7001", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Session.HeartbeatInterval)
	assert.False(t, cfg.Session.ValidateChecksum)
	assert.Equal(t, delivery.SinkKafka, cfg.Delivery.Sink)
	assert.Equal(t, 64, cfg.Delivery.Dispatcher.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.Dispatcher.EnqueueTimeout)
	assert.True(t, cfg.Delivery.OutboxEnabled)
	assert.Equal(t, "/tmp/fixgate-outbox.db", cfg.Delivery.Outbox.Path)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, cfg.Delivery.Outbox.RetryBackoff)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Delivery.Kafka.Brokers)
	assert.Equal(t, "fix.orders", cfg.Delivery.Kafka.Topic)
	assert.Equal(t, int64(1000), cfg.Delivery.Redis.MaxLen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_MalformedValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), sourceWith(map[string]string{
		"session/heartbeat_interval_ms": "soon",
		"delivery/workers":              "many",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 1, cfg.Delivery.Dispatcher.Workers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		key  string
	}{
		{"sink desconocido", map[string]string{"delivery/sink": "carrier-pigeon"}, "delivery/sink"},
		{"kafka sin brokers", map[string]string{"delivery/sink": "kafka"}, "sinks/kafka/brokers"},
		{"redis sin addr", map[string]string{"delivery/sink": "redis"}, "sinks/redis/addr"},
		{"amqp sin url", map[string]string{"delivery/sink": "amqp"}, "sinks/amqp/url"},
		{"postgres sin dsn", map[string]string{"delivery/sink": "postgres"}, "sinks/postgres/dsn"},
		{"grpc sin target", map[string]string{"delivery/sink": "grpc"}, "sinks/grpc/target"},
		{"heartbeat cero", map[string]string{"session/heartbeat_interval_ms": "0"}, "session/heartbeat_interval_ms"},
		{"frame diminuto", map[string]string{"session/max_frame_bytes": "10"}, "session/max_frame_bytes"},
		{"enqueue mayor que heartbeat", map[string]string{
			"session/heartbeat_interval_ms": "1000",
			"delivery/enqueue_timeout_ms":   "2000",
		}, "delivery/enqueue_timeout_ms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(context.Background(), sourceWith(tc.vars))
			require.Error(t, err)

			var ge *domain.GatewayError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, domain.ErrInvalidConfig, ge.Code)
			assert.Equal(t, tc.key, ge.Details["key"])
		})
	}
}
