package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConnect(t *testing.T) {
	refused := errors.New("connection refused")

	t.Run("conecta al tercer intento", func(t *testing.T) {
		calls := 0
		err := retryConnectWith(context.Background(), "amqp dial", 5, &backoff.ZeroBackOff{}, func() error {
			calls++
			if calls < 3 {
				return refused
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("agota los intentos y conserva el último error", func(t *testing.T) {
		calls := 0
		err := retryConnectWith(context.Background(), "postgres ping", 3, &backoff.ZeroBackOff{}, func() error {
			calls++
			return refused
		})
		require.ErrorIs(t, err, refused)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "postgres ping after 3 attempts")
	})

	t.Run("error permanente corta sin reintentar", func(t *testing.T) {
		calls := 0
		badURL := errors.New("bad url")
		err := retryConnectWith(context.Background(), "amqp dial", 5, &backoff.ZeroBackOff{}, func() error {
			calls++
			return backoff.Permanent(badURL)
		})
		require.ErrorIs(t, err, badURL)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelación durante la espera", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		start := time.Now()
		err := retryConnectWith(ctx, "amqp dial", 5, backoff.NewConstantBackOff(time.Minute), func() error {
			calls++
			cancel()
			return refused
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("sin intentos usa el default", func(t *testing.T) {
		calls := 0
		err := retryConnectWith(context.Background(), "amqp dial", 0, &backoff.ZeroBackOff{}, func() error {
			calls++
			return refused
		})
		require.Error(t, err)
		assert.Equal(t, connectAttempts, calls)
	})
}
