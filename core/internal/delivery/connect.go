package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// connectAttempts intentos por defecto al conectar un sink.
const connectAttempts = 5

// connectBackOff es el backoff entre intentos de conexión a un sink.
func connectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// retryConnect ejecuta fn con backoff exponencial hasta attempts veces.
// Si ctx se cancela durante la espera retorna el error del contexto.
func retryConnect(ctx context.Context, what string, attempts int, fn func() error) error {
	return retryConnectWith(ctx, what, attempts, connectBackOff(), fn)
}

func retryConnectWith(ctx context.Context, what string, attempts int, b backoff.BackOff, fn func() error) error {
	if attempts <= 0 {
		attempts = connectAttempts
	}

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		return struct{}{}, fn()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	return fmt.Errorf("%s after %d attempts: %w", what, tries, err)
}
