// Package delivery entrega las órdenes canónicas a un destino downstream.
//
// La sesión FIX nunca llama a un Sink directamente: encola la orden en el
// Dispatcher y sigue atendiendo la conexión. Los workers del Dispatcher
// invocan Deliver, registran el resultado y no reintentan. La durabilidad y
// los reintentos son responsabilidad del sink (ver OutboxSink).
//
// # Sinks disponibles
//
//   - log: escribe la orden en el log estructurado
//   - memory: acumula en memoria (tests, CLI)
//   - kafka: publica en un topic (segmentio/kafka-go)
//   - redis: XADD a un stream (go-redis)
//   - amqp: cola durable de RabbitMQ (amqp091-go)
//   - postgres: journal con INSERT idempotente (lib/pq)
//   - grpc: llamada unary a OrderIngest/Deliver
package delivery

import (
	"context"
	"io"

	"github.com/twh32/my-fix-project/sdk/domain"
)

// Sink destino de las órdenes canónicas.
//
// Deliver puede bloquear (I/O de red); se llama siempre fuera del hilo de la
// sesión.
type Sink interface {
	Deliver(ctx context.Context, order domain.CanonicalOrder) error
}

// Named lo implementan los sinks que exponen un nombre para métricas y logs.
type Named interface {
	Name() string
}

// NameOf retorna el nombre del sink o "custom" si no lo expone.
func NameOf(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// CloseSink cierra el sink si implementa io.Closer.
func CloseSink(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SinkFunc adapta una función a Sink.
type SinkFunc func(ctx context.Context, order domain.CanonicalOrder) error

// Deliver implementa Sink.
func (f SinkFunc) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	return f(ctx, order)
}
