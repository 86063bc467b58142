package delivery

import (
	"context"
	"sync"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
	"github.com/twh32/my-fix-project/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
)

// MemorySink acumula las órdenes entregadas en memoria.
//
// Err, si no es nil, se retorna en cada Deliver sin guardar la orden.
type MemorySink struct {
	mu     sync.Mutex
	orders []domain.CanonicalOrder
	err    error
	notify chan struct{}
}

// NewMemorySink crea un MemorySink vacío.
func NewMemorySink() *MemorySink {
	return &MemorySink{notify: make(chan struct{}, 1)}
}

// Name implementa Named.
func (s *MemorySink) Name() string { return "memory" }

// Deliver implementa Sink.
func (s *MemorySink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// SetError fija el error que retornan las próximas entregas (nil las habilita).
func (s *MemorySink) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Orders retorna una copia de las órdenes recibidas.
func (s *MemorySink) Orders() []domain.CanonicalOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CanonicalOrder, len(s.orders))
	copy(out, s.orders)
	return out
}

// Len cantidad de órdenes recibidas.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Notify se señaliza (sin bloquear) tras cada entrega exitosa.
func (s *MemorySink) Notify() <-chan struct{} {
	return s.notify
}

// LogSink escribe cada orden en el log estructurado. Es el sink por defecto.
type LogSink struct {
	tel *telemetry.Client
}

// NewLogSink crea un LogSink.
func NewLogSink(tel *telemetry.Client) *LogSink {
	return &LogSink{tel: tel}
}

// Name implementa Named.
func (s *LogSink) Name() string { return "log" }

// Deliver implementa Sink.
func (s *LogSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}
	s.tel.Info(ctx, "Canonical order delivered",
		semconv.Fix.OrderID.String(order.OrderID),
		semconv.Fix.Symbol.String(order.Symbol),
		attribute.String("payload", string(payload)),
	)
	return nil
}
