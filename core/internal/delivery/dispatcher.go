package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/metricbundle"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// ErrDispatcherClosed se retorna al encolar en un Dispatcher cerrado.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherConfig configuración del Dispatcher.
type DispatcherConfig struct {
	// QueueSize capacidad de la cola
	QueueSize int

	// Workers goroutines que llaman a Deliver
	Workers int

	// EnqueueTimeout espera máxima de Enqueue con la cola llena
	EnqueueTimeout time.Duration

	// DeliverTimeout límite de cada Deliver (0 = sin límite)
	DeliverTimeout time.Duration
}

// DefaultDispatcherConfig retorna configuración por defecto.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      1024,
		Workers:        1,
		EnqueueTimeout: 100 * time.Millisecond,
		DeliverTimeout: 30 * time.Second,
	}
}

// Dispatcher desacopla la sesión FIX del sink: la sesión encola y sigue,
// los workers entregan. No reintenta; los errores de Deliver se registran.
type Dispatcher struct {
	sink      Sink
	sinkName  string
	cfg       DispatcherConfig
	telemetry *telemetry.Client
	metrics   *metricbundle.SessionMetrics

	queue  chan domain.CanonicalOrder
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher crea el Dispatcher y arranca sus workers.
func NewDispatcher(ctx context.Context, sink Sink, cfg DispatcherConfig, tel *telemetry.Client) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = def.EnqueueTimeout
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		sink:      sink,
		sinkName:  NameOf(sink),
		cfg:       cfg,
		telemetry: tel,
		metrics:   tel.SessionMetrics(),
		queue:     make(chan domain.CanonicalOrder, cfg.QueueSize),
		ctx:       dctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	return d
}

// Enqueue entrega la orden a la cola sin bloquear más de EnqueueTimeout.
//
// Con la cola llena la orden se descarta y se retorna un error QUEUE_FULL.
func (d *Dispatcher) Enqueue(ctx context.Context, order domain.CanonicalOrder) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- order:
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case d.queue <- order:
		return nil
	case <-ctx.Done():
		d.drop(ctx, order, "context_done")
		return ctx.Err()
	case <-timer.C:
		d.drop(ctx, order, "queue_full")
		return domain.NewError(domain.ErrQueueFull, "delivery queue full").
			WithDetail("order_id", order.OrderID)
	}
}

// Depth órdenes en cola.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}

// Close deja de aceptar órdenes y espera a que los workers vacíen la cola.
//
// Si ctx vence antes, cancela las entregas en curso y retorna ctx.Err(); las
// órdenes aún en cola se descartan.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.telemetry.Warn(ctx, "Dispatcher drain timed out",
			semconv.Fix.QueueDepth.Int(len(d.queue)),
		)
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for order := range d.queue {
		if d.ctx.Err() != nil {
			d.drop(d.ctx, order, "shutdown")
			continue
		}
		d.deliver(id, order)
	}
}

func (d *Dispatcher) deliver(worker int, order domain.CanonicalOrder) {
	ctx := d.ctx
	if d.cfg.DeliverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(d.ctx, d.cfg.DeliverTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.sink.Deliver(ctx, order)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		d.metrics.RecordDelivery(ctx, "error", d.sinkName, latencyMs)
		d.telemetry.Error(ctx, "Delivery failed", err,
			semconv.Fix.OrderID.String(order.OrderID),
			semconv.Fix.ErrorCode.String(string(domain.CodeOf(err))),
			semconv.Metrics.Sink.String(d.sinkName),
			attribute.Int("worker", worker),
		)
		return
	}

	d.metrics.RecordDelivery(ctx, "ok", d.sinkName, latencyMs)
	d.telemetry.Debug(ctx, "Order delivered",
		semconv.Fix.OrderID.String(order.OrderID),
		semconv.Metrics.Sink.String(d.sinkName),
		attribute.Float64("latency_ms", latencyMs),
	)
}

func (d *Dispatcher) drop(ctx context.Context, order domain.CanonicalOrder, reason string) {
	d.metrics.RecordDelivery(ctx, "dropped", d.sinkName, 0)
	d.telemetry.Warn(ctx, "Order dropped before delivery",
		semconv.Fix.OrderID.String(order.OrderID),
		semconv.Fix.QueueDepth.Int(len(d.queue)),
		semconv.Metrics.Reason.String(reason),
		semconv.Metrics.Sink.String(d.sinkName),
	)
}
