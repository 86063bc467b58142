package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/metricbundle"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
	"github.com/twh32/my-fix-project/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OutboxConfig configuración del outbox durable.
type OutboxConfig struct {
	// Path archivo bbolt del ledger
	Path string

	// MaxRetries intentos totales por orden antes de dejarla como dead letter
	MaxRetries int

	// RetryBackoff espera antes de cada reintento; el último valor se repite
	RetryBackoff []time.Duration

	// LeaseTimeout tiempo máximo de un intento; vencido, el registro vuelve a ser elegible
	LeaseTimeout time.Duration

	// RetryInterval periodo del loop de reintentos
	RetryInterval time.Duration

	// BatchSize registros revisados por tick
	BatchSize int
}

// DefaultOutboxConfig retorna configuración por defecto.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		Path:       "data/outbox.db",
		MaxRetries: 5,
		RetryBackoff: []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			5 * time.Second,
		},
		LeaseTimeout:  10 * time.Second,
		RetryInterval: 500 * time.Millisecond,
		BatchSize:     32,
	}
}

// OutboxSink persiste cada orden en el Ledger antes de entregarla al sink
// interno. Las entregas fallidas se reintentan desde un loop con backoff
// hasta MaxRetries; al agotarse quedan en el ledger con NextRetryAt=0.
//
// Deliver retorna nil una vez que la orden quedó persistida, aunque el primer
// intento falle. Solo si el ledger no puede escribir se entrega directo y se
// retorna el error del sink interno.
type OutboxSink struct {
	inner     Sink
	ledger    *Ledger
	cfg       OutboxConfig
	telemetry *telemetry.Client
	metrics   *metricbundle.SessionMetrics

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	retryTicker *time.Ticker
	closeOnce   sync.Once
}

// NewOutboxSink abre el ledger y arranca el loop de reintentos.
//
// Los registros pendientes de una ejecución anterior se retoman cuando vence
// su NextRetryAt.
func NewOutboxSink(ctx context.Context, inner Sink, cfg OutboxConfig, tel *telemetry.Client) (*OutboxSink, error) {
	if inner == nil {
		return nil, domain.NewError(domain.ErrInvalidConfig, "outbox requires an inner sink")
	}
	def := DefaultOutboxConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = def.LeaseTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}

	ledger, err := OpenLedger(cfg.Path)
	if err != nil {
		return nil, err
	}

	outboxCtx, cancel := context.WithCancel(ctx)
	o := &OutboxSink{
		inner:       inner,
		ledger:      ledger,
		cfg:         cfg,
		telemetry:   tel,
		metrics:     tel.SessionMetrics(),
		ctx:         outboxCtx,
		cancel:      cancel,
		retryTicker: time.NewTicker(cfg.RetryInterval),
	}

	o.wg.Add(1)
	go o.retryLoop()

	return o, nil
}

// Name implementa Named.
func (o *OutboxSink) Name() string {
	return "outbox+" + NameOf(o.inner)
}

// Ledger retorna el ledger subyacente.
func (o *OutboxSink) Ledger() *Ledger {
	return o.ledger
}

// Deliver implementa Sink.
func (o *OutboxSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	now := time.Now()
	rec := &OutboxRecord{
		ID:          utils.GenerateUUIDv7(),
		OrderID:     order.OrderID,
		Payload:     payload,
		Attempt:     1,
		NextRetryAt: now.Add(o.cfg.LeaseTimeout).UnixMilli(),
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
	if err := o.ledger.Put(rec); err != nil {
		o.telemetry.Error(ctx, "Outbox persist failed, delivering without durability", err,
			semconv.Fix.OrderID.String(order.OrderID),
		)
		return o.inner.Deliver(ctx, order)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.LeaseTimeout)
	defer cancel()

	if err := o.inner.Deliver(attemptCtx, order); err != nil {
		o.telemetry.Warn(ctx, "Delivery failed, kept in outbox",
			semconv.Fix.OrderID.String(order.OrderID),
			semconv.Fix.OutboxID.String(rec.ID),
			attribute.String("error", err.Error()),
		)
		o.handleFailure(ctx, rec, err)
		return nil
	}

	if err := o.ledger.Delete(rec.ID); err != nil {
		o.telemetry.Error(ctx, "Outbox delete failed", err,
			semconv.Fix.OutboxID.String(rec.ID),
		)
	}
	return nil
}

// Close detiene el loop de reintentos, cierra el ledger y el sink interno.
func (o *OutboxSink) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.cancel()
		o.retryTicker.Stop()
		o.wg.Wait()
		err = errors.Join(o.ledger.Close(), CloseSink(o.inner))
	})
	return err
}

// handleFailure agenda el próximo intento o marca el registro como agotado.
func (o *OutboxSink) handleFailure(ctx context.Context, rec *OutboxRecord, cause error) string {
	attempt := rec.Attempt
	if attempt == 0 {
		attempt = 1
	}

	result := "error"
	var nextRetry time.Time
	if attempt < o.cfg.MaxRetries {
		attempt++
		nextRetry = time.Now().Add(o.backoff(attempt - 1))
	} else {
		// Sin más reintentos: queda como dead letter.
		result = "exhausted"
		o.telemetry.Error(ctx, "Outbox record exhausted retries", cause,
			semconv.Fix.OutboxID.String(rec.ID),
			semconv.Fix.OrderID.String(rec.OrderID),
			semconv.Fix.Attempt.Int(attempt),
		)
	}

	if err := o.ledger.UpdateAttempt(rec.ID, attempt, nextRetry, cause.Error()); err != nil {
		o.telemetry.Error(ctx, "Outbox update failed", err,
			semconv.Fix.OutboxID.String(rec.ID),
		)
	}
	return result
}

func (o *OutboxSink) retryLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.retryTicker.C:
			due, err := o.ledger.ListDue(time.Now(), o.cfg.BatchSize)
			if err != nil {
				o.telemetry.Warn(o.ctx, "Outbox scan failed",
					attribute.String("error", err.Error()),
				)
				continue
			}
			for _, rec := range due {
				if o.ctx.Err() != nil {
					return
				}
				o.retryDelivery(rec)
			}
		case <-o.ctx.Done():
			return
		}
	}
}

func (o *OutboxSink) retryDelivery(rec *OutboxRecord) {
	attempt := rec.Attempt
	if attempt == 0 {
		attempt = 1
	}
	spanCtx, span := o.telemetry.StartOutboxRetrySpan(o.ctx, rec.ID, rec.OrderID, attempt)
	span.SetAttributes(attribute.Int64("lease_timeout_ms", o.cfg.LeaseTimeout.Milliseconds()))
	defer span.End()

	// Renueva el lease antes del intento.
	if err := o.ledger.UpdateAttempt(rec.ID, attempt, time.Now().Add(o.cfg.LeaseTimeout), rec.LastError); err != nil {
		o.telemetry.RecordError(spanCtx, err)
		return
	}

	var order domain.CanonicalOrder
	if err := utils.UnmarshalJSON(rec.Payload, &order); err != nil {
		o.telemetry.RecordError(spanCtx, err)
		span.AddEvent("payload_corrupt", trace.WithAttributes(attribute.Int("payload_bytes", len(rec.Payload))))
		_ = o.ledger.UpdateAttempt(rec.ID, attempt, time.Time{}, fmt.Sprintf("decode payload: %v", err))
		o.metrics.RecordOutboxRetry(spanCtx, "exhausted", attempt)
		return
	}

	attemptCtx, cancel := context.WithTimeout(spanCtx, o.cfg.LeaseTimeout)
	defer cancel()

	start := time.Now()
	if err := o.inner.Deliver(attemptCtx, order); err != nil {
		o.telemetry.RecordError(spanCtx, err)
		o.metrics.RecordDelivery(spanCtx, "error", NameOf(o.inner), float64(time.Since(start).Microseconds())/1000)
		result := o.handleFailure(spanCtx, &OutboxRecord{ID: rec.ID, OrderID: rec.OrderID, Attempt: attempt}, err)
		span.SetAttributes(attribute.String("result", result))
		o.metrics.RecordOutboxRetry(spanCtx, result, attempt)
		return
	}

	o.metrics.RecordDelivery(spanCtx, "ok", NameOf(o.inner), float64(time.Since(start).Microseconds())/1000)
	span.SetAttributes(attribute.String("result", "ok"))
	o.metrics.RecordOutboxRetry(spanCtx, "ok", attempt)
	if err := o.ledger.Delete(rec.ID); err != nil {
		o.telemetry.RecordError(spanCtx, err)
		return
	}
	o.telemetry.Info(spanCtx, "Outbox record delivered on retry",
		semconv.Fix.OutboxID.String(rec.ID),
		semconv.Fix.OrderID.String(rec.OrderID),
		semconv.Fix.Attempt.Int(attempt),
	)
}

// backoff espera antes del reintento número retry (1-based).
func (o *OutboxSink) backoff(retry int) time.Duration {
	if len(o.cfg.RetryBackoff) == 0 {
		return o.cfg.LeaseTimeout
	}
	idx := retry - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(o.cfg.RetryBackoff) {
		idx = len(o.cfg.RetryBackoff) - 1
	}
	return o.cfg.RetryBackoff[idx]
}
