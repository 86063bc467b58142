package metricbundle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SessionMetrics bundle de métricas del gateway FIX.
//
// # Métricas de Conteo
//
//   - fixgate.session.opened: conexiones aceptadas
//   - fixgate.session.closed: sesiones cerradas (reason=eof/error/shutdown/heartbeat_failed/write_failed/panic)
//   - fixgate.frame.decoded: frames válidos decodificados
//   - fixgate.frame.rejected: frames descartados por el codec (reason)
//   - fixgate.sequence.gap: mismatches de MsgSeqNum
//   - fixgate.heartbeat.sent: heartbeats enviados
//   - fixgate.report.sent: Execution Reports enviados
//   - fixgate.delivery.result: entregas por status (ok/error/dropped) y sink
//   - fixgate.outbox.retry: reintentos del outbox
//
// # Métricas de Latencia
//
//   - fixgate.delivery.latency: latencia de Deliver en ms
//
// # Uso
//
//	metrics := client.SessionMetrics()
//	metrics.RecordSessionOpened(ctx)
//	metrics.RecordDelivery(ctx, "ok", "kafka", 3.2)
type SessionMetrics struct {
	// Counters
	SessionOpened  metric.Int64Counter
	SessionClosed  metric.Int64Counter
	FrameDecoded   metric.Int64Counter
	FrameRejected  metric.Int64Counter
	SequenceGap    metric.Int64Counter
	HeartbeatSent  metric.Int64Counter
	ReportSent     metric.Int64Counter
	DeliveryResult metric.Int64Counter
	OutboxRetry    metric.Int64Counter

	// Histograms
	DeliveryLatency metric.Float64Histogram
}

// NewSessionMetrics crea el bundle de métricas de sesión.
func NewSessionMetrics(meter metric.Meter) (*SessionMetrics, error) {
	m := &SessionMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.SessionOpened, "fixgate.session.opened", "Conexiones FIX aceptadas", "{session}"},
		{&m.SessionClosed, "fixgate.session.closed", "Sesiones FIX cerradas", "{session}"},
		{&m.FrameDecoded, "fixgate.frame.decoded", "Frames FIX decodificados", "{frame}"},
		{&m.FrameRejected, "fixgate.frame.rejected", "Frames FIX descartados por el codec", "{frame}"},
		{&m.SequenceGap, "fixgate.sequence.gap", "Mismatches de MsgSeqNum", "{gap}"},
		{&m.HeartbeatSent, "fixgate.heartbeat.sent", "Heartbeats enviados", "{message}"},
		{&m.ReportSent, "fixgate.report.sent", "Execution Reports enviados", "{message}"},
		{&m.DeliveryResult, "fixgate.delivery.result", "Resultado de entregas al sink", "{order}"},
		{&m.OutboxRetry, "fixgate.outbox.retry", "Reintentos de entrega desde el outbox", "{attempt}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	latency, err := meter.Float64Histogram(
		"fixgate.delivery.latency",
		metric.WithDescription("Latencia de Deliver en el sink"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.DeliveryLatency = latency

	return m, nil
}

// RecordSessionOpened registra una conexión aceptada.
func (m *SessionMetrics) RecordSessionOpened(ctx context.Context, attrs ...attribute.KeyValue) {
	m.SessionOpened.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSessionClosed registra el cierre de una sesión.
//
// reason: "eof" | "error" | "shutdown" | "heartbeat_failed" | "write_failed" | "panic"
func (m *SessionMetrics) RecordSessionClosed(ctx context.Context, reason string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("reason", reason),
	}
	baseAttrs = append(baseAttrs, attrs...)
	m.SessionClosed.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordFrameDecoded registra un frame válido.
func (m *SessionMetrics) RecordFrameDecoded(ctx context.Context, msgType string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("msg_type", msgType),
	}
	baseAttrs = append(baseAttrs, attrs...)
	m.FrameDecoded.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordFrameRejected registra un frame descartado.
//
// reason: domain.ErrorCode (CHECKSUM_MISMATCH, BODY_LENGTH_MISMATCH, ...)
func (m *SessionMetrics) RecordFrameRejected(ctx context.Context, reason string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("reason", reason),
	}
	baseAttrs = append(baseAttrs, attrs...)
	m.FrameRejected.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordSequenceGap registra un mismatch de secuencia.
func (m *SessionMetrics) RecordSequenceGap(ctx context.Context, attrs ...attribute.KeyValue) {
	m.SequenceGap.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHeartbeatSent registra un heartbeat enviado.
func (m *SessionMetrics) RecordHeartbeatSent(ctx context.Context, attrs ...attribute.KeyValue) {
	m.HeartbeatSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReportSent registra un Execution Report enviado.
func (m *SessionMetrics) RecordReportSent(ctx context.Context, attrs ...attribute.KeyValue) {
	m.ReportSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDelivery registra el resultado de una entrega y su latencia.
//
// status: "ok" | "error" | "dropped"
func (m *SessionMetrics) RecordDelivery(ctx context.Context, status, sink string, latencyMs float64, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("sink", sink),
	}
	baseAttrs = append(baseAttrs, attrs...)
	m.DeliveryResult.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
	if status != "dropped" {
		m.DeliveryLatency.Record(ctx, latencyMs, metric.WithAttributes(baseAttrs...))
	}
}

// RecordOutboxRetry registra un reintento del outbox.
//
// result: "ok" | "error" | "exhausted"
func (m *SessionMetrics) RecordOutboxRetry(ctx context.Context, result string, attempt int, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("result", result),
		attribute.Int("attempt", attempt),
	}
	baseAttrs = append(baseAttrs, attrs...)
	m.OutboxRetry.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}
