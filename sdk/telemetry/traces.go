package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fixconv "github.com/twh32/my-fix-project/sdk/telemetry/semconv"
)

// Nombres de spans del gateway.
const (
	SpanSessionFrame = "fixgate.session.frame"
	SpanOutboxRetry  = "fixgate.outbox.retry"
	SpanGRPCClient   = "fixgate.grpc.client"
)

// StartSpan inicia un span; sin tracer retorna el span del contexto.
func (c *Client) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return c.tracer.Start(ctx, name, opts...)
}

// StartFrameSpan abre el span de un frame FIX recibido por una sesión.
// Un seqNum <= 0 o un clOrdID vacío no se agregan como atributos.
func (c *Client) StartFrameSpan(ctx context.Context, sessionKey string, seqNum int, clOrdID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{fixconv.Fix.SessionKey.String(sessionKey)}
	if seqNum > 0 {
		attrs = append(attrs, fixconv.Fix.MsgSeqNum.Int(seqNum))
	}
	if clOrdID != "" {
		attrs = append(attrs, fixconv.Fix.ClOrdID.String(clOrdID))
	}
	return c.StartSpan(ctx, SpanSessionFrame,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

// StartOutboxRetrySpan abre el span de un reintento de entrega desde el outbox.
func (c *Client) StartOutboxRetrySpan(ctx context.Context, outboxID, orderID string, attempt int) (context.Context, trace.Span) {
	return c.StartSpan(ctx, SpanOutboxRetry,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			fixconv.Fix.OutboxID.String(outboxID),
			fixconv.Fix.OrderID.String(orderID),
			fixconv.Fix.Attempt.Int(attempt),
		),
	)
}

// RecordError registra err en el span actual junto con los atributos de
// evento del contexto (session key, order id).
func (c *Client) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	event := GetEventAttrs(ctx)
	all := make([]attribute.KeyValue, 0, len(event)+len(attrs))
	all = append(append(all, event...), attrs...)
	span.RecordError(err, trace.WithAttributes(all...))
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes añade atributos al span actual
func (c *Client) SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attrs...)
}

// EndSpan cierra span y lo marca con error si err != nil.
func EndSpan(span trace.Span, err error) {
	if err != nil && span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GetTraceID extrae el TraceID del contexto
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID extrae el SpanID del contexto
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
