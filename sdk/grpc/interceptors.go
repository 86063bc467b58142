package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
)

// traceIDHeader es la clave de metadata con el trace_id del gateway.
const traceIDHeader = "trace-id"

// orderFields son los campos del payload structpb que se copian como atributos.
var orderFields = []struct {
	field string
	key   attribute.Key
}{
	{"order_id", semconv.Fix.OrderID},
	{"symbol", semconv.Fix.Symbol},
}

// OrderAttributes extrae order_id y symbol de un request *structpb.Struct.
// Cualquier otro tipo de request no aporta atributos.
func OrderAttributes(req interface{}) []attribute.KeyValue {
	s, ok := req.(*structpb.Struct)
	if !ok || s == nil {
		return nil
	}
	var attrs []attribute.KeyValue
	for _, f := range orderFields {
		if v, ok := s.GetFields()[f.field]; ok && v.GetStringValue() != "" {
			attrs = append(attrs, f.key.String(v.GetStringValue()))
		}
	}
	return attrs
}

func rpcAttrs(method string, req interface{}, start time.Time) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", method),
		attribute.String("rpc.system", "grpc"),
		attribute.Float64("rpc.duration_ms", float64(time.Since(start).Microseconds())/1000),
	}
	return append(attrs, OrderAttributes(req)...)
}

// LoggingUnaryClientInterceptor registra cada entrega gRPC con duración,
// resultado y el order_id de la orden enviada.
func LoggingUnaryClientInterceptor(client *telemetry.Client) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		attrs := rpcAttrs(method, req, start)
		if err != nil {
			client.Error(ctx, "Order delivery over gRPC failed", err, attrs...)
		} else {
			client.Debug(ctx, "Order delivered over gRPC", attrs...)
		}

		return err
	}
}

// LoggingUnaryServerInterceptor registra cada orden recibida por el
// servidor de ingesta.
func LoggingUnaryServerInterceptor(client *telemetry.Client) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		attrs := rpcAttrs(info.FullMethod, req, start)
		if traceID := TraceIDFromIncoming(ctx); traceID != "" {
			attrs = append(attrs, attribute.String("upstream_trace_id", traceID))
		}

		if err != nil {
			client.Error(ctx, "Order ingest failed", err, attrs...)
		} else {
			client.Info(ctx, "Order ingested", attrs...)
		}

		return resp, err
	}
}

// TracingUnaryClientInterceptor abre un span de cliente por entrega, lo
// etiqueta con el order_id y propaga el trace_id vía metadata.
func TracingUnaryClientInterceptor(client *telemetry.Client) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		attrs := append([]attribute.KeyValue{
			attribute.String("rpc.method", method),
			attribute.String("rpc.system", "grpc"),
		}, OrderAttributes(req)...)
		ctx, span := client.StartSpan(ctx, telemetry.SpanGRPCClient,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)

		if traceID := telemetry.GetTraceID(ctx); traceID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, traceIDHeader, traceID)
		}

		err := invoker(ctx, method, req, reply, cc, opts...)
		telemetry.EndSpan(span, err)
		return err
	}
}

// ErrorHandlingUnaryClientInterceptor convierte errores gRPC a formato consistente.
func ErrorHandlingUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			if _, ok := status.FromError(err); !ok {
				err = status.Error(codes.Unknown, err.Error())
			}
		}
		return err
	}
}

// TraceIDFromIncoming extrae trace-id de la metadata entrante.
func TraceIDFromIncoming(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(traceIDHeader)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
