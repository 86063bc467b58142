// Package telemetry proporciona observabilidad para el gateway mediante los tres pilares:
//
// 1. Logs: Registro estructurado JSON (log/slog) compatible con Loki
// 2. Métricas: OpenTelemetry exportables vía OTLP
// 3. Trazas: Trazado distribuido con OpenTelemetry
//
// Uso básico:
//
//	client, err := telemetry.New(ctx, "fixgate", "production",
//	    telemetry.WithOTLPEndpoint("otel-collector:4317"),
//	    telemetry.WithLogLevel("INFO"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	ctx = telemetry.AppendCommonAttrs(ctx, semconv.Fix.SessionKey.String("SENDER"))
//	client.Info(ctx, "Session opened")
//
//	ctx, span := client.StartFrameSpan(ctx, "SENDER", 5, "ORDER123")
//	defer telemetry.EndSpan(span, err)
//
//	client.SessionMetrics().RecordReportSent(ctx)
//
// Para tests, NewNop crea un cliente sin exporters que descarta los logs y
// WithSpanExporter permite capturar spans en memoria.
package telemetry
