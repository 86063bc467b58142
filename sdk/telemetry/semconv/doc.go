// Package semconv define convenciones semánticas para atributos OpenTelemetry
// utilizados en logs, métricas y trazas del gateway.
//
// Uso básico:
//
//	client.Info(ctx, "Session opened",
//	    semconv.Logs.Component.String("session"),
//	    semconv.Fix.SessionKey.String("SENDER"),
//	)
package semconv
