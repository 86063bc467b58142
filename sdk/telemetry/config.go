package telemetry

import (
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config contiene la configuración para el cliente de telemetría
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLP Collector endpoints
	// Traces y métricas pueden vivir en endpoints/puertos distintos
	OTLPEndpoint        string // Compat: si se setea, aplica a ambos si los específicos están vacíos
	OTLPTracesEndpoint  string
	OTLPMetricsEndpoint string

	// Logs
	LogLevel  string    // DEBUG | INFO | WARN | ERROR
	LogWriter io.Writer // default os.Stdout

	// Atributos comunes a todos los logs, métricas y trazas
	CommonAttributes []attribute.KeyValue

	// SpanExporter reemplaza al exporter OTLP de trazas (exporta síncrono)
	SpanExporter sdktrace.SpanExporter

	// Habilitar/deshabilitar componentes
	EnableLogs    bool
	EnableMetrics bool
	EnableTraces  bool
}

// DefaultConfig retorna una configuración con valores por defecto
func DefaultConfig(serviceName, environment string) Config {
	return Config{
		ServiceName:         serviceName,
		ServiceVersion:      "0.0.1",
		Environment:         environment,
		OTLPEndpoint:        "localhost:4317",
		OTLPTracesEndpoint:  "",
		OTLPMetricsEndpoint: "",
		LogLevel:            "INFO",
		LogWriter:           os.Stdout,
		EnableLogs:          true,
		EnableMetrics:       true,
		EnableTraces:        true,
		CommonAttributes:    []attribute.KeyValue{},
	}
}

// tracesEndpoint resuelve el endpoint efectivo de trazas
func (c Config) tracesEndpoint() string {
	if c.OTLPTracesEndpoint != "" {
		return c.OTLPTracesEndpoint
	}
	return c.OTLPEndpoint
}

// metricsEndpoint resuelve el endpoint efectivo de métricas
func (c Config) metricsEndpoint() string {
	if c.OTLPMetricsEndpoint != "" {
		return c.OTLPMetricsEndpoint
	}
	return c.OTLPEndpoint
}

// Option es una función que modifica la configuración
type Option func(*Config)

// WithVersion establece la versión del servicio
func WithVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithOTLPEndpoint establece el endpoint del collector
func WithOTLPEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.OTLPEndpoint = endpoint
	}
}

// WithTracesEndpoint establece endpoint específico para trazas
func WithTracesEndpoint(endpoint string) Option {
	return func(c *Config) { c.OTLPTracesEndpoint = endpoint }
}

// WithMetricsEndpoint establece endpoint específico para métricas
func WithMetricsEndpoint(endpoint string) Option {
	return func(c *Config) { c.OTLPMetricsEndpoint = endpoint }
}

// WithLogLevel establece el nivel mínimo de logs (DEBUG, INFO, WARN, ERROR)
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// WithLogWriter redirige los logs JSON (tests, archivos)
func WithLogWriter(w io.Writer) Option {
	return func(c *Config) {
		if w != nil {
			c.LogWriter = w
		}
	}
}

// WithCommonAttributes añade atributos comunes
func WithCommonAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) {
		c.CommonAttributes = append(c.CommonAttributes, attrs...)
	}
}

// WithSpanExporter exporta las trazas a exp en lugar del collector OTLP
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(c *Config) {
		c.SpanExporter = exp
		c.EnableTraces = exp != nil
	}
}

// WithLogsDisabled deshabilita logs
func WithLogsDisabled() Option {
	return func(c *Config) {
		c.EnableLogs = false
	}
}

// WithMetricsDisabled deshabilita métricas
func WithMetricsDisabled() Option {
	return func(c *Config) {
		c.EnableMetrics = false
	}
}

// WithTracesDisabled deshabilita trazas
func WithTracesDisabled() Option {
	return func(c *Config) {
		c.EnableTraces = false
	}
}
