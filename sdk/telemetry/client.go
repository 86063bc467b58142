package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/twh32/my-fix-project/sdk/telemetry/metricbundle"
)

// Client es el cliente unificado de telemetría del gateway
type Client struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	// Providers (para shutdown)
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	// Instrumentos de métricas comunes
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram

	sessionMetrics *metricbundle.SessionMetrics
}

// New crea una nueva instancia del cliente de telemetría
func New(ctx context.Context, serviceName, environment string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig(serviceName, environment)
	for _, opt := range opts {
		opt(&cfg)
	}

	client := &Client{
		config:     cfg,
		meter:      metricnoop.NewMeterProvider().Meter(serviceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	// Crear resource común
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithAttributes(cfg.CommonAttributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Inicializar logs
	if cfg.EnableLogs {
		client.initLogs()
	}

	// Inicializar trazas
	if cfg.EnableTraces {
		if err := client.initTraces(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init traces: %w", err)
		}
	}

	// Inicializar métricas
	if cfg.EnableMetrics {
		if err := client.initMetrics(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
	}

	// El bundle existe siempre; sin exporter usa el meter noop.
	sm, err := metricbundle.NewSessionMetrics(client.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create session metrics: %w", err)
	}
	client.sessionMetrics = sm

	return client, nil
}

// NewNop crea un cliente sin exporters que descarta los logs. Pensado para tests.
func NewNop() *Client {
	c, err := New(context.Background(), "nop", "test",
		WithLogWriter(io.Discard),
		WithMetricsDisabled(),
		WithTracesDisabled(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Client) initLogs() {
	// Usar slog estándar con JSON handler
	handler := slog.NewJSONHandler(c.config.LogWriter, &slog.HandlerOptions{
		Level: parseLevel(c.config.LogLevel),
	})
	c.logger = slog.New(handler).With(
		slog.String("service", c.config.ServiceName),
		slog.String("env", c.config.Environment),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Client) initTraces(ctx context.Context, res *resource.Resource) error {
	if c.config.SpanExporter != nil {
		c.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(c.config.SpanExporter),
			sdktrace.WithResource(res),
		)
		c.tracer = c.tracerProvider.Tracer(c.config.ServiceName)
		return nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(c.config.tracesEndpoint()),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(c.tracerProvider)
	c.tracer = c.tracerProvider.Tracer(c.config.ServiceName)

	return nil
}

func (c *Client) initMetrics(ctx context.Context, res *resource.Resource) error {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(c.config.metricsEndpoint()),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(c.meterProvider)
	c.meter = c.meterProvider.Meter(c.config.ServiceName)

	return nil
}

// Shutdown cierra todos los exporters y libera recursos
func (c *Client) Shutdown(ctx context.Context) error {
	var errs []error

	if c.tracerProvider != nil {
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.meterProvider != nil {
		if err := c.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	return nil
}

// SessionMetrics retorna el bundle de métricas de sesiones FIX y entregas.
func (c *Client) SessionMetrics() *metricbundle.SessionMetrics {
	return c.sessionMetrics
}

// Meter retorna el meter del cliente (noop si las métricas están deshabilitadas).
func (c *Client) Meter() metric.Meter {
	return c.meter
}

// GetOrCreateCounter obtiene o crea un contador
func (c *Client) GetOrCreateCounter(name, description string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.counters[name]; exists {
		return counter, nil
	}

	counter, err := c.meter.Int64Counter(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.counters[name] = counter
	return counter, nil
}

// GetOrCreateHistogram obtiene o crea un histograma
func (c *Client) GetOrCreateHistogram(name, description string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, exists := c.histograms[name]; exists {
		return histogram, nil
	}

	histogram, err := c.meter.Float64Histogram(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.histograms[name] = histogram
	return histogram, nil
}

// ExtractAttributes retorna los atributos comunes y de evento del contexto
func ExtractAttributes(ctx context.Context) []attribute.KeyValue {
	common := GetCommonAttrs(ctx)
	event := GetEventAttrs(ctx)
	out := make([]attribute.KeyValue, 0, len(common)+len(event))
	out = append(out, common...)
	return append(out, event...)
}
