package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/twh32/my-fix-project/core/internal/delivery"
	"github.com/twh32/my-fix-project/core/internal/session"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
)

// Gateway servicio principal: acepta conexiones FIX y corre una sesión por conexión.
//
// Responsabilidades:
//   - Listener TCP y accept loop
//   - Tracker de secuencias compartido entre sesiones
//   - Dispatcher y sink de órdenes canónicas
//   - Shutdown ordenado (listener, sesiones, cola, sink, telemetría)
type Gateway struct {
	config *Config

	listener net.Listener

	// Sesiones activas
	sessions   map[string]*session.Session // key: session id
	sessionsMu sync.RWMutex

	// Estado compartido
	tracker     *session.SequenceTracker
	duplicates  *session.DuplicateWindow
	transformer *domain.Transformer
	sink        delivery.Sink
	dispatcher  *delivery.Dispatcher

	// Telemetría
	telemetry     *telemetry.Client
	ownsTelemetry bool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Estado
	mu      sync.RWMutex
	started bool
	closed  bool
}

// Option personaliza New.
type Option func(*Gateway)

// WithTelemetry usa un cliente de telemetría externo; el gateway no lo cierra.
func WithTelemetry(tel *telemetry.Client) Option {
	return func(g *Gateway) {
		g.telemetry = tel
		g.ownsTelemetry = false
	}
}

// WithSink reemplaza el sink construido desde la configuración.
func WithSink(sink delivery.Sink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithListener usa un listener ya abierto en lugar de server/listen_addr.
func WithListener(lis net.Listener) Option {
	return func(g *Gateway) { g.listener = lis }
}

// WithTransformer reemplaza el transformer (reloj fijo en tests).
func WithTransformer(tr *domain.Transformer) Option {
	return func(g *Gateway) { g.transformer = tr }
}

// New crea el gateway: telemetría, sink, dispatcher y tracker.
//
// Example:
//
//	cfg, _ := internal.LoadConfigFromEtcd(ctx)
//	gw, err := internal.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(); err != nil {
//	    return err
//	}
//	defer gw.Shutdown(context.Background())
func New(ctx context.Context, config *Config, opts ...Option) (*Gateway, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithCancel(ctx)

	g := &Gateway{
		config:        config,
		sessions:      make(map[string]*session.Session),
		tracker:       session.NewSequenceTracker(),
		ownsTelemetry: true,
		ctx:           gwCtx,
		cancel:        cancel,
	}
	if config.DuplicateTTL > 0 {
		g.duplicates = session.NewDuplicateWindow(config.DuplicateTTL)
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.transformer == nil {
		g.transformer = domain.NewTransformer()
	}

	// Inicializar telemetría usando SDK
	if g.telemetry == nil {
		tel, err := newTelemetry(gwCtx, config)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		g.telemetry = tel
	}

	g.ctx = telemetry.AppendCommonAttrs(g.ctx,
		semconv.Logs.Component.String("gateway"),
	)

	// Sink y dispatcher sobreviven a la cancelación del contexto raíz para
	// drenar la cola durante Shutdown.
	deliveryCtx := context.WithoutCancel(g.ctx)
	if g.sink == nil {
		sink, err := delivery.NewSink(deliveryCtx, config.Delivery, g.telemetry)
		if err != nil {
			g.abort()
			return nil, err
		}
		g.sink = sink
	}
	g.dispatcher = delivery.NewDispatcher(deliveryCtx, g.sink, config.Delivery.Dispatcher, g.telemetry)

	g.telemetry.Info(g.ctx, "Gateway initialized",
		attribute.String("listen_addr", config.ListenAddr),
		attribute.String("sink", delivery.NameOf(g.sink)),
		attribute.Int64("heartbeat_interval_ms", config.Session.HeartbeatInterval.Milliseconds()),
		attribute.Bool("validate_checksum", config.Session.ValidateChecksum),
	)

	return g, nil
}

func newTelemetry(ctx context.Context, config *Config) (*telemetry.Client, error) {
	telOpts := []telemetry.Option{
		telemetry.WithVersion(config.ServiceVersion),
		telemetry.WithLogLevel(config.LogLevel),
	}
	if config.OTLPEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithOTLPEndpoint(config.OTLPEndpoint))
	}
	if config.MetricsEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithMetricsEndpoint(config.MetricsEndpoint))
	}
	if !config.MetricsEnabled {
		telOpts = append(telOpts, telemetry.WithMetricsDisabled())
	}
	if !config.TracesEnabled {
		telOpts = append(telOpts, telemetry.WithTracesDisabled())
	}
	return telemetry.New(ctx, config.ServiceName, config.Environment, telOpts...)
}

// abort libera lo creado por New cuando falla a mitad de camino.
func (g *Gateway) abort() {
	g.cancel()
	if g.ownsTelemetry {
		_ = g.telemetry.Shutdown(context.Background())
	}
}

// Start abre el listener (si no se inyectó) y arranca el accept loop.
func (g *Gateway) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("gateway already closed")
	}
	if g.started {
		return fmt.Errorf("gateway already started")
	}

	if g.listener == nil {
		lis, err := net.Listen("tcp", g.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", g.config.ListenAddr, err)
		}
		g.listener = lis
	}
	g.started = true

	g.telemetry.Info(g.ctx, "FIX listener ready",
		attribute.String("address", g.listener.Addr().String()),
	)

	g.wg.Add(1)
	go g.acceptLoop()

	if g.duplicates != nil {
		g.wg.Add(1)
		go g.duplicateCleanupLoop()
	}

	return nil
}

// Addr dirección efectiva del listener; nil antes de Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Tracker tracker de secuencias compartido.
func (g *Gateway) Tracker() *session.SequenceTracker { return g.tracker }

// SessionCount cantidad de sesiones vivas.
func (g *Gateway) SessionCount() int {
	g.sessionsMu.RLock()
	defer g.sessionsMu.RUnlock()
	return len(g.sessions)
}

// Sessions snapshot de las sesiones vivas.
func (g *Gateway) Sessions() []*session.Session {
	g.sessionsMu.RLock()
	defer g.sessionsMu.RUnlock()

	out := make([]*session.Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		out = append(out, s)
	}
	return out
}

func (g *Gateway) acceptLoop() {
	defer g.wg.Done()

	var tempDelay time.Duration
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if g.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// Errores transitorios (EMFILE, ECONNABORTED): esperar y seguir.
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			g.telemetry.Warn(g.ctx, "Accept failed",
				attribute.String("error", err.Error()),
				attribute.Int64("retry_in_ms", tempDelay.Milliseconds()),
			)
			select {
			case <-time.After(tempDelay):
				continue
			case <-g.ctx.Done():
				return
			}
		}
		tempDelay = 0
		g.serve(conn)
	}
}

// serve registra la sesión y la corre en su propia goroutine.
func (g *Gateway) serve(conn net.Conn) {
	s := session.New(conn, session.Deps{
		Tracker:     g.tracker,
		Transformer: g.transformer,
		Dispatcher:  g.dispatcher,
		Telemetry:   g.telemetry,
		Duplicates:  g.duplicates,
	}, g.config.Session)

	g.registerSession(s)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.unregisterSession(s)

		if err := s.Run(g.ctx); err != nil {
			g.telemetry.Debug(g.ctx, "Session ended with error",
				attribute.String("session_id", s.ID()),
				attribute.String("error", err.Error()),
			)
		}
	}()
}

// duplicateCleanupLoop limpia ClOrdID vencidos de la ventana de duplicados.
func (g *Gateway) duplicateCleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := g.duplicates.Cleanup(time.Now())
			if removed > 0 {
				g.telemetry.Debug(g.ctx, "Duplicate window cleanup completed",
					attribute.Int("removed_entries", removed),
				)
			}

		case <-g.ctx.Done():
			return
		}
	}
}

func (g *Gateway) registerSession(s *session.Session) {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()
	g.sessions[s.ID()] = s

	g.telemetry.Debug(g.ctx, "Session registered",
		attribute.String("session_id", s.ID()),
		semconv.Fix.RemoteAddr.String(s.RemoteAddr()),
		attribute.Int("total_sessions", len(g.sessions)),
	)
}

func (g *Gateway) unregisterSession(s *session.Session) {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()
	delete(g.sessions, s.ID())

	g.telemetry.Debug(g.ctx, "Session unregistered",
		attribute.String("session_id", s.ID()),
		semconv.Fix.SessionKey.String(s.Key()),
		attribute.Int("total_sessions", len(g.sessions)),
	)
}

// Shutdown detiene el gateway gracefully.
//
// Orden: listener, sesiones (cancelación de contexto cierra cada conexión),
// drenado de la cola acotado por ctx, sink y telemetría.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	lis := g.listener
	g.mu.Unlock()

	g.telemetry.Info(g.ctx, "Gateway shutting down...",
		attribute.Int("active_sessions", g.SessionCount()),
		semconv.Fix.QueueDepth.Int(g.dispatcher.Depth()),
	)

	g.cancel()

	var errs []error
	if lis != nil {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting sessions: %w", ctx.Err()))
	}

	if err := g.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain dispatcher: %w", err))
	}
	if err := delivery.CloseSink(g.sink); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}

	g.telemetry.Info(context.WithoutCancel(g.ctx), "Gateway stopped",
		attribute.Int("tracked_sessions", g.tracker.Len()),
	)

	if g.ownsTelemetry {
		if err := g.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}
