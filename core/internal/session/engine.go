// Package session implementa el motor de sesión FIX del lado aceptador.
//
// Cada conexión aceptada corre en su propia goroutine (Session.Run): lee con
// deadline, decodifica frames, valida MsgSeqNum, responde con un Execution
// Report y encola la orden enriquecida para entrega. Sin tráfico durante el
// intervalo de heartbeat se envía un 35=0.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/fix"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/metricbundle"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
	"github.com/twh32/my-fix-project/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
)

// State estado de la sesión.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

// String implementa fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Enqueuer recibe las órdenes canónicas (delivery.Dispatcher).
type Enqueuer interface {
	Enqueue(ctx context.Context, order domain.CanonicalOrder) error
}

// Config parámetros de sesión.
type Config struct {
	// HeartbeatInterval timeout de lectura que dispara un heartbeat
	HeartbeatInterval time.Duration

	// WriteTimeout deadline de cada escritura
	WriteTimeout time.Duration

	// MaxFrameSize bytes máximos acumulados sin cerrar un frame
	MaxFrameSize int

	// ValidateChecksum valida tags 9 y 10 de cada frame
	ValidateChecksum bool
}

// DefaultConfig retorna configuración por defecto.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: DefaultHeartbeatInterval,
		WriteTimeout:      5 * time.Second,
		MaxFrameSize:      fix.DefaultMaxFrameSize,
		ValidateChecksum:  true,
	}
}

// Deps dependencias compartidas entre sesiones.
type Deps struct {
	Tracker     *SequenceTracker
	Transformer *domain.Transformer
	Dispatcher  Enqueuer
	Telemetry   *telemetry.Client

	// Duplicates ventana de ClOrdID repetidos; nil la deshabilita
	Duplicates *DuplicateWindow
}

// Razones de cierre registradas en fixgate.session.closed.
const (
	closeReasonEOF             = "eof"
	closeReasonError           = "error"
	closeReasonShutdown        = "shutdown"
	closeReasonHeartbeatFailed = "heartbeat_failed"
	closeReasonWriteFailed     = "write_failed"
	closeReasonPanic           = "panic"
)

// Session una conexión FIX. La usa una sola goroutine; solo State, Key y
// LastActivity son seguros desde otras.
type Session struct {
	id          string
	conn        net.Conn
	reader      *fix.FrameReader
	writer      *fix.FrameWriter
	heartbeat   Heartbeat
	tracker     *SequenceTracker
	transformer *domain.Transformer
	dispatcher  Enqueuer
	duplicates  *DuplicateWindow
	telemetry   *telemetry.Client
	metrics     *metricbundle.SessionMetrics

	key          atomic.Value // string
	keyKnown     bool
	state        atomic.Int32
	lastActivity atomic.Int64
	closeReason  string
}

// New crea una sesión sobre conn en estado Connecting.
func New(conn net.Conn, deps Deps, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if deps.Tracker == nil {
		deps.Tracker = NewSequenceTracker()
	}
	if deps.Transformer == nil {
		deps.Transformer = domain.NewTransformer()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewNop()
	}

	decOpts := []fix.DecoderOption{fix.WithMaxFrameSize(cfg.MaxFrameSize)}
	if !cfg.ValidateChecksum {
		decOpts = append(decOpts, fix.WithoutChecksumValidation())
	}

	reader := fix.NewFrameReader(conn, fix.NewDecoder(decOpts...))
	reader.SetTimeout(cfg.HeartbeatInterval)
	writer := fix.NewFrameWriter(conn)
	writer.SetTimeout(cfg.WriteTimeout)

	s := &Session{
		id:          utils.GenerateUUIDv7(),
		conn:        conn,
		reader:      reader,
		writer:      writer,
		heartbeat:   NewHeartbeat(cfg.HeartbeatInterval),
		tracker:     deps.Tracker,
		transformer: deps.Transformer,
		dispatcher:  deps.Dispatcher,
		duplicates:  deps.Duplicates,
		telemetry:   deps.Telemetry,
		metrics:     deps.Telemetry.SessionMetrics(),
	}
	s.key.Store("")
	s.state.Store(int32(StateConnecting))
	s.touch()
	return s
}

// ID identificador único de la sesión (UUIDv7).
func (s *Session) ID() string { return s.id }

// Key session key (SenderCompID del primer frame); vacía hasta recibirlo.
func (s *Session) Key() string { return s.key.Load().(string) }

// State estado actual.
func (s *Session) State() State { return State(s.state.Load()) }

// LastActivity momento del último byte recibido.
func (s *Session) LastActivity() time.Time {
	return time.UnixMilli(s.lastActivity.Load())
}

// RemoteAddr dirección del peer.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Run atiende la conexión hasta EOF, error de I/O o cancelación de ctx.
//
// La conexión se cierra siempre al salir. Retorna nil en cierres normales
// (EOF, shutdown) y el error de I/O en los demás casos.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx = telemetry.AppendCommonAttrs(ctx,
		attribute.String("session_id", s.id),
		semconv.Fix.RemoteAddr.String(s.RemoteAddr()),
	)

	defer func() {
		if r := recover(); r != nil {
			s.closeReason = closeReasonPanic
			err = fmt.Errorf("session panic: %v", r)
			s.telemetry.Error(ctx, "Session panic", err)
		}
		s.conn.Close()
		s.state.Store(int32(StateClosed))
		s.metrics.RecordSessionClosed(ctx, s.closeReason)
		s.telemetry.Info(ctx, "Session closed",
			semconv.Fix.SessionKey.String(s.Key()),
			semconv.Fix.SessionState.String(StateClosed.String()),
			semconv.Metrics.Reason.String(s.closeReason),
		)
	}()

	// Cancelar ctx desbloquea la lectura en curso.
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	s.state.Store(int32(StateActive))
	s.metrics.RecordSessionOpened(ctx)
	s.telemetry.Info(ctx, "Session active",
		semconv.Fix.SessionState.String(StateActive.String()),
		attribute.Int64("heartbeat_interval_ms", s.heartbeat.Interval.Milliseconds()),
	)

	for {
		_, err := s.reader.Fill()
		if err != nil {
			if errors.Is(err, fix.ErrReadTimeout) {
				if hbErr := s.heartbeat.Send(s.writer); hbErr != nil {
					if ctx.Err() != nil {
						s.closeReason = closeReasonShutdown
						return nil
					}
					s.closeReason = closeReasonHeartbeatFailed
					s.telemetry.Error(ctx, "Heartbeat write failed", hbErr,
						semconv.Fix.SessionKey.String(s.Key()),
					)
					return hbErr
				}
				s.metrics.RecordHeartbeatSent(ctx)
				s.telemetry.Debug(ctx, "Heartbeat sent",
					semconv.Fix.SessionKey.String(s.Key()),
				)
				continue
			}
			if ctx.Err() != nil {
				s.closeReason = closeReasonShutdown
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.closeReason = closeReasonEOF
				return nil
			}
			s.closeReason = closeReasonError
			s.telemetry.Warn(ctx, "Session read failed",
				semconv.Fix.SessionKey.String(s.Key()),
				attribute.String("error", err.Error()),
			)
			return err
		}

		s.touch()
		if err := s.drain(ctx); err != nil {
			if ctx.Err() != nil {
				s.closeReason = closeReasonShutdown
				return nil
			}
			s.closeReason = closeReasonWriteFailed
			s.telemetry.Error(ctx, "Execution Report write failed", err,
				semconv.Fix.SessionKey.String(s.Key()),
			)
			return err
		}
	}
}

// drain procesa todos los frames completos del buffer, en orden.
func (s *Session) drain(ctx context.Context) error {
	for {
		msg, err := s.reader.Next()
		if errors.Is(err, fix.ErrIncomplete) {
			return nil
		}
		if err != nil {
			s.rejectFrame(ctx, err)
			continue
		}
		if err := s.processFrame(ctx, msg); err != nil {
			return err
		}
	}
}

func (s *Session) rejectFrame(ctx context.Context, err error) {
	code := domain.DecodeErrorCode(err)
	s.metrics.RecordFrameRejected(ctx, string(code))

	attrs := []attribute.KeyValue{
		semconv.Fix.SessionKey.String(s.Key()),
		semconv.Fix.ErrorCode.String(string(code)),
		attribute.String("error", err.Error()),
	}
	var decErr *fix.DecodeError
	if errors.As(err, &decErr) && len(decErr.Raw) <= 512 {
		attrs = append(attrs, semconv.Fix.Frame.String(fix.Printable(decErr.Raw)))
	}
	s.telemetry.Warn(ctx, "Frame discarded", attrs...)
}

// processFrame maneja un frame válido. Solo retorna error si no se pudo
// escribir el Execution Report.
func (s *Session) processFrame(ctx context.Context, msg *fix.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordFrameRejected(ctx, closeReasonPanic)
			s.telemetry.Error(ctx, "Frame processing panic", fmt.Errorf("%v", r),
				semconv.Fix.SessionKey.String(s.Key()),
				semconv.Fix.Frame.String(msg.String()),
			)
			err = nil
		}
	}()

	s.discoverKey(ctx, msg)
	key := s.Key()
	msgType := msg.MsgType()
	s.metrics.RecordFrameDecoded(ctx, msgType)

	seqNum, _ := msg.GetInt(fix.TagMsgSeqNum)
	clOrdID, _ := msg.GetString(fix.TagClOrdID)
	ctx, span := s.telemetry.StartFrameSpan(ctx, key, seqNum, clOrdID)
	defer func() { telemetry.EndSpan(span, err) }()
	s.telemetry.SetSpanAttributes(ctx, semconv.Fix.MsgType.String(msgType))

	if err := domain.ValidateFrame(msg); err != nil {
		var ge *domain.GatewayError
		missing := ""
		if errors.As(err, &ge) {
			missing, _ = ge.Details["missing_tags"].(string)
		}
		s.telemetry.Warn(ctx, "Frame missing standard tags",
			semconv.Fix.SessionKey.String(key),
			semconv.Fix.MsgType.String(msgType),
			semconv.Fix.MissingTags.String(missing),
		)
	}

	s.checkSequence(ctx, key, msg)

	report := BuildExecutionReport(msg)
	if err := s.writer.WriteMessage(report); err != nil {
		return err
	}
	s.metrics.RecordReportSent(ctx)

	order := s.transformer.Transform(msg)
	s.checkDuplicate(ctx, key, msg)
	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(ctx, order); err != nil {
			s.telemetry.Debug(ctx, "Order not enqueued",
				semconv.Fix.OrderID.String(order.OrderID),
				attribute.String("error", err.Error()),
			)
		}
	}

	s.telemetry.Debug(ctx, "Frame processed",
		semconv.Fix.SessionKey.String(key),
		semconv.Fix.MsgType.String(msgType),
		semconv.Fix.ClOrdID.String(order.OrderID),
	)
	return nil
}

// discoverKey fija la session key con el primer frame.
func (s *Session) discoverKey(ctx context.Context, msg *fix.Message) {
	if s.keyKnown {
		return
	}
	s.keyKnown = true

	key, ok := msg.GetString(fix.TagSenderCompID)
	if !ok || key == "" {
		key = UnknownSessionKey
		s.telemetry.Warn(ctx, "First frame without SenderCompID, using shared key",
			semconv.Fix.SessionKey.String(key),
		)
	}
	s.key.Store(key)
	s.telemetry.Info(ctx, "Session key discovered",
		semconv.Fix.SessionKey.String(key),
	)
}

func (s *Session) checkSequence(ctx context.Context, key string, msg *fix.Message) {
	received, err := msg.GetInt(fix.TagMsgSeqNum)
	if err != nil {
		expected := s.tracker.Skip(key)
		s.telemetry.Warn(ctx, "Missing or invalid MsgSeqNum",
			semconv.Fix.SessionKey.String(key),
			semconv.Fix.ExpectedSeqNum.Int(expected),
			attribute.String("error", err.Error()),
		)
		return
	}

	ok, expected := s.tracker.ValidateAndAdvance(key, received)
	if ok {
		return
	}
	s.metrics.RecordSequenceGap(ctx)
	s.telemetry.SetSpanAttributes(ctx,
		semconv.Fix.ExpectedSeqNum.Int(expected),
		semconv.Fix.ErrorCode.String(string(domain.ErrSequenceGap)),
	)
	s.telemetry.Warn(ctx, "Sequence number mismatch",
		semconv.Fix.SessionKey.String(key),
		semconv.Fix.MsgSeqNum.Int(received),
		semconv.Fix.ExpectedSeqNum.Int(expected),
		semconv.Fix.ErrorCode.String(string(domain.ErrSequenceGap)),
	)
}

// checkDuplicate registra un warning si el ClOrdID ya se vio en la ventana.
func (s *Session) checkDuplicate(ctx context.Context, key string, msg *fix.Message) {
	if s.duplicates == nil {
		return
	}
	clOrdID, ok := msg.GetString(fix.TagClOrdID)
	if !ok || clOrdID == "" {
		return
	}
	if dup, entry := s.duplicates.Observe(key, clOrdID, time.Now()); dup {
		s.telemetry.Warn(ctx, "Duplicate ClOrdID",
			semconv.Fix.SessionKey.String(key),
			semconv.Fix.ClOrdID.String(clOrdID),
			attribute.Int("count", entry.Count),
			attribute.String("first_seen", entry.FirstSeen.UTC().Format(time.RFC3339Nano)),
		)
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
}
