// Package initiator implementa el lado cliente de una sesión FIX 4.2: envía
// NewOrderSingle con su propia secuencia y lee Execution Reports y heartbeats.
//
// Lo usan el CLI y las pruebas de integración del gateway.
package initiator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/twh32/my-fix-project/sdk/fix"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/telemetry/semconv"
)

// ErrClosed se retorna al operar sobre un cliente cerrado.
var ErrClosed = errors.New("initiator: client closed")

// Config configuración del cliente.
type Config struct {
	Addr         string
	SenderCompID string
	TargetCompID string

	// HeartBtInt valor anunciado en tag 108 (segundos)
	HeartBtInt int

	DialTimeout  time.Duration
	DialAttempts int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig retorna configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:5001",
		SenderCompID: "SENDER",
		TargetCompID: "TARGET",
		HeartBtInt:   30,
		DialTimeout:  5 * time.Second,
		DialAttempts: 3,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Order datos de negocio de un NewOrderSingle.
type Order struct {
	ClOrdID  string
	Symbol   string
	Quantity int
	Price    decimal.Decimal
}

// Client sesión FIX del lado initiator.
//
// SendOrder es seguro para uso concurrente; la lectura (ReadMessage,
// AwaitReport) debe hacerse desde una sola goroutine.
type Client struct {
	cfg       Config
	conn      net.Conn
	reader    *fix.FrameReader
	writer    *fix.FrameWriter
	telemetry *telemetry.Client

	// Clock reloj para SendingTime (52)
	Clock func() time.Time

	mu      sync.Mutex
	nextSeq int
	closed  bool
}

// Dial conecta al gateway con reintentos exponenciales.
func Dial(ctx context.Context, cfg Config, tel *telemetry.Client) (*Client, error) {
	def := DefaultConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = def.DialAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	attempt := 0
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		attempt++
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
		if err != nil && tel != nil {
			tel.Warn(ctx, "Dial failed",
				attribute.String("addr", cfg.Addr),
				attribute.Int("attempt", attempt),
				attribute.String("error", err.Error()),
			)
		}
		return conn, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(cfg.DialAttempts)))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("dial %s after %d attempts: %w", cfg.Addr, attempt, err)
	}
	return NewClient(conn, cfg, tel), nil
}

// NewClient crea un cliente sobre una conexión existente. La secuencia arranca en 1.
func NewClient(conn net.Conn, cfg Config, tel *telemetry.Client) *Client {
	def := DefaultConfig()
	if cfg.SenderCompID == "" {
		cfg.SenderCompID = def.SenderCompID
	}
	if cfg.TargetCompID == "" {
		cfg.TargetCompID = def.TargetCompID
	}
	if cfg.HeartBtInt <= 0 {
		cfg.HeartBtInt = def.HeartBtInt
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}

	reader := fix.NewFrameReader(conn, fix.NewDecoder())
	reader.SetTimeout(cfg.ReadTimeout)
	writer := fix.NewFrameWriter(conn)
	writer.SetTimeout(cfg.WriteTimeout)

	return &Client{
		cfg:       cfg,
		conn:      conn,
		reader:    reader,
		writer:    writer,
		telemetry: tel,
		Clock:     time.Now,
		nextSeq:   1,
	}
}

// NextSeqNum secuencia que llevará el próximo mensaje.
func (c *Client) NextSeqNum() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSeq
}

// SetNextSeqNum fuerza la próxima secuencia (pruebas de gaps).
func (c *Client) SetNextSeqNum(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq = n
}

// NewOrderSingle construye un 35=D con la secuencia dada.
func (c *Client) NewOrderSingle(order Order, seq int) *fix.Message {
	return BuildNewOrderSingle(c.cfg, order, seq, c.Clock())
}

// BuildNewOrderSingle arma un 35=D con el header de cfg y SendingTime sentAt.
func BuildNewOrderSingle(cfg Config, order Order, seq int, sentAt time.Time) *fix.Message {
	heartBtInt := cfg.HeartBtInt
	if heartBtInt <= 0 {
		heartBtInt = DefaultConfig().HeartBtInt
	}

	m := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	m.AppendString(fix.TagClOrdID, order.ClOrdID)
	m.AppendInt(fix.TagMsgSeqNum, seq)
	m.AppendString(fix.TagSenderCompID, cfg.SenderCompID)
	m.AppendString(fix.TagTargetCompID, cfg.TargetCompID)
	m.AppendUTCTimestamp(fix.TagSendingTime, sentAt)
	m.AppendString(fix.TagSymbol, order.Symbol)
	m.AppendInt(fix.TagOrderQty, order.Quantity)
	m.AppendString(fix.TagPrice, priceText(order.Price))
	m.AppendInt(fix.TagEncryptMethod, 0)
	m.AppendInt(fix.TagHeartBtInt, heartBtInt)
	return m
}

// priceText formatea el precio con la misma cantidad de decimales con que se
// parseó, sin redondear ("101.50" y "101.505" quedan iguales).
func priceText(p decimal.Decimal) string {
	if exp := p.Exponent(); exp < 0 {
		return p.StringFixed(-exp)
	}
	return p.String()
}

// SendOrder envía la orden con la siguiente secuencia y la retorna.
func (c *Client) SendOrder(ctx context.Context, order Order) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	seq := c.nextSeq
	msg := c.NewOrderSingle(order, seq)
	if err := c.writer.WriteMessage(msg); err != nil {
		return 0, fmt.Errorf("send order %s: %w", order.ClOrdID, err)
	}
	c.nextSeq++

	c.telemetry.Debug(ctx, "Order sent",
		semconv.Fix.ClOrdID.String(order.ClOrdID),
		semconv.Fix.MsgSeqNum.Int(seq),
		semconv.Fix.Symbol.String(order.Symbol),
	)
	return seq, nil
}

// SendRaw escribe bytes tal cual (frames corruptos en pruebas).
func (c *Client) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.writer.WriteRaw(data)
}

// ReadMessage lee el próximo frame válido. Retorna fix.ErrReadTimeout si no
// llega nada en ReadTimeout y ctx.Err() si ctx se cancela.
func (c *Client) ReadMessage(ctx context.Context) (*fix.Message, error) {
	return c.reader.ReadMessageContext(ctx)
}

// AwaitReport lee hasta el próximo Execution Report, contando heartbeats.
func (c *Client) AwaitReport(ctx context.Context) (*fix.Message, int, error) {
	heartbeats := 0
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			return nil, heartbeats, err
		}
		switch msg.MsgType() {
		case fix.MsgTypeExecutionReport:
			return msg, heartbeats, nil
		case fix.MsgTypeHeartbeat:
			heartbeats++
		default:
			c.telemetry.Debug(ctx, "Unexpected message ignored",
				semconv.Fix.MsgType.String(msg.MsgType()),
			)
		}
	}
}

// Close cierra la conexión.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
