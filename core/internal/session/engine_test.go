package session

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/fix"
	"github.com/twh32/my-fix-project/sdk/telemetry"
)

var frozenNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type chanEnqueuer struct {
	orders chan domain.CanonicalOrder
	panics atomic.Int32
}

func newChanEnqueuer() *chanEnqueuer {
	return &chanEnqueuer{orders: make(chan domain.CanonicalOrder, 16)}
}

func (e *chanEnqueuer) Enqueue(ctx context.Context, order domain.CanonicalOrder) error {
	if e.panics.Load() > 0 {
		e.panics.Add(-1)
		panic("enqueue exploded")
	}
	e.orders <- order
	return nil
}

type harness struct {
	t       *testing.T
	client  net.Conn
	reader  *fix.FrameReader
	session *Session
	enq     *chanEnqueuer
	tracker *SequenceTracker
	cancel  context.CancelFunc
	done    chan error
}

func startSession(t *testing.T, cfg Config, tracker *SequenceTracker, mutate ...func(*Deps)) *harness {
	t.Helper()
	if tracker == nil {
		tracker = NewSequenceTracker()
	}
	server, client := net.Pipe()
	enq := newChanEnqueuer()

	deps := Deps{
		Tracker:     tracker,
		Transformer: &domain.Transformer{Clock: func() time.Time { return frozenNow }},
		Dispatcher:  enq,
		Telemetry:   telemetry.NewNop(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	sess := New(server, deps, cfg)
	assert.Equal(t, StateConnecting, sess.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	reader := fix.NewFrameReader(client, nil)
	reader.SetTimeout(2 * time.Second)

	h := &harness{t: t, client: client, reader: reader, session: sess, enq: enq, tracker: tracker, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		client.Close()
	})
	return h
}

func (h *harness) sendRaw(data []byte) {
	h.t.Helper()
	require.NoError(h.t, h.client.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := h.client.Write(data)
	require.NoError(h.t, err)
}

func (h *harness) send(m *fix.Message) {
	h.t.Helper()
	h.sendRaw(fix.Encode(m))
}

func (h *harness) read() *fix.Message {
	h.t.Helper()
	msg, err := h.reader.ReadMessage()
	require.NoError(h.t, err)
	return msg
}

func (h *harness) order() domain.CanonicalOrder {
	h.t.Helper()
	select {
	case o := <-h.enq.orders:
		return o
	case <-time.After(2 * time.Second):
		h.t.Fatal("no order enqueued")
		return domain.CanonicalOrder{}
	}
}

func (h *harness) waitDone() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(3 * time.Second):
		h.t.Fatal("session did not finish")
		return nil
	}
}

func clientOrder(sender string, seq string, fields ...fix.Field) *fix.Message {
	m := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	if sender != "" {
		m.AppendString(fix.TagSenderCompID, sender)
	}
	m.AppendString(fix.TagTargetCompID, "TARGET")
	if seq != "" {
		m.AppendString(fix.TagMsgSeqNum, seq)
	}
	m.AppendUTCTimestamp(fix.TagSendingTime, frozenNow)
	for _, f := range fields {
		m.Append(f.Tag, f.Value)
	}
	return m
}

func str(m *fix.Message, tag int) string {
	v, _ := m.GetString(tag)
	return v
}

func TestSession_InOrderFlow(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("SENDER", "1",
		fld(fix.TagClOrdID, "ORDER123"),
		fld(fix.TagSymbol, "BOND_XYZ"),
		fld(fix.TagOrderQty, "100"),
		fld(fix.TagPrice, "101.50"),
	))

	report := h.read()
	assert.Equal(t, fix.MsgTypeExecutionReport, report.MsgType())
	assert.Equal(t, "ORDER123", str(report, fix.TagClOrdID))
	assert.Equal(t, "1", str(report, fix.TagMsgSeqNum))
	assert.Equal(t, "BOND_XYZ", str(report, fix.TagSymbol))
	assert.Equal(t, "100", str(report, fix.TagOrderQty))
	assert.Equal(t, "101.50", str(report, fix.TagPrice))
	assert.Equal(t, "EXEC456", str(report, fix.TagExecID))

	order := h.order()
	assert.Equal(t, "ORDER123", order.OrderID)
	assert.Equal(t, "BOND_XYZ", order.Symbol)
	assert.Equal(t, 100, order.Quantity)
	assert.Equal(t, 101.5, order.Price)
	assert.Equal(t, "BU-001", order.BusinessUnit)
	assert.Equal(t, "TRADER001", order.TraderID)
	assert.Equal(t, "LOW", order.RiskCategory)

	assert.Equal(t, "SENDER", h.session.Key())
	assert.Equal(t, StateActive, h.session.State())
	assert.Equal(t, 2, h.tracker.Expected("SENDER"))
}

func TestSession_SilenceTriggersHeartbeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 150 * time.Millisecond
	h := startSession(t, cfg, nil)

	first := h.read()
	assert.Equal(t, fix.MsgTypeHeartbeat, first.MsgType())
	assert.True(t, first.Has(fix.TagSendingTime))
	assert.False(t, first.Has(fix.TagClOrdID))

	h.send(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "A")))
	assert.Equal(t, fix.MsgTypeExecutionReport, h.read().MsgType())
}

func TestSession_SequentialFramesEchoConsecutiveSeqNums(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	// Dos frames en una sola escritura.
	data := append(fix.Encode(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "A"))),
		fix.Encode(clientOrder("SENDER", "2", fld(fix.TagClOrdID, "B")))...)
	h.sendRaw(data)

	r1 := h.read()
	r2 := h.read()
	s1, err := r1.GetInt(fix.TagMsgSeqNum)
	require.NoError(t, err)
	s2, err := r2.GetInt(fix.TagMsgSeqNum)
	require.NoError(t, err)
	assert.Equal(t, 1, s2-s1)
	assert.Equal(t, "A", str(r1, fix.TagClOrdID))
	assert.Equal(t, "B", str(r2, fix.TagClOrdID))
	assert.Equal(t, 3, h.tracker.Expected("SENDER"))
}

func TestSession_MalformedNumericFieldsDefaultToZero(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("SENDER", "1",
		fld(fix.TagClOrdID, "ORDER9"),
		fld(fix.TagOrderQty, "abc"),
		fld(fix.TagPrice, "xyz"),
	))

	report := h.read()
	assert.Equal(t, "abc", str(report, fix.TagOrderQty))

	order := h.order()
	assert.Equal(t, 0, order.Quantity)
	assert.Equal(t, 0.0, order.Price)
}

func TestSession_SequenceMismatchResyncs(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("SENDER", "5", fld(fix.TagClOrdID, "A")))
	report := h.read()

	// El report se envía igual y el esperado pasa a received+1.
	assert.Equal(t, "5", str(report, fix.TagMsgSeqNum))
	assert.Equal(t, 6, h.tracker.Expected("SENDER"))
}

func TestSession_MissingOrInvalidSeqNumSkips(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("SENDER", "", fld(fix.TagClOrdID, "A")))
	report := h.read()
	assert.False(t, report.Has(fix.TagMsgSeqNum))
	assert.Equal(t, 2, h.tracker.Expected("SENDER"))

	h.send(clientOrder("SENDER", "x", fld(fix.TagClOrdID, "B")))
	report = h.read()
	assert.Equal(t, "0", str(report, fix.TagMsgSeqNum))
	assert.Equal(t, 3, h.tracker.Expected("SENDER"))
}

func TestSession_MissingSenderSharesUnknownCounter(t *testing.T) {
	tracker := NewSequenceTracker()

	h1 := startSession(t, DefaultConfig(), tracker)
	h1.send(clientOrder("", "1"))
	report := h1.read()
	assert.Equal(t, "UNKNOWN", str(report, fix.TagClOrdID))
	assert.Equal(t, UnknownSessionKey, h1.session.Key())

	h2 := startSession(t, DefaultConfig(), tracker)
	h2.send(clientOrder("", "2"))
	h2.read()

	assert.Equal(t, 3, tracker.Expected(UnknownSessionKey))
}

func TestSession_KeyFixedByFirstFrame(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("FIRST", "1"))
	h.read()
	h.send(clientOrder("SECOND", "2"))
	h.read()

	assert.Equal(t, "FIRST", h.session.Key())
	assert.Equal(t, 3, h.tracker.Expected("FIRST"))
	assert.Equal(t, 1, h.tracker.Expected("SECOND"))
}

func TestSession_CorruptFrameIsSkipped(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	bad := fix.Encode(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "BAD")))
	// Reemplaza el checksum por uno incorrecto.
	copy(bad[len(bad)-4:], []byte("999"))
	good := fix.Encode(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "GOOD")))

	h.sendRaw(append(bad, good...))

	report := h.read()
	assert.Equal(t, "GOOD", str(report, fix.TagClOrdID))
	assert.Equal(t, "GOOD", h.order().OrderID)
	assert.Equal(t, 2, h.tracker.Expected("SENDER"))
}

func TestSession_TruncatedFrameThenValidOrder(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	truncated := []byte("8=FIX.4.2\x019=20\x0135=D\x0149=SENDER\x0111=LOST\x01")
	good := fix.Encode(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "GOOD")))

	h.sendRaw(append(truncated, good...))

	report := h.read()
	assert.Equal(t, "GOOD", str(report, fix.TagClOrdID))
	assert.Equal(t, "GOOD", h.order().OrderID)
	assert.Equal(t, 2, h.tracker.Expected("SENDER"))
}

func TestSession_ChecksumValidationDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValidateChecksum = false
	h := startSession(t, cfg, nil)

	bad := fix.Encode(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "LAX")))
	copy(bad[len(bad)-4:], []byte("999"))
	h.sendRaw(bad)

	assert.Equal(t, "LAX", str(h.read(), fix.TagClOrdID))
}

func TestSession_PeerCloseReleasesConnection(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.send(clientOrder("SENDER", "1"))
	h.read()
	require.NoError(t, h.client.Close())

	assert.NoError(t, h.waitDone())
	assert.Equal(t, StateClosed, h.session.State())
}

func TestSession_ContextCancelClosesSession(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)

	h.cancel()
	assert.NoError(t, h.waitDone())
	assert.Equal(t, StateClosed, h.session.State())

	// El lado servidor quedó cerrado.
	_, err := h.client.Write([]byte("8=FIX.4.2"))
	assert.Error(t, err)
}

func TestSession_HeartbeatWriteFailureIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.WriteTimeout = 50 * time.Millisecond
	h := startSession(t, cfg, nil)

	// El cliente nunca lee: la escritura del heartbeat vence.
	err := h.waitDone()
	assert.Error(t, err)
	assert.Equal(t, StateClosed, h.session.State())
}

func TestSession_PanicInFrameProcessingKeepsSessionAlive(t *testing.T) {
	h := startSession(t, DefaultConfig(), nil)
	h.enq.panics.Store(1)

	h.send(clientOrder("SENDER", "1", fld(fix.TagClOrdID, "A")))
	assert.Equal(t, "A", str(h.read(), fix.TagClOrdID))

	h.send(clientOrder("SENDER", "2", fld(fix.TagClOrdID, "B")))
	assert.Equal(t, "B", str(h.read(), fix.TagClOrdID))
	assert.Equal(t, "B", h.order().OrderID)
}

func TestSession_DuplicateClOrdIDIsStillProcessed(t *testing.T) {
	window := NewDuplicateWindow(time.Minute)
	h := startSession(t, DefaultConfig(), nil, func(d *Deps) { d.Duplicates = window })

	for _, seq := range []string{"1", "2"} {
		h.send(clientOrder("SENDER", seq, fld(fix.TagClOrdID, "SAME")))
		assert.Equal(t, "SAME", str(h.read(), fix.TagClOrdID))
		assert.Equal(t, "SAME", h.order().OrderID)
	}

	assert.Equal(t, 1, window.Size())
	dup, entry := window.Observe("SENDER", "SAME", time.Now())
	assert.True(t, dup)
	assert.Equal(t, 3, entry.Count)
}
