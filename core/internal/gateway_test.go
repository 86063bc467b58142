package internal

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/core/internal/delivery"
	"github.com/twh32/my-fix-project/core/internal/initiator"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/fix"
	"github.com/twh32/my-fix-project/sdk/telemetry"
)

var frozenNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func startGateway(t *testing.T, mutate func(*Config)) (*Gateway, *delivery.MemorySink) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(cfg)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	require.NoError(t, err)

	sink := delivery.NewMemorySink()
	gw, err := New(context.Background(), cfg,
		WithTelemetry(telemetry.NewNop()),
		WithSink(sink),
		WithListener(lis),
		WithTransformer(&domain.Transformer{Clock: func() time.Time { return frozenNow }}),
	)
	require.NoError(t, err)
	require.NoError(t, gw.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})
	return gw, sink
}

func dial(t *testing.T, gw *Gateway, sender string) *initiator.Client {
	t.Helper()
	c, err := initiator.Dial(context.Background(), initiator.Config{
		Addr:         gw.Addr().String(),
		SenderCompID: sender,
		ReadTimeout:  2 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func order(id string) initiator.Order {
	return initiator.Order{ClOrdID: id, Symbol: "BOND_XYZ", Quantity: 100, Price: decimal.RequireFromString("101.50")}
}

func TestGateway_OrderRoundTrip(t *testing.T) {
	gw, sink := startGateway(t, nil)
	c := dial(t, gw, "SENDER")

	_, err := c.SendOrder(context.Background(), order("ORDER123"))
	require.NoError(t, err)

	report, _, err := c.AwaitReport(context.Background())
	require.NoError(t, err)
	for tag, want := range map[int]string{
		fix.TagBeginString: "FIX.4.2",
		fix.TagClOrdID:     "ORDER123",
		fix.TagMsgSeqNum:   "1",
		fix.TagExecID:      "EXEC456",
		fix.TagOrdStatus:   "2",
		fix.TagExecType:    "F",
		fix.TagSymbol:      "BOND_XYZ",
		fix.TagOrderQty:    "100",
		fix.TagPrice:       "101.50",
	} {
		v, _ := report.GetString(tag)
		assert.Equal(t, want, v, "tag %d", tag)
	}

	require.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	got := sink.Orders()[0]
	assert.Equal(t, "ORDER123", got.OrderID)
	assert.Equal(t, 100, got.Quantity)
	assert.Equal(t, 101.5, got.Price)
	assert.Equal(t, "2024-01-02T03:04:05Z", got.ProcessedTimestamp)

	assert.Equal(t, 2, gw.Tracker().Expected("SENDER"))
}

func TestGateway_IndependentSessions(t *testing.T) {
	gw, sink := startGateway(t, nil)
	a := dial(t, gw, "ALPHA")
	b := dial(t, gw, "BETA")

	for i := 0; i < 3; i++ {
		_, err := a.SendOrder(context.Background(), order("A"))
		require.NoError(t, err)
		_, _, err = a.AwaitReport(context.Background())
		require.NoError(t, err)
	}
	_, err := b.SendOrder(context.Background(), order("B"))
	require.NoError(t, err)
	_, _, err = b.AwaitReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, gw.Tracker().Expected("ALPHA"))
	assert.Equal(t, 2, gw.Tracker().Expected("BETA"))
	require.Eventually(t, func() bool { return sink.Len() == 4 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return gw.SessionCount() == 2 }, time.Second, 10*time.Millisecond)
}

func TestGateway_HeartbeatOnSilence(t *testing.T) {
	gw, _ := startGateway(t, func(c *Config) {
		c.Session.HeartbeatInterval = 150 * time.Millisecond
		c.Delivery.Dispatcher.EnqueueTimeout = 20 * time.Millisecond
	})
	c := dial(t, gw, "SENDER")

	msg, err := c.ReadMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fix.MsgTypeHeartbeat, msg.MsgType())
	assert.True(t, msg.Has(fix.TagSendingTime))
}

func TestGateway_SequenceGapResync(t *testing.T) {
	gw, _ := startGateway(t, nil)
	c := dial(t, gw, "SENDER")

	c.SetNextSeqNum(5)
	_, err := c.SendOrder(context.Background(), order("GAP"))
	require.NoError(t, err)
	report, _, err := c.AwaitReport(context.Background())
	require.NoError(t, err)

	v, _ := report.GetString(fix.TagMsgSeqNum)
	assert.Equal(t, "5", v)
	assert.Equal(t, 6, gw.Tracker().Expected("SENDER"))
}

func TestGateway_CorruptFrameSkipped(t *testing.T) {
	gw, sink := startGateway(t, nil)
	c := dial(t, gw, "SENDER")

	bad := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	bad.AppendString(fix.TagClOrdID, "BAD")
	raw := fix.Encode(bad)
	raw[len(raw)-2] ^= 0x01 // último dígito del checksum
	require.NoError(t, c.SendRaw(raw))

	_, err := c.SendOrder(context.Background(), order("GOOD"))
	require.NoError(t, err)
	report, _, err := c.AwaitReport(context.Background())
	require.NoError(t, err)

	v, _ := report.GetString(fix.TagClOrdID)
	assert.Equal(t, "GOOD", v)
	require.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "GOOD", sink.Orders()[0].OrderID)
}

func TestGateway_ShutdownClosesSessionsAndDrains(t *testing.T) {
	gw, sink := startGateway(t, nil)
	c := dial(t, gw, "SENDER")

	_, err := c.SendOrder(context.Background(), order("LAST"))
	require.NoError(t, err)
	_, _, err = c.AwaitReport(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gw.Shutdown(ctx))
	require.NoError(t, gw.Shutdown(ctx))

	assert.Equal(t, 1, sink.Len())
	assert.Equal(t, 0, gw.SessionCount())

	_, err = c.ReadMessage(context.Background())
	assert.Error(t, err, "la conexión debe quedar cerrada")

	_, err = net.DialTimeout("tcp", gw.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
	assert.Error(t, gw.Start())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delivery.Sink = "carrier-pigeon"

	_, err := New(context.Background(), cfg, WithTelemetry(telemetry.NewNop()))
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidConfig, domain.CodeOf(err))
}
