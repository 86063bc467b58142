package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/telemetry"
)

func fastOutboxConfig(path string) OutboxConfig {
	return OutboxConfig{
		Path:          path,
		MaxRetries:    3,
		RetryBackoff:  []time.Duration{20 * time.Millisecond},
		LeaseTimeout:  time.Second,
		RetryInterval: 10 * time.Millisecond,
		BatchSize:     8,
	}
}

func TestOutbox_SuccessLeavesLedgerEmpty(t *testing.T) {
	mem := NewMemorySink()
	o, err := NewOutboxSink(context.Background(), mem, fastOutboxConfig(ledgerPath(t)), telemetry.NewNop())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Deliver(context.Background(), testOrder("ORDER1")))

	assert.Equal(t, 1, mem.Len())
	pending, exhausted, err := o.Ledger().Stats()
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, exhausted)
	assert.Equal(t, "outbox+memory", o.Name())
}

func TestOutbox_RetriesUntilSinkRecovers(t *testing.T) {
	mem := NewMemorySink()
	mem.SetError(domain.NewError(domain.ErrSinkUnavailable, "down"))

	o, err := NewOutboxSink(context.Background(), mem, fastOutboxConfig(ledgerPath(t)), telemetry.NewNop())
	require.NoError(t, err)
	defer o.Close()

	// La falla del primer intento no se propaga: la orden queda persistida.
	require.NoError(t, o.Deliver(context.Background(), testOrder("ORDER1")))
	assert.Zero(t, mem.Len())

	pending, _, err := o.Ledger().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	mem.SetError(nil)
	waitFor(t, func() bool { return mem.Len() == 1 })
	waitFor(t, func() bool {
		p, e, err := o.Ledger().Stats()
		return err == nil && p == 0 && e == 0
	})
	assert.Equal(t, "ORDER1", mem.Orders()[0].OrderID)
}

func TestOutbox_ExhaustedRecordStaysAsDeadLetter(t *testing.T) {
	var calls atomic.Int32
	failing := SinkFunc(func(ctx context.Context, order domain.CanonicalOrder) error {
		calls.Add(1)
		return errors.New("connection refused")
	})

	o, err := NewOutboxSink(context.Background(), failing, fastOutboxConfig(ledgerPath(t)), telemetry.NewNop())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Deliver(context.Background(), testOrder("ORDER1")))

	waitFor(t, func() bool {
		_, e, err := o.Ledger().Stats()
		return err == nil && e == 1
	})

	due, err := o.Ledger().ListDue(time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Sin reintentos tras agotarse.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOutbox_BrokerNackKeepsRecord(t *testing.T) {
	ch := &fakeAMQPChannel{nack: true}
	inner, err := NewAMQPSinkWithChannel(ch, "orders")
	require.NoError(t, err)

	o, err := NewOutboxSink(context.Background(), inner, fastOutboxConfig(ledgerPath(t)), telemetry.NewNop())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Deliver(context.Background(), testOrder("ORDER1")))

	pending, exhausted, err := o.Ledger().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, pending+exhausted, "el registro sigue en el outbox tras el nack")
}

func TestOutbox_ResumesPendingAfterRestart(t *testing.T) {
	path := ledgerPath(t)

	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Put(&OutboxRecord{
		ID:          "0190-pending",
		OrderID:     "ORDER9",
		Payload:     []byte(`{"order_id":"ORDER9","symbol":"S","quantity":1,"price":2,"transact_time":null,"business_unit":"BU-001","trader_id":"TRADER001","risk_category":"LOW","processed_timestamp":"t"}`),
		Attempt:     1,
		NextRetryAt: time.Now().Add(-time.Second).UnixMilli(),
	}))
	require.NoError(t, l.Close())

	mem := NewMemorySink()
	o, err := NewOutboxSink(context.Background(), mem, fastOutboxConfig(path), telemetry.NewNop())
	require.NoError(t, err)
	defer o.Close()

	waitFor(t, func() bool { return mem.Len() == 1 })
	got := mem.Orders()[0]
	assert.Equal(t, "ORDER9", got.OrderID)
	assert.Nil(t, got.TransactTime)
}

func TestOutbox_Backoff(t *testing.T) {
	o := &OutboxSink{cfg: OutboxConfig{
		LeaseTimeout: time.Second,
		RetryBackoff: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
	}}

	assert.Equal(t, 10*time.Millisecond, o.backoff(0))
	assert.Equal(t, 10*time.Millisecond, o.backoff(1))
	assert.Equal(t, 20*time.Millisecond, o.backoff(2))
	assert.Equal(t, 20*time.Millisecond, o.backoff(7))

	o.cfg.RetryBackoff = nil
	assert.Equal(t, time.Second, o.backoff(1))
}

func TestOutbox_RequiresInnerSink(t *testing.T) {
	_, err := NewOutboxSink(context.Background(), nil, fastOutboxConfig(ledgerPath(t)), telemetry.NewNop())
	assert.Equal(t, domain.ErrInvalidConfig, domain.CodeOf(err))
}
