package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/sdk/fix"
)

func TestValidateFrame_Complete(t *testing.T) {
	dec := fix.NewDecoder()
	m := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	m.AppendString(fix.TagSenderCompID, "SENDER")
	m.AppendString(fix.TagTargetCompID, "TARGET")
	m.AppendString(fix.TagSendingTime, "20240101-00:00:00.000")
	dec.Feed(fix.Encode(m))

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.NoError(t, ValidateFrame(msg))
}

func TestValidateFrame_Missing(t *testing.T) {
	msg := orderMsg(f(fix.TagClOrdID, "X"))

	err := ValidateFrame(msg)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, ErrMissingRequiredField, ge.Code)
	assert.Equal(t, "9,49,52,56,10", ge.Details["missing_tags"])
	assert.Equal(t, ErrMissingRequiredField, CodeOf(err))
}

func TestValidateNewOrderSingle(t *testing.T) {
	ok := orderMsg(f(fix.TagClOrdID, "A"), f(fix.TagSymbol, "S"), f(fix.TagOrderQty, "1"), f(fix.TagPrice, "1"))
	assert.NoError(t, ValidateNewOrderSingle(ok))

	assert.Error(t, ValidateNewOrderSingle(orderMsg(f(fix.TagClOrdID, "A"))))
	assert.Error(t, ValidateNewOrderSingle(fix.NewMessage(fix.MsgTypeHeartbeat)))
}

func TestGatewayError_Wrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapError(ErrSinkUnavailable, "redis unavailable", cause).WithDetail("addr", "localhost:6379")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[SINK_UNAVAILABLE]")
	assert.Equal(t, "localhost:6379", err.Details["addr"])
	assert.True(t, IsRetryable(CodeOf(err)))
	assert.False(t, IsRetryable(ErrInvalidConfig))
	assert.Equal(t, ErrUnknown, CodeOf(cause))
	assert.Equal(t, ErrNoError, CodeOf(nil))
}

func TestDecodeErrorCode(t *testing.T) {
	assert.Equal(t, ErrNoError, DecodeErrorCode(nil))
	assert.Equal(t, ErrChecksumMismatch, DecodeErrorCode(&fix.DecodeError{Err: fix.ErrChecksumMismatch}))
	assert.Equal(t, ErrBodyLengthMismatch, DecodeErrorCode(&fix.DecodeError{Err: fix.ErrBodyLengthMismatch}))
	assert.Equal(t, ErrFrameTooLarge, DecodeErrorCode(&fix.DecodeError{Err: fix.ErrFrameTooLarge}))
	assert.Equal(t, ErrDecodeFailed, DecodeErrorCode(&fix.DecodeError{Err: fix.ErrMalformedFrame}))
}
