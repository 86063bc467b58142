package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/sdk/fix"
)

type captureWriter struct {
	msgs []*fix.Message
	err  error
}

func (w *captureWriter) WriteMessage(m *fix.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, m)
	return nil
}

func TestHeartbeat_Message(t *testing.T) {
	hb := Heartbeat{
		Interval: time.Second,
		Clock:    func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC) },
	}

	assert.Equal(t, "8=FIX.4.2|35=0|52=20240301-12:30:45.123|", hb.Message().String())

	dec := fix.NewDecoder()
	dec.Feed(fix.Encode(hb.Message()))
	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, fix.MsgTypeHeartbeat, msg.MsgType())
}

func TestHeartbeat_SendPropagatesWriteError(t *testing.T) {
	w := &captureWriter{}
	hb := NewHeartbeat(0)
	assert.Equal(t, DefaultHeartbeatInterval, hb.Interval)

	require.NoError(t, hb.Send(w))
	require.Len(t, w.msgs, 1)

	w.err = errors.New("broken pipe")
	assert.Error(t, hb.Send(w))
}
