package session

import (
	"time"

	"github.com/twh32/my-fix-project/sdk/fix"
)

// DefaultHeartbeatInterval tiempo sin tráfico entrante antes de enviar un heartbeat.
const DefaultHeartbeatInterval = 5 * time.Second

// MessageWriter escribe un mensaje FIX codificado. *fix.FrameWriter lo implementa.
type MessageWriter interface {
	WriteMessage(m *fix.Message) error
}

// Heartbeat arma y envía heartbeats (35=0) con SendingTime (52).
//
// El intervalo es el timeout de lectura de la sesión: el heartbeat sale solo
// cuando una lectura expiró sin bytes.
type Heartbeat struct {
	Interval time.Duration
	// Clock reloj para el tag 52 (nil = time.Now)
	Clock func() time.Time
}

// NewHeartbeat crea un Heartbeat; interval <= 0 usa DefaultHeartbeatInterval.
func NewHeartbeat(interval time.Duration) Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return Heartbeat{Interval: interval}
}

// Message construye el heartbeat.
func (h Heartbeat) Message() *fix.Message {
	now := time.Now
	if h.Clock != nil {
		now = h.Clock
	}
	msg := fix.NewMessage(fix.MsgTypeHeartbeat)
	msg.AppendUTCTimestamp(fix.TagSendingTime, now())
	return msg
}

// Send escribe un heartbeat en w.
func (h Heartbeat) Send(w MessageWriter) error {
	return w.WriteMessage(h.Message())
}
