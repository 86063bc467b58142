package fix

import (
	"fmt"
	"sync"
	"time"
)

// FrameWriter escribe frames FIX a un Conn.
//
// Serializa writes con mutex y aplica un deadline por escritura.
type FrameWriter struct {
	conn    Conn
	mu      sync.Mutex
	timeout time.Duration
}

// NewFrameWriter crea un FrameWriter con timeout de 5s.
//
// Example:
//
//	writer := fix.NewFrameWriter(conn)
//	hb := fix.NewMessage(fix.MsgTypeHeartbeat)
//	hb.AppendUTCTimestamp(fix.TagSendingTime, time.Now())
//	if err := writer.WriteMessage(hb); err != nil {
//	    // Handle error
//	}
func NewFrameWriter(conn Conn) *FrameWriter {
	return &FrameWriter{
		conn:    conn,
		timeout: 5 * time.Second,
	}
}

// SetTimeout establece el timeout para operaciones de escritura.
func (w *FrameWriter) SetTimeout(timeout time.Duration) {
	w.timeout = timeout
}

// WriteMessage codifica (9/10 incluidos) y escribe el mensaje.
func (w *FrameWriter) WriteMessage(m *Message) error {
	return w.WriteRaw(Encode(m))
}

// WriteRaw escribe bytes ya codificados.
func (w *FrameWriter) WriteRaw(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return err
		}
	}

	n, err := w.conn.Write(data)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}
