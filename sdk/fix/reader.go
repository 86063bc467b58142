package fix

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// defaultReadChunk coincide con el recv(4096) del lado cliente.
const defaultReadChunk = 4096

// FrameReader lee bytes de un Conn y los entrega a un Decoder.
//
// Cada Fill hace a lo sumo una lectura con deadline; los frames completos se
// obtienen luego con Next.
type FrameReader struct {
	conn    Conn
	dec     *Decoder
	chunk   []byte
	timeout time.Duration
}

// NewFrameReader crea un FrameReader. Si dec es nil se usa NewDecoder().
//
// Example:
//
//	reader := fix.NewFrameReader(conn, nil)
//	reader.SetTimeout(5 * time.Second)
//	for {
//	    if _, err := reader.Fill(); err != nil {
//	        if errors.Is(err, fix.ErrReadTimeout) {
//	            // sin tráfico: enviar heartbeat
//	            continue
//	        }
//	        return err
//	    }
//	    for {
//	        msg, err := reader.Next()
//	        ...
//	    }
//	}
func NewFrameReader(conn Conn, dec *Decoder) *FrameReader {
	if dec == nil {
		dec = NewDecoder()
	}
	return &FrameReader{
		conn:    conn,
		dec:     dec,
		chunk:   make([]byte, defaultReadChunk),
		timeout: 5 * time.Second,
	}
}

// SetTimeout establece el timeout de cada lectura (0 = sin deadline).
func (r *FrameReader) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// Timeout retorna el timeout configurado.
func (r *FrameReader) Timeout() time.Duration {
	return r.timeout
}

// Fill realiza una lectura y alimenta el Decoder.
//
// Retorna ErrReadTimeout si el deadline expiró sin bytes e io.EOF si el peer
// cerró la conexión.
func (r *FrameReader) Fill() (int, error) {
	if err := r.armDeadline(); err != nil {
		return 0, err
	}
	return r.read()
}

func (r *FrameReader) armDeadline() error {
	if r.timeout > 0 {
		return r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	}
	return nil
}

func (r *FrameReader) read() (int, error) {
	n, err := r.conn.Read(r.chunk)
	if n > 0 {
		r.dec.Feed(r.chunk[:n])
	}
	if err != nil {
		if n > 0 {
			// Los bytes ya leídos se procesan; el error se reporta en la próxima lectura.
			return n, nil
		}
		if IsTimeout(err) {
			return 0, ErrReadTimeout
		}
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Next retorna el siguiente frame decodificado (ver Decoder.Next).
func (r *FrameReader) Next() (*Message, error) {
	return r.dec.Next()
}

// ReadMessage bloquea hasta obtener un frame completo válido.
//
// Los frames inválidos se descartan. Útil del lado cliente.
func (r *FrameReader) ReadMessage() (*Message, error) {
	for {
		msg, err := r.dec.Next()
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			continue
		}
		if _, err := r.Fill(); err != nil {
			return nil, err
		}
	}
}

// ReadMessageContext es ReadMessage cancelable: si ctx termina, la lectura en
// curso se interrumpe y retorna ctx.Err().
//
// El deadline de cada lectura se arma bajo el mismo lock que la cancelación,
// así una cancelación nunca queda pisada por el deadline de la siguiente
// lectura.
func (r *FrameReader) ReadMessageContext(ctx context.Context) (*Message, error) {
	var (
		mu       sync.Mutex
		canceled bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		canceled = true
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		msg, err := r.dec.Next()
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			continue
		}

		mu.Lock()
		if canceled {
			mu.Unlock()
			return nil, ctx.Err()
		}
		err = r.armDeadline()
		mu.Unlock()
		if err != nil {
			return nil, err
		}

		if _, err := r.read(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
	}
}

// Decoder retorna el decoder interno.
func (r *FrameReader) Decoder() *Decoder {
	return r.dec
}
