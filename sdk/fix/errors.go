package fix

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrIncomplete indica que el buffer no contiene un frame completo.
	ErrIncomplete = errors.New("fix: incomplete frame")

	// ErrChecksumMismatch indica que el tag 10 no coincide con el calculado.
	ErrChecksumMismatch = errors.New("fix: checksum mismatch")

	// ErrBodyLengthMismatch indica que el tag 9 no coincide con el cuerpo recibido.
	ErrBodyLengthMismatch = errors.New("fix: body length mismatch")

	// ErrFrameTooLarge indica que se acumularon más bytes que el máximo sin cerrar un frame.
	ErrFrameTooLarge = errors.New("fix: frame too large")

	// ErrMalformedFrame indica un frame que no respeta la sintaxis tag=valor.
	ErrMalformedFrame = errors.New("fix: malformed frame")

	// ErrReadTimeout indica que expiró el deadline de lectura sin recibir bytes.
	ErrReadTimeout = errors.New("fix: read timeout")
)

// DecodeError describe un frame descartado por el Decoder.
type DecodeError struct {
	Err error
	Raw []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (frame=%q)", e.Err, preview(e.Raw, 64))
}

// Unwrap permite errors.Is sobre los sentinels del paquete.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FieldError describe un campo ausente o con formato inválido.
type FieldError struct {
	Tag    int
	Reason string
	Value  []byte
}

func (e *FieldError) Error() string {
	if len(e.Value) > 0 {
		return fmt.Sprintf("fix: tag %d: %s (%q)", e.Tag, e.Reason, e.Value)
	}
	return fmt.Sprintf("fix: tag %d: %s", e.Tag, e.Reason)
}

// IsTimeout indica si err es un timeout de deadline de red.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func newDecodeError(err error, raw []byte) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &DecodeError{Err: err, Raw: cp}
}

// preview devuelve los primeros n bytes imprimibles para logs.
func preview(b []byte, max int) string {
	if len(b) > max {
		return Printable(b[:max]) + "..."
	}
	return Printable(b)
}
