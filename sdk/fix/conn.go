package fix

import (
	"time"
)

// Conn define la conexión de transporte usada por FrameReader y FrameWriter.
//
// net.Conn la satisface; net.Pipe se usa en tests.
type Conn interface {
	// Read lee datos de la conexión.
	Read(p []byte) (n int, err error)

	// Write escribe datos a la conexión.
	Write(p []byte) (n int, err error)

	// Close cierra la conexión y libera recursos.
	Close() error

	// SetReadDeadline establece el deadline para operaciones de lectura.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline establece el deadline para operaciones de escritura.
	SetWriteDeadline(t time.Time) error
}
