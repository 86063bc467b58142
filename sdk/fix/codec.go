package fix

import (
	"bytes"
	"fmt"
	"strconv"
)

// DefaultMaxFrameSize es el máximo de bytes que el Decoder acumula sin cerrar un frame.
const DefaultMaxFrameSize = 64 * 1024

var (
	beginPrefix   = []byte("8=")
	checksumStart = []byte{SOH, '1', '0', '='}
	nestedBegin   = []byte{SOH, '8', '='}
)

// Encode serializa el mensaje calculando BodyLength (9) y CheckSum (10).
//
// Los tags 8, 9 y 10 presentes en el mensaje se ignoran salvo el valor de 8,
// que se reutiliza como BeginString (default FIX.4.2).
func Encode(m *Message) []byte {
	begin := BeginStringFIX42
	if v, ok := m.GetString(TagBeginString); ok && v != "" {
		begin = v
	}

	var body bytes.Buffer
	for _, f := range m.Fields() {
		switch f.Tag {
		case TagBeginString, TagBodyLength, TagCheckSum:
			continue
		}
		body.WriteString(strconv.Itoa(f.Tag))
		body.WriteByte('=')
		body.Write(f.Value)
		body.WriteByte(SOH)
	}

	out := make([]byte, 0, body.Len()+32)
	out = append(out, "8="...)
	out = append(out, begin...)
	out = append(out, SOH)
	out = append(out, "9="...)
	out = strconv.AppendInt(out, int64(body.Len()), 10)
	out = append(out, SOH)
	out = append(out, body.Bytes()...)
	out = append(out, fmt.Sprintf("10=%03d", Checksum(out))...)
	out = append(out, SOH)
	return out
}

// Checksum calcula la suma de bytes módulo 256.
func Checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

// DecoderOption modifica la configuración del Decoder.
type DecoderOption func(*Decoder)

// WithMaxFrameSize establece el tamaño máximo de frame.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrame = n
		}
	}
}

// WithoutChecksumValidation desactiva la validación de 9 y 10.
func WithoutChecksumValidation() DecoderOption {
	return func(d *Decoder) { d.validate = false }
}

// Decoder acumula bytes de un stream y extrae frames completos.
//
// No es thread-safe: cada conexión usa su propio Decoder.
type Decoder struct {
	buf      []byte
	maxFrame int
	validate bool
}

// NewDecoder crea un Decoder con validación de checksum habilitada.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		maxFrame: DefaultMaxFrameSize,
		validate: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed agrega bytes al buffer interno.
func (d *Decoder) Feed(p []byte) {
	if len(d.buf) == 0 {
		d.buf = append(d.buf[:0], p...)
		return
	}
	d.buf = append(d.buf, p...)
}

// Buffered retorna la cantidad de bytes pendientes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset descarta los bytes pendientes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Next extrae el siguiente frame del buffer.
//
// Retorna ErrIncomplete si no hay un frame completo. Cualquier otro error es un
// *DecodeError: los bytes involucrados ya fueron descartados y el caller puede
// seguir llamando Next.
func (d *Decoder) Next() (*Message, error) {
	if len(d.buf) == 0 {
		return nil, ErrIncomplete
	}

	start := d.frameStart()
	if start < 0 {
		// Conservar un posible "8" al final del buffer.
		keep := 0
		if d.buf[len(d.buf)-1] == '8' {
			keep = 1
		}
		garbage := d.buf[:len(d.buf)-keep]
		if len(garbage) == 0 {
			return nil, ErrIncomplete
		}
		err := newDecodeError(ErrMalformedFrame, garbage)
		d.consume(len(garbage))
		return nil, err
	}
	if start > 0 {
		err := newDecodeError(ErrMalformedFrame, d.buf[:start])
		d.consume(start)
		return nil, err
	}

	csIdx := bytes.Index(d.buf, checksumStart)
	if csIdx < 0 {
		return nil, d.incomplete()
	}
	endRel := bytes.IndexByte(d.buf[csIdx+len(checksumStart):], SOH)
	if endRel < 0 {
		return nil, d.incomplete()
	}
	frameEnd := csIdx + len(checksumStart) + endRel + 1

	// Un frame truncado (sin trailer) seguido de otro completo: se descarta solo
	// el truncado y el siguiente se decodifica en la próxima llamada.
	if i := bytes.Index(d.buf[:csIdx+1], nestedBegin); i >= 0 {
		next := i + 1
		err := newDecodeError(ErrMalformedFrame, d.buf[:next])
		d.consume(next)
		return nil, err
	}

	frame := d.buf[:frameEnd]
	msg, err := d.parse(frame, csIdx)
	if err != nil {
		err = newDecodeError(err, frame)
	}
	d.consume(frameEnd)
	return msg, err
}

// frameStart busca "8=" que no sea la cola de otro tag numérico (p.ej. "38=").
func (d *Decoder) frameStart() int {
	from := 0
	for {
		i := bytes.Index(d.buf[from:], beginPrefix)
		if i < 0 {
			return -1
		}
		pos := from + i
		if pos == 0 {
			return pos
		}
		if prev := d.buf[pos-1]; prev < '0' || prev > '9' {
			return pos
		}
		from = pos + 1
	}
}

func (d *Decoder) incomplete() error {
	if len(d.buf) > d.maxFrame {
		err := newDecodeError(ErrFrameTooLarge, d.buf)
		d.Reset()
		return err
	}
	return ErrIncomplete
}

func (d *Decoder) consume(n int) {
	rest := len(d.buf) - n
	copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

// parse separa los campos y valida 9/10. csIdx es la posición del SOH previo al tag 10.
func (d *Decoder) parse(frame []byte, csIdx int) (*Message, error) {
	fields := make([]Field, 0, 16)
	bodyStart := -1
	pos := 0
	for pos < len(frame) {
		end := bytes.IndexByte(frame[pos:], SOH)
		if end < 0 {
			return nil, ErrMalformedFrame
		}
		seg := frame[pos : pos+end]
		eq := bytes.IndexByte(seg, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: field %q", ErrMalformedFrame, seg)
		}
		tag, err := strconv.Atoi(string(seg[:eq]))
		if err != nil || tag <= 0 {
			return nil, fmt.Errorf("%w: tag %q", ErrMalformedFrame, seg[:eq])
		}
		value := make([]byte, len(seg)-eq-1)
		copy(value, seg[eq+1:])
		fields = append(fields, Field{Tag: tag, Value: value})
		pos += end + 1
		if tag == TagBodyLength && len(fields) == 2 {
			bodyStart = pos
		}
	}

	if !d.validate {
		return MessageFromFields(fields), nil
	}

	if bodyStart >= 0 {
		declared, err := strconv.Atoi(string(fields[1].Value))
		if err != nil || declared != csIdx+1-bodyStart {
			return nil, ErrBodyLengthMismatch
		}
	}

	last := fields[len(fields)-1]
	declared, err := strconv.Atoi(string(last.Value))
	if err != nil || declared != Checksum(frame[:csIdx+1]) {
		return nil, ErrChecksumMismatch
	}

	return MessageFromFields(fields), nil
}
