package fix

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Field es un par tag=valor de un frame FIX.
type Field struct {
	Tag   int
	Value []byte
}

// Message es la secuencia ordenada de campos de un frame.
//
// Los tags repetidos se conservan; las búsquedas retornan la primera ocurrencia.
type Message struct {
	fields []Field
}

// NewMessage crea un mensaje FIX 4.2 con BeginString y MsgType.
func NewMessage(msgType string) *Message {
	m := &Message{fields: make([]Field, 0, 12)}
	m.AppendString(TagBeginString, BeginStringFIX42)
	m.AppendString(TagMsgType, msgType)
	return m
}

// MessageFromFields construye un mensaje a partir de campos ya decodificados.
func MessageFromFields(fields []Field) *Message {
	return &Message{fields: fields}
}

// Append agrega un campo al final del mensaje.
func (m *Message) Append(tag int, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	m.fields = append(m.fields, Field{Tag: tag, Value: v})
}

// AppendString agrega un campo string.
func (m *Message) AppendString(tag int, value string) {
	m.fields = append(m.fields, Field{Tag: tag, Value: []byte(value)})
}

// AppendInt agrega un campo entero.
func (m *Message) AppendInt(tag int, value int) {
	m.AppendString(tag, strconv.Itoa(value))
}

// AppendUTCTimestamp agrega un UTCTimestamp con milisegundos (yyyyMMdd-HH:mm:ss.SSS).
func (m *Message) AppendUTCTimestamp(tag int, t time.Time) {
	m.AppendString(tag, t.UTC().Format(UTCTimestampLayout))
}

// Get retorna el valor de la primera ocurrencia del tag.
func (m *Message) Get(tag int) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	for _, f := range m.fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString retorna el valor del tag como string.
func (m *Message) GetString(tag int) (string, bool) {
	v, ok := m.Get(tag)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetInt retorna el valor del tag como entero.
//
// Retorna error si el tag no existe o no es numérico.
func (m *Message) GetInt(tag int) (int, error) {
	v, ok := m.Get(tag)
	if !ok {
		return 0, &FieldError{Tag: tag, Reason: "tag not found"}
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, &FieldError{Tag: tag, Reason: "not an integer", Value: v}
	}
	return n, nil
}

// Has indica si el tag está presente.
func (m *Message) Has(tag int) bool {
	_, ok := m.Get(tag)
	return ok
}

// MsgType retorna el tag 35.
func (m *Message) MsgType() string {
	v, _ := m.GetString(TagMsgType)
	return v
}

// Fields retorna los campos en orden. No debe modificarse.
func (m *Message) Fields() []Field {
	if m == nil {
		return nil
	}
	return m.fields
}

// Len retorna la cantidad de campos.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields)
}

// String representa el mensaje con "|" en lugar de SOH (para logs).
func (m *Message) String() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, f := range m.fields {
		sb.WriteString(strconv.Itoa(f.Tag))
		sb.WriteByte('=')
		sb.Write(f.Value)
		sb.WriteByte('|')
	}
	return sb.String()
}

// Printable reemplaza SOH por "|" en un frame crudo.
func Printable(raw []byte) string {
	return string(bytes.ReplaceAll(raw, []byte{SOH}, []byte{'|'}))
}
