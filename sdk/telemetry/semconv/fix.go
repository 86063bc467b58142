package semconv

import "go.opentelemetry.io/otel/attribute"

// Fix contiene atributos semánticos de sesiones FIX y órdenes.
//
// # Sesión
//
//   - fix.session_key: SenderCompID (49) del primer frame o "UNKNOWN"
//   - fix.remote_addr: dirección del peer
//   - fix.session_state: connecting/active/closed
//
// # Mensaje
//
//   - fix.msg_type: MsgType (35)
//   - fix.msg_seq_num: MsgSeqNum (34) recibido
//   - fix.expected_seq_num: secuencia esperada por el tracker
//   - fix.cl_ord_id: ClOrdID (11)
//   - fix.symbol: Symbol (55)
//
// # Uso
//
//	client.Warn(ctx, "Sequence gap",
//	    semconv.Fix.SessionKey.String("SENDER"),
//	    semconv.Fix.MsgSeqNum.Int(5),
//	    semconv.Fix.ExpectedSeqNum.Int(3),
//	)
var Fix = fixAttributes{
	// Sesión
	SessionKey:   attribute.Key("fix.session_key"),
	RemoteAddr:   attribute.Key("fix.remote_addr"),
	SessionState: attribute.Key("fix.session_state"),

	// Mensaje
	MsgType:        attribute.Key("fix.msg_type"),
	MsgSeqNum:      attribute.Key("fix.msg_seq_num"),
	ExpectedSeqNum: attribute.Key("fix.expected_seq_num"),
	ClOrdID:        attribute.Key("fix.cl_ord_id"),
	Symbol:         attribute.Key("fix.symbol"),
	MissingTags:    attribute.Key("fix.missing_tags"),
	Frame:          attribute.Key("fix.frame"),

	// Entrega
	OrderID:    attribute.Key("fix.order_id"),
	OutboxID:   attribute.Key("fix.outbox_id"),
	Attempt:    attribute.Key("fix.attempt"),
	QueueDepth: attribute.Key("fix.queue_depth"),
	ErrorCode:  attribute.Key("fix.error_code"),
}

type fixAttributes struct {
	// Sesión
	SessionKey   attribute.Key // SenderCompID o UNKNOWN
	RemoteAddr   attribute.Key // host:port del peer
	SessionState attribute.Key // connecting/active/closed

	// Mensaje
	MsgType        attribute.Key // 35
	MsgSeqNum      attribute.Key // 34 recibido
	ExpectedSeqNum attribute.Key // secuencia esperada
	ClOrdID        attribute.Key // 11
	Symbol         attribute.Key // 55
	MissingTags    attribute.Key // tags ausentes (CSV)
	Frame          attribute.Key // frame con "|" en lugar de SOH

	// Entrega
	OrderID    attribute.Key // order_id canónico
	OutboxID   attribute.Key // UUIDv7 del registro en outbox
	Attempt    attribute.Key // intento de entrega
	QueueDepth attribute.Key // largo de la cola del dispatcher
	ErrorCode  attribute.Key // domain.ErrorCode
}
