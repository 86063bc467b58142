package fix

// Tags FIX 4.2 usados por el gateway.
const (
	TagBeginString   = 8
	TagBodyLength    = 9
	TagCheckSum      = 10
	TagClOrdID       = 11
	TagExecID        = 17
	TagMsgSeqNum     = 34
	TagMsgType       = 35
	TagOrderQty      = 38
	TagOrdStatus     = 39
	TagPrice         = 44
	TagSenderCompID  = 49
	TagSendingTime   = 52
	TagSymbol        = 55
	TagTargetCompID  = 56
	TagTransactTime  = 60
	TagEncryptMethod = 98
	TagHeartBtInt    = 108
	TagExecType      = 150
)

// Valores de MsgType (35).
const (
	MsgTypeHeartbeat       = "0"
	MsgTypeExecutionReport = "8"
	MsgTypeNewOrderSingle  = "D"
)

// BeginStringFIX42 es la versión de protocolo emitida por el gateway.
const BeginStringFIX42 = "FIX.4.2"

// SOH es el separador de campos.
const SOH byte = 0x01

// UTCTimestampLayout es el formato UTCTimestamp con milisegundos (tag 52 / 60).
const UTCTimestampLayout = "20060102-15:04:05.000"

// StandardHeaderTags son los tags que todo frame completo debería contener.
var StandardHeaderTags = []int{
	TagBeginString,
	TagBodyLength,
	TagMsgType,
	TagSenderCompID,
	TagSendingTime,
	TagTargetCompID,
	TagCheckSum,
}
