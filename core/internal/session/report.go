package session

import (
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/fix"
)

// Valores fijos del Execution Report: todas las órdenes se reportan como
// filled (39=2, 150=F).
const (
	ReportExecID    = "EXEC456"
	OrdStatusFilled = "2"
	ExecTypeFill    = "F"
)

// BuildExecutionReport arma el Execution Report (35=8) que responde a msg.
//
// Campos, en orden: 8=FIX.4.2, 35=8, 11 (ClOrdID o "UNKNOWN" si falta o está vacío), 34 (eco del
// recibido; 0 si no es entero, omitido si falta), 17, 39, 150 y luego 55, 38 y
// 44 copiados tal cual si están presentes. Nunca falla.
func BuildExecutionReport(msg *fix.Message) *fix.Message {
	report := fix.NewMessage(fix.MsgTypeExecutionReport)

	clOrdID, ok := msg.GetString(fix.TagClOrdID)
	if !ok || clOrdID == "" {
		clOrdID = domain.UnknownOrderID
	}
	report.AppendString(fix.TagClOrdID, clOrdID)

	if msg.Has(fix.TagMsgSeqNum) {
		seq, err := msg.GetInt(fix.TagMsgSeqNum)
		if err != nil {
			seq = 0
		}
		report.AppendInt(fix.TagMsgSeqNum, seq)
	}

	report.AppendString(fix.TagExecID, ReportExecID)
	report.AppendString(fix.TagOrdStatus, OrdStatusFilled)
	report.AppendString(fix.TagExecType, ExecTypeFill)

	for _, tag := range []int{fix.TagSymbol, fix.TagOrderQty, fix.TagPrice} {
		if v, ok := msg.Get(tag); ok {
			report.Append(tag, v)
		}
	}

	return report
}
