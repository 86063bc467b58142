package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twh32/my-fix-project/sdk/fix"
)

func newOrder(fields ...fix.Field) *fix.Message {
	m := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	for _, f := range fields {
		m.Append(f.Tag, f.Value)
	}
	return m
}

func fld(tag int, v string) fix.Field {
	return fix.Field{Tag: tag, Value: []byte(v)}
}

func TestBuildExecutionReport_FullOrder(t *testing.T) {
	report := BuildExecutionReport(newOrder(
		fld(fix.TagClOrdID, "ORDER123"),
		fld(fix.TagMsgSeqNum, "1"),
		fld(fix.TagSymbol, "BOND_XYZ"),
		fld(fix.TagOrderQty, "100"),
		fld(fix.TagPrice, "101.50"),
	))

	assert.Equal(t, "8=FIX.4.2|35=8|11=ORDER123|34=1|17=EXEC456|39=2|150=F|55=BOND_XYZ|38=100|44=101.50|", report.String())
}

func TestBuildExecutionReport_MissingClOrdID(t *testing.T) {
	report := BuildExecutionReport(newOrder(fld(fix.TagMsgSeqNum, "4")))

	v, ok := report.GetString(fix.TagClOrdID)
	assert.True(t, ok)
	assert.Equal(t, "UNKNOWN", v)
	assert.False(t, report.Has(fix.TagSymbol))
	assert.False(t, report.Has(fix.TagOrderQty))
	assert.False(t, report.Has(fix.TagPrice))
}

func TestBuildExecutionReport_SequenceEcho(t *testing.T) {
	withText := BuildExecutionReport(newOrder(fld(fix.TagMsgSeqNum, "abc")))
	v, _ := withText.GetString(fix.TagMsgSeqNum)
	assert.Equal(t, "0", v)

	without := BuildExecutionReport(newOrder(fld(fix.TagClOrdID, "A")))
	assert.False(t, without.Has(fix.TagMsgSeqNum))
}

func TestBuildExecutionReport_CopiesFieldsVerbatim(t *testing.T) {
	report := BuildExecutionReport(newOrder(fld(fix.TagOrderQty, "abc"), fld(fix.TagPrice, "xyz")))

	qty, _ := report.GetString(fix.TagOrderQty)
	price, _ := report.GetString(fix.TagPrice)
	assert.Equal(t, "abc", qty)
	assert.Equal(t, "xyz", price)
}

func TestBuildExecutionReport_EmptyClOrdIDIsUnknown(t *testing.T) {
	report := BuildExecutionReport(newOrder(fld(fix.TagClOrdID, ""), fld(fix.TagMsgSeqNum, "2")))

	assert.Equal(t, "8=FIX.4.2|35=8|11=UNKNOWN|34=2|17=EXEC456|39=2|150=F|", report.String())
}
