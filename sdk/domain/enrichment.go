package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twh32/my-fix-project/sdk/fix"
)

// ProcessedTimestampLayout es el formato de processed_timestamp (RFC 3339 UTC con nanosegundos).
const ProcessedTimestampLayout = time.RFC3339Nano

// Transformer convierte frames FIX de órdenes en CanonicalOrder.
//
// Clock permite fijar el tiempo en tests; si es nil se usa time.Now.
type Transformer struct {
	Clock func() time.Time
}

// NewTransformer crea un Transformer con reloj de pared.
func NewTransformer() *Transformer {
	return &Transformer{Clock: time.Now}
}

// Transform mapea y enriquece un frame. Nunca falla: los valores ausentes o
// inválidos se reemplazan por defaults.
//
// Mapeo:
//
//	11 -> order_id       ("UNKNOWN")
//	55 -> symbol         ("N/A")
//	38 -> quantity       (entero, 0)
//	44 -> price          (float, 0.0)
//	60 -> transact_time  (nil)
//
// Example:
//
//	tr := &domain.Transformer{Clock: func() time.Time { return fixed }}
//	order := tr.Transform(msg)
func (t *Transformer) Transform(msg *fix.Message) CanonicalOrder {
	now := time.Now
	if t != nil && t.Clock != nil {
		now = t.Clock
	}

	order := CanonicalOrder{
		OrderID:      stringOr(msg, fix.TagClOrdID, UnknownOrderID),
		Symbol:       stringOr(msg, fix.TagSymbol, UnknownSymbol),
		Quantity:     parseQuantity(msg),
		Price:        parsePrice(msg),
		BusinessUnit: DefaultBusinessUnit,
		TraderID:     DefaultTraderID,
		RiskCategory: DefaultRiskCategory,
	}
	if v, ok := msg.GetString(fix.TagTransactTime); ok {
		order.TransactTime = &v
	}
	order.ProcessedTimestamp = now().UTC().Format(ProcessedTimestampLayout)
	return order
}

// Enrich transforma con el reloj de pared.
func Enrich(msg *fix.Message) CanonicalOrder {
	return NewTransformer().Transform(msg)
}

func stringOr(msg *fix.Message, tag int, def string) string {
	if v, ok := msg.GetString(tag); ok {
		return v
	}
	return def
}

// parseQuantity acepta enteros con signo y espacios alrededor; cualquier otro texto es 0.
func parseQuantity(msg *fix.Message) int {
	v, ok := msg.GetString(fix.TagOrderQty)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

// parsePrice usa decimal para que NaN, Inf y exponentes fuera de rango de
// float64 resulten en 0.
func parsePrice(msg *fix.Message) float64 {
	v, ok := msg.GetString(fix.TagPrice)
	if !ok {
		return 0
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
