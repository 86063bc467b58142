package domain

// Valores fijos de enriquecimiento.
const (
	DefaultBusinessUnit = "BU-001"
	DefaultTraderID     = "TRADER001"
	DefaultRiskCategory = "LOW"

	// UnknownOrderID se usa cuando el frame no trae ClOrdID (11).
	UnknownOrderID = "UNKNOWN"

	// UnknownSymbol se usa cuando el frame no trae Symbol (55).
	UnknownSymbol = "N/A"
)

// CanonicalOrder es el registro enriquecido que se entrega al sink.
//
// Los nombres JSON son el contrato con los consumidores downstream.
type CanonicalOrder struct {
	OrderID            string  `json:"order_id"`
	Symbol             string  `json:"symbol"`
	Quantity           int     `json:"quantity"`
	Price              float64 `json:"price"`
	TransactTime       *string `json:"transact_time"`
	BusinessUnit       string  `json:"business_unit"`
	TraderID           string  `json:"trader_id"`
	RiskCategory       string  `json:"risk_category"`
	ProcessedTimestamp string  `json:"processed_timestamp"`
}

// Key retorna una clave estable del registro (order_id + processed_timestamp).
//
// Sirve como clave de deduplicación para sinks con semántica at-least-once.
func (o CanonicalOrder) Key() string {
	return o.OrderID + "|" + o.ProcessedTimestamp
}
