package semconv

import (
	"go.opentelemetry.io/otel/attribute"
)

// Logs define las convenciones semánticas para atributos OpenTelemetry usados en logs.
//
// Estos atributos permiten filtrar en Loki/Grafana por componente y evento.
var Logs struct {
	// Component identifica el componente del gateway que genera el log.
	// Ejemplos: "gateway", "session", "dispatcher", "outbox", "sink".
	Component attribute.Key

	// Event identifica la acción específica que ocurrió dentro del componente.
	// Ejemplos: "frame_decoded", "heartbeat_sent", "delivery_dropped".
	Event attribute.Key

	// ServiceName identifica el servicio que genera el log.
	// Se mapea directamente a la convención OTel "service.name".
	ServiceName attribute.Key

	// Environment identifica el entorno de ejecución.
	// Ejemplos: "development", "staging", "production".
	Environment attribute.Key
}

// Metrics define atributos para dimensionar métricas.
var Metrics struct {
	// Status indica el estado de la operación medida ("ok", "error", "dropped").
	Status attribute.Key

	// Reason detalla la causa de un estado no exitoso.
	Reason attribute.Key

	// Sink identifica el sink de entrega ("kafka", "redis", "amqp", ...).
	Sink attribute.Key
}

func init() {
	Logs.Component = attribute.Key("component")
	Logs.Event = attribute.Key("event")

	// Atributos de servicio (siguiendo convenciones OTel)
	Logs.ServiceName = attribute.Key("service.name")
	Logs.Environment = attribute.Key("service.environment")

	Metrics.Status = attribute.Key("status")
	Metrics.Reason = attribute.Key("reason")
	Metrics.Sink = attribute.Key("sink")
}
