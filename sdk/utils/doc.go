// Package utils provee utilidades comunes del SDK.
//
// # Utilidades Incluidas
//
// - UUID: Generación de UUIDv7 ordenables por tiempo (ids del outbox)
// - Timestamp: Helpers para timestamps Unix en ms y backoffs en ms
// - JSON: Serialización del payload de órdenes canónicas
//
// # Uso de UUID
//
//	id := utils.GenerateUUIDv7()
//
// # Uso de JSON
//
//	payload, err := utils.MarshalJSON(order)
//	fmt.Println(utils.PrettyPrint(payload))
package utils
