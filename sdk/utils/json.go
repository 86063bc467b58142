package utils

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MarshalJSON serializa cualquier valor a JSON.
//
// Example:
//
//	payload, err := utils.MarshalJSON(order)
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalJSON deserializa JSON a un valor.
//
// Example:
//
//	var order domain.CanonicalOrder
//	err := utils.UnmarshalJSON(payload, &order)
func UnmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// JSONToMap convierte JSON a map[string]interface{}.
func JSONToMap(data []byte) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := json.Unmarshal(data, &result)
	return result, err
}

// PrettyPrint formatea JSON con indentación para debugging.
//
// Retorna el input original si no es JSON válido.
func PrettyPrint(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// ToJSONString convierte cualquier valor a JSON string.
//
// En caso de error, retorna string vacío.
func ToJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
