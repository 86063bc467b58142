package utils

import (
	"github.com/google/uuid"
)

// GenerateUUIDv7 genera un UUID v7 (ordenable por tiempo).
//
// UUIDv7 usa los primeros 48 bits para timestamp Unix ms, lo que permite
// iterar el outbox en orden de llegada.
//
// Example:
//
//	id := utils.GenerateUUIDv7()
//	// => "018f3c2e-9b1a-7c4d-8e2f-0a1b2c3d4e5f"
func GenerateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// MustGenerateUUIDv7 es igual que GenerateUUIDv7 pero entra en pánico en caso de error.
func MustGenerateUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
