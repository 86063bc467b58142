package domain

import (
	"errors"
	"fmt"
)

// ErrorCode representa un código de error del gateway.
type ErrorCode string

// Códigos de error estándar
const (
	// ErrNoError indica éxito (sin error)
	ErrNoError ErrorCode = "NO_ERROR"

	// Errores de wire/sesión
	ErrDecodeFailed       ErrorCode = "DECODE_FAILED"
	ErrChecksumMismatch   ErrorCode = "CHECKSUM_MISMATCH"
	ErrBodyLengthMismatch ErrorCode = "BODY_LENGTH_MISMATCH"
	ErrFrameTooLarge      ErrorCode = "FRAME_TOO_LARGE"
	ErrSequenceGap        ErrorCode = "SEQUENCE_GAP"

	// Errores de validación
	ErrMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrInvalidConfig        ErrorCode = "INVALID_CONFIG"

	// Errores de entrega
	ErrDeliveryFailed  ErrorCode = "DELIVERY_FAILED"
	ErrQueueFull       ErrorCode = "QUEUE_FULL"
	ErrSinkUnavailable ErrorCode = "SINK_UNAVAILABLE"
	ErrUnknown         ErrorCode = "UNKNOWN"
)

// GatewayError representa un error del gateway con contexto.
type GatewayError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implementa la interfaz error.
func (e *GatewayError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implementa la interfaz errors.Unwrap.
func (e *GatewayError) Unwrap() error {
	return e.Wrapped
}

// WithDetail agrega un detalle al error.
func (e *GatewayError) WithDetail(key string, value interface{}) *GatewayError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError crea un nuevo GatewayError.
//
// Example:
//
//	err := domain.NewError(domain.ErrInvalidConfig, "delivery/queue_size must be > 0")
func NewError(code ErrorCode, message string) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError envuelve un error existente con contexto del gateway.
//
// Example:
//
//	err := domain.WrapError(domain.ErrSinkUnavailable, "kafka write failed", originalErr)
func WrapError(code ErrorCode, message string, wrapped error) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: wrapped,
	}
}

// CodeOf retorna el ErrorCode del primer GatewayError en la cadena de err.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrNoError
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ErrUnknown
}

// IsRetryable indica si un error de entrega puede reintentarse.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrSinkUnavailable, ErrDeliveryFailed, ErrQueueFull:
		return true
	default:
		return false
	}
}
