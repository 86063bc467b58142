package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twh32/my-fix-project/sdk/fix"
)

// ValidationError representa un error de validación.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implementa la interfaz error.
func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", v.Field, v.Value, v.Message)
}

// NewValidationError crea un nuevo ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// MissingTags retorna los tags de required ausentes en msg, en el orden de required.
func MissingTags(msg *fix.Message, required []int) []int {
	var missing []int
	for _, tag := range required {
		if !msg.Has(tag) {
			missing = append(missing, tag)
		}
	}
	return missing
}

// ValidateFrame verifica que el frame traiga los tags del header/trailer estándar
// (8, 9, 35, 49, 52, 56, 10).
//
// La sesión solo registra el resultado como warning; el frame se procesa igual.
//
// Example:
//
//	if err := domain.ValidateFrame(msg); err != nil {
//	    logger.Warn(ctx, "Frame incompleto", attribute.String("error", err.Error()))
//	}
func ValidateFrame(msg *fix.Message) error {
	missing := MissingTags(msg, fix.StandardHeaderTags)
	if len(missing) == 0 {
		return nil
	}

	parts := make([]string, len(missing))
	for i, tag := range missing {
		parts[i] = fmt.Sprintf("%d", tag)
	}
	return NewError(ErrMissingRequiredField, "missing required tags").
		WithDetail("missing_tags", strings.Join(parts, ","))
}

// ValidateNewOrderSingle verifica los campos de negocio de una orden (35=D).
func ValidateNewOrderSingle(msg *fix.Message) error {
	if msg.MsgType() != fix.MsgTypeNewOrderSingle {
		return NewValidationError("35", msg.MsgType(), "expected NewOrderSingle (D)")
	}
	for _, tag := range []int{fix.TagClOrdID, fix.TagSymbol, fix.TagOrderQty, fix.TagPrice} {
		if !msg.Has(tag) {
			return NewValidationError(fmt.Sprintf("%d", tag), nil, "tag is required")
		}
	}
	return nil
}

// DecodeErrorCode traduce un error del codec FIX a su ErrorCode.
func DecodeErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrNoError
	case errors.Is(err, fix.ErrChecksumMismatch):
		return ErrChecksumMismatch
	case errors.Is(err, fix.ErrBodyLengthMismatch):
		return ErrBodyLengthMismatch
	case errors.Is(err, fix.ErrFrameTooLarge):
		return ErrFrameTooLarge
	default:
		return ErrDecodeFailed
	}
}
