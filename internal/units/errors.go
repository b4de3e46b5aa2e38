package units

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes unit-layer errors.
type ErrorCode string

const (
	// ErrCodeBadLiteral indicates a quantity literal that does not match the
	// "<number> <unit>" grammar.
	ErrCodeBadLiteral ErrorCode = "BAD_LITERAL"

	// ErrCodeUnsupportedUnit indicates a conversion between units the
	// converter has no rule for. This is a routing bug in the caller, never
	// expected from correctly dispatched commands.
	ErrCodeUnsupportedUnit ErrorCode = "UNSUPPORTED_UNIT"
)

// Error is a structured unit-layer error. Input carries the offending
// substring so boundary code can point at what the user typed.
type Error struct {
	Code    ErrorCode
	Message string
	Input   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: %s (input=%q)", e.Code, e.Message, e.Input)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBadLiteralError returns true for quantity literal parse failures.
// Uses errors.As to handle wrapped errors.
func IsBadLiteralError(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == ErrCodeBadLiteral
	}
	return false
}

// IsUnsupportedUnitError returns true for conversions with no defined rule.
func IsUnsupportedUnitError(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == ErrCodeUnsupportedUnit
	}
	return false
}
