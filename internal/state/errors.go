package state

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes state-layer errors.
type ErrorCode string

const (
	// ErrCodeUnknownStream indicates a stream name with no base unit
	// registered. This is a routing bug in the caller.
	ErrCodeUnknownStream ErrorCode = "UNKNOWN_STREAM"

	// ErrCodeUnknownSubstance indicates an application and substance pair
	// that was never registered with the store.
	ErrCodeUnknownSubstance ErrorCode = "UNKNOWN_SUBSTANCE"

	// ErrCodeStreamNotEnabled indicates a non-zero write to a sales stream
	// that was never enabled for the scope.
	ErrCodeStreamNotEnabled ErrorCode = "STREAM_NOT_ENABLED"

	// ErrCodeNoStreamsEnabled indicates a sales distribution was needed but
	// no sales stream has been enabled for the scope.
	ErrCodeNoStreamsEnabled ErrorCode = "NO_STREAMS_ENABLED"

	// ErrCodeZeroInitialCharge indicates a unit-denominated sales write
	// against a scope whose initial charge is zero.
	ErrCodeZeroInitialCharge ErrorCode = "ZERO_INITIAL_CHARGE"

	// ErrCodeNotSalesSubstream indicates an initial charge keyed to a
	// stream that is not a sales substream.
	ErrCodeNotSalesSubstream ErrorCode = "NOT_SALES_SUBSTREAM"
)

// Error is a structured state-layer error. Application and Substance name
// the scope when one is involved.
type Error struct {
	Code        ErrorCode
	Message     string
	Application string
	Substance   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Application != "" || e.Substance != "" {
		return fmt.Sprintf("%s: %s (application=%q substance=%q)",
			e.Code, e.Message, e.Application, e.Substance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownSubstanceError returns true when err reports an unregistered
// application and substance pair. Uses errors.As to handle wrapped errors.
func IsUnknownSubstanceError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownSubstance
	}
	return false
}

// IsStreamNotEnabledError returns true when err reports a write to a sales
// stream that was never enabled.
func IsStreamNotEnabledError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeStreamNotEnabled
	}
	return false
}

// IsNoStreamsEnabledError returns true when err reports that a sales
// distribution could not be built because nothing was enabled.
func IsNoStreamsEnabledError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeNoStreamsEnabled
	}
	return false
}
