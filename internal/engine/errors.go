package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine-layer errors.
type ErrorCode string

const (
	// ErrCodeMissingScope indicates a command ran before both an
	// application and a substance were selected.
	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"

	// ErrCodeSelfDisplacement indicates a displacement target naming the
	// stream being displaced.
	ErrCodeSelfDisplacement ErrorCode = "SELF_DISPLACEMENT"

	// ErrCodeSelfReplacement indicates a replacement destination naming
	// the substance being replaced.
	ErrCodeSelfReplacement ErrorCode = "SELF_REPLACEMENT"

	// ErrCodeSimulationComplete indicates a year advance past the
	// simulation's end year.
	ErrCodeSimulationComplete ErrorCode = "SIMULATION_COMPLETE"

	// ErrCodeUnsupportedIntensity indicates an intensity assignment whose
	// units are neither emissions nor energy.
	ErrCodeUnsupportedIntensity ErrorCode = "UNSUPPORTED_INTENSITY"

	// ErrCodeBadInductionRate indicates an induction rate that is not a
	// percentage between 0 and 100.
	ErrCodeBadInductionRate ErrorCode = "BAD_INDUCTION_RATE"

	// ErrCodeMixedRetire indicates retire commands with and without
	// replacement issued in the same step for the same scope.
	ErrCodeMixedRetire ErrorCode = "MIXED_RETIRE"

	// ErrCodeEquipmentLimit indicates a cap or floor that reached the
	// limit executor with the equipment stream. Equipment limits route
	// through the equipment lifecycle, so this is a dispatch bug.
	ErrCodeEquipmentLimit ErrorCode = "EQUIPMENT_LIMIT"
)

// Error is a structured engine-layer error. Application and Substance name
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

// missingScopeError builds the error for a command issued before the scope
// names both an application and a substance.
func missingScopeError(action string) *Error {
	return &Error{
		Code: ErrCodeMissingScope,
		Message: "cannot " + action + " because application and substance " +
			"are not both specified",
	}
}

// IsMissingScopeError returns true when err reports a command issued
// without a complete scope. Uses errors.As to handle wrapped errors.
func IsMissingScopeError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeMissingScope
	}
	return false
}

// IsSelfDisplacementError returns true when err reports a stream displaced
// onto itself.
func IsSelfDisplacementError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeSelfDisplacement
	}
	return false
}

// IsSelfReplacementError returns true when err reports a substance replaced
// with itself.
func IsSelfReplacementError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeSelfReplacement
	}
	return false
}

// IsSimulationCompleteError returns true when err reports a year advance
// past the end of the simulation.
func IsSimulationCompleteError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeSimulationComplete
	}
	return false
}

// IsUnsupportedIntensityError returns true when err reports an intensity
// assignment with unusable units.
func IsUnsupportedIntensityError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnsupportedIntensity
	}
	return false
}

// IsMixedRetireError returns true when err reports retire commands with
// and without replacement mixed in one step.
func IsMixedRetireError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeMixedRetire
	}
	return false
}

// IsBadInductionRateError returns true when err reports an out-of-range
// induction rate.
func IsBadInductionRateError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeBadInductionRate
	}
	return false
}
