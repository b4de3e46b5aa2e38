package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes configuration errors.
type ErrorCode string

const (
	// ErrCodeUnreadable indicates the program file could not be read.
	ErrCodeUnreadable ErrorCode = "UNREADABLE"

	// ErrCodeBadYAML indicates the file is not well-formed YAML or uses
	// fields the schema does not define.
	ErrCodeBadYAML ErrorCode = "BAD_YAML"

	// ErrCodeInvalidProgram indicates the program parsed but violates the
	// schema's semantic rules. Violations lists every rule broken, not just
	// the first.
	ErrCodeInvalidProgram ErrorCode = "INVALID_PROGRAM"
)

// Error is a structured configuration error.
type Error struct {
	Code       ErrorCode
	Message    string
	Violations []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s\n  - %s",
		e.Code, e.Message, strings.Join(e.Violations, "\n  - "))
}

// IsBadYAMLError returns true for malformed or unrecognized YAML.
// Uses errors.As to handle wrapped errors.
func IsBadYAMLError(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeBadYAML
	}
	return false
}

// IsInvalidProgramError returns true for programs that parsed but failed
// semantic validation.
func IsInvalidProgramError(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalidProgram
	}
	return false
}
