package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain-specific errors
type ErrorType string

const (
	// ErrorTypeTransport covers network failures, timeouts, auth errors and
	// rate limits. Potentially transient; callers may retry.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeParse means the model output did not match the expected
	// grammar. Never retried automatically; the raw output is preserved.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeNoEligibleModel means no catalogued model satisfies the
	// selection requirement.
	ErrorTypeNoEligibleModel ErrorType = "no_eligible_model"
	// ErrorTypeCacheCorruption means the persisted catalog is unreadable.
	// Absorbed as a cache miss, never fatal.
	ErrorTypeCacheCorruption ErrorType = "cache_corruption"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeConversion      ErrorType = "conversion"
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeIO              ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Raw     string // raw model output, set for parse errors
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func TransportError(message string, err error) *DomainError {
	return NewError(ErrorTypeTransport, message, err)
}

// ParseError records a grammar violation together with the raw completion
// text so callers can log it for prompt tuning.
func ParseError(message, raw string) *DomainError {
	return &DomainError{Type: ErrorTypeParse, Message: message, Raw: raw}
}

func NoEligibleModelError(message string) *DomainError {
	return NewError(ErrorTypeNoEligibleModel, message, nil)
}

func CacheCorruptionError(message string, err error) *DomainError {
	return NewError(ErrorTypeCacheCorruption, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err is a DomainError of the given type.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return IsType(err, ErrorTypeTransport) }

// IsParse reports whether err is a parse failure.
func IsParse(err error) bool { return IsType(err, ErrorTypeParse) }

// IsNoEligibleModel reports whether err means the selection constraints
// were unsatisfiable against the current catalog.
func IsNoEligibleModel(err error) bool { return IsType(err, ErrorTypeNoEligibleModel) }

// RawOutput returns the raw model output attached to a parse error, or "".
func RawOutput(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Raw
	}
	return ""
}
