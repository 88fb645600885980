package types

import (
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. All components MUST use these constants instead of
// hardcoded strings so severity classification stays reliable.
const (
	// Extraction
	ErrCodeProviderFault       ErrorCode = "extraction_provider_fault"
	ErrCodeProviderTimeout     ErrorCode = "extraction_provider_timeout"
	ErrCodeProviderUnavailable ErrorCode = "extraction_provider_unavailable"
	ErrCodeNoProviderAvailable ErrorCode = "extraction_no_provider_available"

	// Configuration
	ErrCodeConfigInvalidROI       ErrorCode = "config_invalid_roi"
	ErrCodeConfigInvalidThreshold ErrorCode = "config_invalid_threshold"
	ErrCodeConfigInvalidInterval  ErrorCode = "config_invalid_interval"
	ErrCodeConfigMissingField     ErrorCode = "config_missing_required_field"

	// Hardware
	ErrCodeCaptureFault        ErrorCode = "hardware_capture_fault"
	ErrCodeRelayActuationFault ErrorCode = "hardware_relay_actuation_fault"

	// Persistence
	ErrCodePersistenceFault ErrorCode = "persistence_append_fault"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Fatal reports whether an error code represents a state in which the safety
// guarantees of the cycle controller can no longer be trusted. Fatal errors
// unwind past the monitoring loop to its supervisor; everything else is
// recovered within the cycle that produced it.
func (c ErrorCode) Fatal() bool {
	return c == ErrCodeRelayActuationFault
}

// Recoverable is the complement of Fatal for readability at call sites.
func (c ErrorCode) Recoverable() bool {
	return !c.Fatal()
}

// Category returns the taxonomy prefix of the code ("extraction", "config",
// "hardware", "persistence", "internal"). Used as a log dimension.
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// AppError is the standard application error type used throughout the daemon.
// All domain errors should be expressed as AppError to enable consistent
// severity classification and structured logging.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether this error must terminate monitoring.
func (e *AppError) Fatal() bool {
	return e.Code.Fatal()
}

// WithDetails returns a copy of the error with the provided details merged in,
// leaving the original untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
