package errors

import (
	stderrors "errors"
	"fmt"
)

// ClaridocError is the structured error type for claridoc.
// It provides rich context for error handling, logging, and user presentation.
type ClaridocError struct {
	// Code is the unique error code (e.g., "ERR_210_VOCABULARY_IO").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller can retry the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ClaridocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ClaridocError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ClaridocError.
func (e *ClaridocError) Is(target error) bool {
	if t, ok := target.(*ClaridocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ClaridocError) WithDetail(key, value string) *ClaridocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ClaridocError) WithSuggestion(suggestion string) *ClaridocError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ClaridocError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ClaridocError {
	return &ClaridocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ClaridocError from an existing error.
// The error's message becomes the ClaridocError message.
func Wrap(code string, err error) *ClaridocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ClaridocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ClaridocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ClaridocError {
	return New(ErrCodeInternal, message, cause)
}

// SchemaDetectionFailure reports an unsupported or undetected document type.
func SchemaDetectionFailure(message string, cause error) *ClaridocError {
	return New(ErrCodeSchemaDetection, message, cause)
}

// ExtractionFailure reports a failed or malformed metadata extraction call.
func ExtractionFailure(message string, cause error) *ClaridocError {
	return New(ErrCodeExtractionFailed, message, cause)
}

// VocabularyIOFailure reports a vocabulary storage read or write error.
func VocabularyIOFailure(message string, cause error) *ClaridocError {
	return New(ErrCodeVocabularyIO, message, cause)
}

// MalformedRerankOutput reports a rerank response that is not a valid permutation.
func MalformedRerankOutput(message string, cause error) *ClaridocError {
	return New(ErrCodeRerankMalformed, message, cause)
}

// EmptyQueryFailure reports a query that sanitizes to the empty string.
func EmptyQueryFailure() *ClaridocError {
	return New(ErrCodeQueryEmpty, "query cannot be empty", nil)
}

// As finds the first ClaridocError in err's chain.
func As(err error) (*ClaridocError, bool) {
	var ce *ClaridocError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCode reports whether any ClaridocError in err's chain carries code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &ClaridocError{Code: code})
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first ClaridocError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from the first ClaridocError in the chain.
func GetCategory(err error) Category {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return ""
}
