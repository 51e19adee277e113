package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GenericUserMessage is the only text external callers see for fatal failures.
const GenericUserMessage = "processing error"

// FormatForUser returns a user-facing message.
// Internal codes, causes and identifiers are never included; the specific
// kind is expected to be logged separately with FormatForLog.
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := As(err)
	if !ok {
		return "Error: " + GenericUserMessage
	}

	// Validation messages are written for users already.
	if ce.Category == CategoryValidation && ce.Code != ErrCodeSchemaDetection {
		return "Error: " + ce.Message
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(GenericUserMessage)
	if ce.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ce.Suggestion)
	}
	return sb.String()
}

// FormatForCLI formats an error for terminal output.
// The CLI is an operator surface, so the code is shown for reference.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := As(err)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ce.Message))
	if ce.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ce.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ce.Code))
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for machine consumers.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ce, ok := As(err)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ce.Code,
		Message:    ce.Message,
		Category:   string(ce.Category),
		Severity:   string(ce.Severity),
		Details:    ce.Details,
		Suggestion: ce.Suggestion,
		Retryable:  ce.Retryable,
	}
	if ce.Cause != nil {
		je.Cause = ce.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ce, ok := As(err)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ce.Code,
		"message":    ce.Message,
		"category":   string(ce.Category),
		"severity":   string(ce.Severity),
		"retryable":  ce.Retryable,
	}
	if ce.Cause != nil {
		result["cause"] = ce.Cause.Error()
	}
	if ce.Suggestion != "" {
		result["suggestion"] = ce.Suggestion
	}
	for k, v := range ce.Details {
		result["detail_"+k] = v
	}

	return result
}

// LogAttrs flattens FormatForLog into slog key-value arguments.
func LogAttrs(err error) []any {
	fields := FormatForLog(err)
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
