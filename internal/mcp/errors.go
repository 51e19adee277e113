// Package mcp serves document ingestion and questions over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/session"
)

// Custom MCP error codes.
const (
	// ErrCodeSessionNotFound indicates an unknown or expired session.
	ErrCodeSessionNotFound = -32001

	// ErrCodeNoDocument indicates a session with nothing ingested.
	ErrCodeNoDocument = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a path that does not exist.
	ErrCodeFileNotFound = -32004

	// ErrCodeFileTooLarge indicates a download over the size limit.
	ErrCodeFileTooLarge = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Processing failures
// carry only the generic message; their details go to the log.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, session.ErrNotFound):
		return &MCPError{Code: ErrCodeSessionNotFound, Message: "Session not found or expired."}
	case errors.Is(err, session.ErrNoDocument):
		return &MCPError{Code: ErrCodeNoDocument, Message: "No document ingested for this session."}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	if ce, ok := clerrors.As(err); ok {
		return mapClaridocError(ce)
	}
	return &MCPError{Code: ErrCodeInternalError, Message: clerrors.GenericUserMessage}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

func mapClaridocError(ce *clerrors.ClaridocError) *MCPError {
	switch ce.Code {
	case clerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: ce.Message}
	case clerrors.ErrCodeFileTooLarge:
		return &MCPError{Code: ErrCodeFileTooLarge, Message: ce.Message}
	case clerrors.ErrCodeSchemaDetection:
		return &MCPError{Code: ErrCodeInternalError, Message: clerrors.GenericUserMessage}
	}

	switch ce.Category {
	case clerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: ce.Message}
	case clerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: clerrors.GenericUserMessage}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: clerrors.GenericUserMessage}
	}
}
