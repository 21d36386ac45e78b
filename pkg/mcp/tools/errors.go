// Package tools provides the MCP tools backed by the chat service.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned this way, as a result flagged
// IsError, so clients show them instead of swallowing a protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// serviceError converts errors the caller can act on into error results.
// Anything else is returned as a Go error so the server reports a failure.
func serviceError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult("invalid_parameters", err.Error()), nil
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrNotInitialized):
		return NewErrorResult("not_initialized", services.MsgNotInitialized), nil
	}
	return nil, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
