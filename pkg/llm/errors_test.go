package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "minimal",
			err:      &Error{Type: ErrorTypeAuth, Message: "authentication failed"},
			expected: "auth authentication failed",
		},
		{
			name:     "status and model",
			err:      &Error{Type: ErrorTypeEndpoint, Message: "server error", StatusCode: 503, Model: "gpt-4o"},
			expected: "endpoint HTTP 503 model=gpt-4o server error",
		},
		{
			name:     "endpoint reduced to host",
			err:      &Error{Type: ErrorTypeEndpoint, Message: "connection failed", Endpoint: "https://api.openai.com/v1"},
			expected: "endpoint endpoint=api.openai.com connection failed",
		},
		{
			name:     "with cause",
			err:      &Error{Type: ErrorTypeUnknown, Message: "llm error", Cause: errors.New("boom")},
			expected: "unknown llm error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		errType    ErrorType
		retryable  bool
		statusCode int
	}{
		{name: "503", input: "HTTP 503 Service Unavailable", errType: ErrorTypeEndpoint, retryable: true, statusCode: 503},
		{name: "429", input: "HTTP 429 Too Many Requests", errType: ErrorTypeRateLimited, retryable: true, statusCode: 429},
		{name: "rate limit text", input: "rate limit exceeded", errType: ErrorTypeRateLimited, retryable: true},
		{name: "401", input: "status code: 401, message: Incorrect API key provided", errType: ErrorTypeAuth, statusCode: 401},
		{name: "model missing", input: "The model `gpt-9` does not exist", errType: ErrorTypeModel},
		{name: "404", input: "HTTP 404 Not Found", errType: ErrorTypeEndpoint, statusCode: 404},
		{name: "connection refused", input: "dial tcp 127.0.0.1:11434: connection refused", errType: ErrorTypeEndpoint, retryable: true},
		{name: "deadline", input: "context deadline exceeded", errType: ErrorTypeEndpoint, retryable: true},
		{name: "cancelled", input: "context canceled", errType: ErrorTypeCancelled},
		{name: "unknown", input: "something odd", errType: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyError(errors.New(tt.input))
			require.NotNil(t, result)
			assert.Equal(t, tt.errType, result.Type)
			assert.Equal(t, tt.retryable, result.Retryable)
			assert.Equal(t, tt.statusCode, result.StatusCode)
		})
	}
}

func TestClassifyError_PreservesExistingError(t *testing.T) {
	original := NewError(ErrorTypeModel, "model not found", false, nil)
	wrapped := errors.Join(errors.New("outer"), original)

	assert.Same(t, original, ClassifyError(wrapped))
	assert.Nil(t, ClassifyError(nil))
}

func TestExtractStatusCode(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{input: "HTTP 503 Service Unavailable", expected: 503},
		{input: "status: 500", expected: 500},
		{input: "Status: 404 Not Found", expected: 404},
		{input: "code 502 bad gateway", expected: 502},
		{input: "processed 503 records", expected: 0},
		{input: "port 5432 connection failed", expected: 0},
		{input: "error after 429 seconds", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractStatusCode(tt.input))
		})
	}
}

func TestIsRetryableAndGetErrorType(t *testing.T) {
	err := NewErrorWithContext(ErrorTypeEndpoint, "server error", true, nil, "m", "http://x", 500)

	assert.True(t, IsRetryable(err))
	assert.True(t, err.IsRetryable())
	assert.Equal(t, ErrorTypeEndpoint, GetErrorType(err))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}
