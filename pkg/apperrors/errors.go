package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotInitialized = errors.New("service not initialized")
)
