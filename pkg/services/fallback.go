package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
)

// Attempt runs fn and returns its value, or fallback when fn fails.
// Optional enrichment steps (expansion, explanation, suggestions, table
// analysis) go through here. Callers check ctx.Err() themselves after a
// cancelled step.
func Attempt[T any](ctx context.Context, logger *zap.Logger, op string, fallback T, fn func(ctx context.Context) (T, error)) T {
	v, err := fn(ctx)
	if err == nil {
		return v
	}

	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		logger.Debug("Step cancelled, using fallback", zap.String("operation", op))
		return fallback
	}

	logger.Warn("Step failed, using fallback",
		zap.String("operation", op),
		zap.String("error", logging.SanitizeError(err)))
	return fallback
}
