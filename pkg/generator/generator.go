// Package generator turns questions into SQL with a chat-completion model
// primed by stored training data (DDL, documentation and question/SQL pairs).
package generator

import (
	"context"
	"errors"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

var (
	// ErrNotReady is returned when the generator has no model or store.
	ErrNotReady = errors.New("generator: not initialized")
	// ErrInvalidTrainingItem is returned for items missing required fields.
	ErrInvalidTrainingItem = errors.New("generator: invalid training item")
)

// Generator produces SQL and explanations and manages its training data.
// Implementations must be safe for concurrent use.
type Generator interface {
	// GenerateSQL returns the raw model reply for question. It may hold a
	// fenced statement, bare SQL, or prose explaining why no SQL exists.
	GenerateSQL(ctx context.Context, question string) (string, error)

	// GenerateExplanation describes what sqlQuery does for question.
	GenerateExplanation(ctx context.Context, question, sqlQuery string) (string, error)

	// Train stores item and returns its ID.
	Train(ctx context.Context, item models.TrainingItem) (string, error)

	TrainingData(ctx context.Context) ([]models.TrainingItem, error)
	TrainingCount(ctx context.Context) (int, error)

	// Ready reports whether the generator can serve requests.
	Ready() bool
}
