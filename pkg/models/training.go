package models

import "time"

// TrainingDataType identifies what a training item teaches the generator.
type TrainingDataType string

const (
	TrainingDDL           TrainingDataType = "ddl"
	TrainingDocumentation TrainingDataType = "documentation"
	TrainingSQL           TrainingDataType = "sql"
)

// TrainingItem is one piece of knowledge available to the SQL generator.
// Question is only set for TrainingSQL items, where Content holds the SQL.
type TrainingItem struct {
	ID        string           `json:"id"`
	Type      TrainingDataType `json:"training_data_type"`
	Question  string           `json:"question,omitempty"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}
