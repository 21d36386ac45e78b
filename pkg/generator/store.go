package generator

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// StoredItem is a training item together with its embedding, if one was computed.
type StoredItem struct {
	models.TrainingItem
	Embedding []float32
}

// TrainingStore persists training items.
type TrainingStore interface {
	Add(ctx context.Context, item StoredItem) error
	List(ctx context.Context) ([]StoredItem, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteTrainingStore keeps training items in the training_data table.
type SQLiteTrainingStore struct {
	db *sql.DB
}

var _ TrainingStore = (*SQLiteTrainingStore)(nil)

// NewSQLiteTrainingStore wraps a migrated database handle.
func NewSQLiteTrainingStore(db *sql.DB) *SQLiteTrainingStore {
	return &SQLiteTrainingStore{db: db}
}

func (s *SQLiteTrainingStore) Add(ctx context.Context, item StoredItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_data (id, training_data_type, question, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Type), item.Question, item.Content, encodeEmbedding(item.Embedding), item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert training item: %w", err)
	}
	return nil
}

// List returns all items, oldest first.
func (s *SQLiteTrainingStore) List(ctx context.Context) ([]StoredItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, training_data_type, question, content, embedding, created_at
		 FROM training_data ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list training data: %w", err)
	}
	defer rows.Close()

	items := make([]StoredItem, 0)
	for rows.Next() {
		var (
			item      StoredItem
			itemType  string
			embedding []byte
		)
		if err := rows.Scan(&item.ID, &itemType, &item.Question, &item.Content, &embedding, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training item: %w", err)
		}
		item.Type = models.TrainingDataType(itemType)
		item.Embedding = decodeEmbedding(embedding)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training data: %w", err)
	}
	return items, nil
}

func (s *SQLiteTrainingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count training data: %w", err)
	}
	return n, nil
}

// Embeddings are stored as little-endian float32 values.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
