package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// SQLiteConversationRepository stores transcripts in the conversations and
// messages tables of a migrated SQLite database.
type SQLiteConversationRepository struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time
}

var _ ConversationRepository = (*SQLiteConversationRepository)(nil)

func NewSQLiteConversationRepository(db *sql.DB) *SQLiteConversationRepository {
	return &SQLiteConversationRepository{db: db, locks: newKeyedMutex(), now: time.Now}
}

func (r *SQLiteConversationRepository) Create(ctx context.Context, title string) (*models.Conversation, error) {
	conv := models.NewConversation(title, utcNow(r.now))
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, title, created_at, updated_at, message_count)
		 VALUES (?, ?, ?, ?, 0)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (r *SQLiteConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return r.load(ctx, r.db, id)
}

func (r *SQLiteConversationRepository) List(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT conversation_id, title, created_at, updated_at, message_count
		 FROM conversations
		 ORDER BY updated_at DESC, conversation_id
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	list := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return list, nil
}

func (r *SQLiteConversationRepository) UpdateTitle(ctx context.Context, id, title string) (*models.Conversation, error) {
	return r.mutate(ctx, id, func(tx *sql.Tx, c *models.Conversation, now time.Time) error {
		if t := strings.TrimSpace(title); t != "" {
			c.Title = t
		}
		c.Touch(now)
		return nil
	})
}

func (r *SQLiteConversationRepository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return tx.Commit()
}

func (r *SQLiteConversationRepository) AddMessage(ctx context.Context, id string, role models.MessageRole, content string) (*models.Message, error) {
	var msg models.Message
	_, err := r.mutate(ctx, id, func(tx *sql.Tx, c *models.Conversation, now time.Time) error {
		msg = models.Message{
			ID:             models.NewMessageID(),
			ConversationID: c.ID,
			Role:           role,
			Content:        content,
			CreatedAt:      now,
		}
		seq := len(c.Messages)
		c.AppendMessage(msg, now)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (message_id, conversation_id, seq, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.ConversationID, seq, string(msg.Role), msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *SQLiteConversationRepository) Messages(ctx context.Context, id string, limit, offset int) ([]models.Message, error) {
	conv, err := r.load(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	start, end := page(len(conv.Messages), limit, offset)
	return conv.Messages[start:end], nil
}

func (r *SQLiteConversationRepository) ClearMessages(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, id, func(tx *sql.Tx, c *models.Conversation, now time.Time) error {
		c.ClearMessages(now)
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}
		return nil
	})
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// mutate loads the conversation inside a transaction under its lock, lets
// fn change it, and writes the header row back.
func (r *SQLiteConversationRepository) mutate(ctx context.Context, id string, fn func(tx *sql.Tx, c *models.Conversation, now time.Time) error) (*models.Conversation, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	conv, err := r.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, conv, utcNow(r.now)); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ?, message_count = ? WHERE conversation_id = ?`,
		conv.Title, conv.UpdatedAt, conv.MessageCount, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return conv, nil
}

func (r *SQLiteConversationRepository) load(ctx context.Context, q queryer, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := q.QueryRowContext(ctx,
		`SELECT conversation_id, title, created_at, updated_at FROM conversations WHERE conversation_id = ?`, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT message_id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	c.Messages = []models.Message{}
	for rows.Next() {
		var (
			m    models.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.MessageRole(role)
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	c.MessageCount = len(c.Messages)
	return &c, nil
}
