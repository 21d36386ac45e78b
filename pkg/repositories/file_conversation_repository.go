package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const indexFileName = "conversations_index.json"

type conversationIndex struct {
	Conversations map[string]models.Conversation `json:"conversations"`
}

// FileConversationRepository stores one JSON file per conversation plus an
// index of summaries used for listing. Files are replaced atomically.
type FileConversationRepository struct {
	dir    string
	locks  *keyedMutex
	now    func() time.Time
	logger *zap.Logger

	indexMu sync.Mutex
	index   conversationIndex
}

var _ ConversationRepository = (*FileConversationRepository)(nil)

// NewFileConversationRepository opens (creating if needed) the store in dir.
// An unreadable index is logged and rebuilt from the conversation files.
func NewFileConversationRepository(dir string, logger *zap.Logger) (*FileConversationRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}

	r := &FileConversationRepository{
		dir:    dir,
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: logger.Named("conversations"),
		index:  conversationIndex{Conversations: map[string]models.Conversation{}},
	}

	if err := r.loadIndex(); err != nil {
		r.logger.Error("Failed to load conversation index, rebuilding", zap.Error(err))
		if err := r.rebuildIndex(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *FileConversationRepository) Create(ctx context.Context, title string) (*models.Conversation, error) {
	conv := models.NewConversation(title, utcNow(r.now))

	unlock := r.locks.Lock(conv.ID)
	defer unlock()

	if err := r.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *FileConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return r.load(id)
}

func (r *FileConversationRepository) List(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	r.indexMu.Lock()
	list := make([]models.Conversation, 0, len(r.index.Conversations))
	for _, c := range r.index.Conversations {
		list = append(list, c)
	}
	r.indexMu.Unlock()

	sortByUpdatedDesc(list)
	start, end := page(len(list), limit, offset)
	return list[start:end], nil
}

func (r *FileConversationRepository) UpdateTitle(ctx context.Context, id, title string) (*models.Conversation, error) {
	return r.mutate(id, func(c *models.Conversation, now time.Time) {
		if t := strings.TrimSpace(title); t != "" {
			c.Title = t
		}
		c.Touch(now)
	})
}

func (r *FileConversationRepository) Delete(ctx context.Context, id string) error {
	if !validConversationID(id) {
		return apperrors.ErrNotFound
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	err := os.Remove(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}

	r.indexMu.Lock()
	delete(r.index.Conversations, id)
	err = r.writeIndexLocked()
	r.indexMu.Unlock()
	return err
}

func (r *FileConversationRepository) AddMessage(ctx context.Context, id string, role models.MessageRole, content string) (*models.Message, error) {
	var msg models.Message
	_, err := r.mutate(id, func(c *models.Conversation, now time.Time) {
		msg = models.Message{
			ID:             models.NewMessageID(),
			ConversationID: c.ID,
			Role:           role,
			Content:        content,
			CreatedAt:      now,
		}
		c.AppendMessage(msg, now)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *FileConversationRepository) Messages(ctx context.Context, id string, limit, offset int) ([]models.Message, error) {
	conv, err := r.load(id)
	if err != nil {
		return nil, err
	}
	start, end := page(len(conv.Messages), limit, offset)
	return conv.Messages[start:end], nil
}

func (r *FileConversationRepository) ClearMessages(ctx context.Context, id string) error {
	_, err := r.mutate(id, func(c *models.Conversation, now time.Time) {
		c.ClearMessages(now)
	})
	return err
}

// mutate runs fn on the stored conversation under its lock and saves the result.
func (r *FileConversationRepository) mutate(id string, fn func(c *models.Conversation, now time.Time)) (*models.Conversation, error) {
	if !validConversationID(id) {
		return nil, apperrors.ErrNotFound
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	conv, err := r.load(id)
	if err != nil {
		return nil, err
	}
	fn(conv, utcNow(r.now))
	if err := r.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *FileConversationRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *FileConversationRepository) load(id string) (*models.Conversation, error) {
	if !validConversationID(id) {
		return nil, apperrors.ErrNotFound
	}
	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	conv.MessageCount = len(conv.Messages)
	return &conv, nil
}

func (r *FileConversationRepository) save(conv *models.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := writeFileAtomic(r.path(conv.ID), data); err != nil {
		return fmt.Errorf("failed to write conversation %s: %w", conv.ID, err)
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.index.Conversations[conv.ID] = conv.Summary()
	return r.writeIndexLocked()
}

func (r *FileConversationRepository) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(r.dir, indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return r.rebuildIndex()
	}
	if err != nil {
		return err
	}

	var idx conversationIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	if idx.Conversations == nil {
		idx.Conversations = map[string]models.Conversation{}
	}
	r.index = idx
	return nil
}

// rebuildIndex scans the directory for conversation files.
func (r *FileConversationRepository) rebuildIndex() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to scan conversations directory: %w", err)
	}

	idx := conversationIndex{Conversations: map[string]models.Conversation{}}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == indexFileName || !strings.HasSuffix(name, ".json") {
			continue
		}
		conv, err := r.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			r.logger.Warn("Skipping unreadable conversation file", zap.String("file", name), zap.Error(err))
			continue
		}
		idx.Conversations[conv.ID] = conv.Summary()
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.index = idx
	return r.writeIndexLocked()
}

func (r *FileConversationRepository) writeIndexLocked() error {
	data, err := json.MarshalIndent(r.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(r.dir, indexFileName), data); err != nil {
		return fmt.Errorf("failed to write conversation index: %w", err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func sortByUpdatedDesc(list []models.Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
