package repositories

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// ConversationRepository provides data access for conversation transcripts.
// Writes to one conversation are serialized; different conversations
// proceed in parallel. Missing conversations yield apperrors.ErrNotFound.
type ConversationRepository interface {
	Create(ctx context.Context, title string) (*models.Conversation, error)
	// Get returns the conversation with all of its messages.
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// List returns summaries without messages, most recently updated first.
	List(ctx context.Context, limit, offset int) ([]models.Conversation, error)
	// UpdateTitle renames the conversation. An empty title only bumps updated_at.
	UpdateTitle(ctx context.Context, id, title string) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
	AddMessage(ctx context.Context, id string, role models.MessageRole, content string) (*models.Message, error)
	Messages(ctx context.Context, id string, limit, offset int) ([]models.Message, error)
	ClearMessages(ctx context.Context, id string) error
}

// conversationIDPattern guards file names built from IDs.
var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// page applies offset/limit to n items. A non-positive limit means no limit.
func page(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

func utcNow(now func() time.Time) time.Time {
	return now().UTC()
}
