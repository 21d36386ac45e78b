package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Conversation transcript
// ============================================================================

// MessageRole represents the role of a conversation message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// IsValid reports whether r is a role a client may store.
func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

const (
	// DefaultConversationTitle is used until the first user message names the conversation.
	DefaultConversationTitle = "新對話"
	// TitleMaxLength is how many characters of the first user message become the title.
	TitleMaxLength = 30
)

// Message is one turn in a conversation. Messages are append-only.
type Message struct {
	ID             string      `json:"message_id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Conversation is an ordered transcript of messages.
// MessageCount always equals len(Messages) when messages are loaded.
type Conversation struct {
	ID           string    `json:"conversation_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

// NewConversationID returns an identifier of the form conv_<12 hex>.
func NewConversationID() string {
	return "conv_" + shortHex()
}

// NewMessageID returns an identifier of the form msg_<12 hex>.
func NewMessageID() string {
	return "msg_" + shortHex()
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewConversation creates an empty conversation. An empty title falls back to the default.
func NewConversation(title string, now time.Time) *Conversation {
	if strings.TrimSpace(title) == "" {
		title = DefaultConversationTitle
	}
	return &Conversation{
		ID:        NewConversationID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
}

// TitleFromContent derives a conversation title from a user message.
func TitleFromContent(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= TitleMaxLength {
		return string(runes)
	}
	return string(runes[:TitleMaxLength]) + "..."
}

// Touch bumps UpdatedAt without ever moving it backwards.
func (c *Conversation) Touch(now time.Time) {
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// AppendMessage adds m to the transcript, keeps MessageCount in sync, and names
// the conversation after its first user message while it still has the default title.
func (c *Conversation) AppendMessage(m Message, now time.Time) {
	if m.Role == RoleUser && c.Title == DefaultConversationTitle && !c.hasUserMessage() {
		if title := TitleFromContent(m.Content); title != "" {
			c.Title = title
		}
	}
	c.Messages = append(c.Messages, m)
	c.MessageCount = len(c.Messages)
	c.Touch(now)
}

// ClearMessages empties the transcript.
func (c *Conversation) ClearMessages(now time.Time) {
	c.Messages = []Message{}
	c.MessageCount = 0
	c.Touch(now)
}

func (c *Conversation) hasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// Summary returns a copy without the message list, as used by listings.
func (c *Conversation) Summary() Conversation {
	s := *c
	s.Messages = nil
	return s
}
