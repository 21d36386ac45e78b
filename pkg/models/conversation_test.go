package models

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIDs(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^conv_[0-9a-f]{12}$`), NewConversationID())
	assert.Regexp(t, regexp.MustCompile(`^msg_[0-9a-f]{12}$`), NewMessageID())
	assert.NotEqual(t, NewConversationID(), NewConversationID())
}

func TestNewConversation_DefaultTitle(t *testing.T) {
	now := time.Now()
	c := NewConversation("  ", now)
	assert.Equal(t, DefaultConversationTitle, c.Title)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, now, c.UpdatedAt)
	assert.Equal(t, 0, c.MessageCount)
}

func TestTitleFromContent(t *testing.T) {
	assert.Equal(t, "顯示所有用戶", TitleFromContent("顯示所有用戶"))
	long := strings.Repeat("查", 31)
	assert.Equal(t, strings.Repeat("查", 30)+"...", TitleFromContent(long))
}

func TestAppendMessage_TitleAndCount(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewConversation("", start)

	c.AppendMessage(Message{Role: RoleAssistant, Content: "hello"}, start.Add(time.Second))
	assert.Equal(t, DefaultConversationTitle, c.Title, "assistant messages never name the conversation")

	c.AppendMessage(Message{Role: RoleUser, Content: "顯示所有用戶"}, start.Add(2*time.Second))
	assert.Equal(t, "顯示所有用戶", c.Title)

	c.AppendMessage(Message{Role: RoleUser, Content: "second question"}, start.Add(3*time.Second))
	assert.Equal(t, "顯示所有用戶", c.Title, "only the first user message names the conversation")

	assert.Equal(t, 3, c.MessageCount)
	assert.Equal(t, len(c.Messages), c.MessageCount)
}

func TestAppendMessage_KeepsCustomTitle(t *testing.T) {
	c := NewConversation("報表", time.Now())
	c.AppendMessage(Message{Role: RoleUser, Content: "顯示所有用戶"}, time.Now())
	assert.Equal(t, "報表", c.Title)
}

func TestTouch_NeverMovesBackwards(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewConversation("", start)

	c.Touch(start.Add(-time.Hour))
	assert.Equal(t, start, c.UpdatedAt)

	c.AppendMessage(Message{Role: RoleUser, Content: "q"}, start.Add(-time.Minute))
	assert.Equal(t, start, c.UpdatedAt)

	c.ClearMessages(start.Add(time.Minute))
	assert.Equal(t, start.Add(time.Minute), c.UpdatedAt)
	assert.Equal(t, 0, c.MessageCount)
	assert.Empty(t, c.Messages)
}

func TestSummary_DropsMessages(t *testing.T) {
	c := NewConversation("", time.Now())
	c.AppendMessage(Message{Role: RoleUser, Content: "q"}, time.Now())
	s := c.Summary()
	assert.Nil(t, s.Messages)
	assert.Equal(t, 1, s.MessageCount)
	assert.Len(t, c.Messages, 1, "original untouched")
}

func TestMessageRole_IsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.False(t, MessageRole("system").IsValid())
}

func TestQueryResult_Constructors(t *testing.T) {
	failed := NewErrorResult("", "boom")
	assert.True(t, failed.Failed())
	assert.Nil(t, failed.SQL)
	assert.Equal(t, "boom", failed.ErrorText())

	ok := NewSuccessResult("SELECT 1", []string{"1"}, nil, "done")
	assert.False(t, ok.Failed())
	assert.NotNil(t, ok.Result)
	assert.Empty(t, ok.Result)
	assert.Equal(t, "SELECT 1", ok.SQLText())
	assert.Equal(t, "done", ok.ExplanationText())
}
