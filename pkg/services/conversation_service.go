package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/repositories"
)

// DefaultPageSize applies when a listing omits its limit.
const DefaultPageSize = 100

// ConversationService manages conversation transcripts.
type ConversationService interface {
	Create(ctx context.Context, title string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, limit, offset int) ([]models.Conversation, error)
	UpdateTitle(ctx context.Context, id, title string) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
	AddMessage(ctx context.Context, id string, role models.MessageRole, content string) (*models.Message, error)
	Messages(ctx context.Context, id string, limit, offset int) ([]models.Message, error)
	ClearMessages(ctx context.Context, id string) error
}

type conversationService struct {
	repo   repositories.ConversationRepository
	logger *zap.Logger
}

// NewConversationService creates a conversation service.
func NewConversationService(repo repositories.ConversationRepository, logger *zap.Logger) ConversationService {
	return &conversationService{
		repo:   repo,
		logger: logger.Named("conversations"),
	}
}

var _ ConversationService = (*conversationService)(nil)

func (s *conversationService) Create(ctx context.Context, title string) (*models.Conversation, error) {
	conv, err := s.repo.Create(ctx, strings.TrimSpace(title))
	if err != nil {
		s.logger.Error("Failed to create conversation", zap.Error(err))
		return nil, err
	}
	s.logger.Info("Created conversation", zap.String("conversation_id", conv.ID))
	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.repo.Get(ctx, id)
}

func (s *conversationService) List(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	limit, offset = normalizePage(limit, offset)
	convs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

func (s *conversationService) UpdateTitle(ctx context.Context, id, title string) (*models.Conversation, error) {
	return s.repo.UpdateTitle(ctx, id, strings.TrimSpace(title))
}

func (s *conversationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted conversation", zap.String("conversation_id", id))
	return nil
}

func (s *conversationService) AddMessage(ctx context.Context, id string, role models.MessageRole, content string) (*models.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: role must be user or assistant", apperrors.ErrInvalidInput)
	}
	return s.repo.AddMessage(ctx, id, role, content)
}

func (s *conversationService) Messages(ctx context.Context, id string, limit, offset int) ([]models.Message, error) {
	limit, offset = normalizePage(limit, offset)
	msgs, err := s.repo.Messages(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *conversationService) ClearMessages(ctx context.Context, id string) error {
	return s.repo.ClearMessages(ctx, id)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
