// Conversation store - persists conversations and messages per user.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantfolio/quantfolio/pkg/models"
	"github.com/quantfolio/quantfolio/pkg/utils"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoMessages           = errors.New("no messages provided")
)

// ChatStoreService owns conversation and message persistence. Every lookup is
// scoped by user ID, so one user can never read or delete another's data.
type ChatStoreService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewChatStoreService creates a new chat store service.
func NewChatStoreService(db *gorm.DB) *ChatStoreService {
	return &ChatStoreService{
		db:     db,
		logger: utils.GetLogger(),
	}
}

// AutoMigrate creates database tables
func (s *ChatStoreService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Conversation{}, &models.Message{})
}

// ========== Conversation Management ==========

// CreateConversation creates a new conversation for a user.
func (s *ChatStoreService) CreateConversation(userID, title string) (*models.Conversation, error) {
	if title == "" {
		title = models.DefaultConversationTitle
	}
	conv := &models.Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
	}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation owned by the user. A conversation
// that exists but belongs to someone else is reported as not found.
func (s *ChatStoreService) GetConversation(id, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.First(&conv, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations lists the user's conversations, most recently updated
// first, each with its message count.
func (s *ChatStoreService) ListConversations(userID string) ([]models.ConversationSummary, error) {
	var conversations []models.Conversation
	if err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		var count int64
		if err := s.db.Model(&models.Message{}).
			Where("conversation_id = ?", conv.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ConversationSummary{Conversation: conv, MessageCount: count})
	}
	return summaries, nil
}

// DeleteConversation deletes a conversation and its messages. Deleting a
// conversation that does not exist, or that the user does not own, is a no-op.
func (s *ChatStoreService) DeleteConversation(id, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, "id = ?", id).Error
	})
}

// TouchConversation bumps the conversation's updated_at so listings sort it
// first.
func (s *ChatStoreService) TouchConversation(id string) error {
	return s.db.Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).
		Error
}

// ========== Message Management ==========

// AppendMessage appends a message to a conversation.
func (s *ChatStoreService) AppendMessage(msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	return s.db.Create(msg).Error
}

// GetMessages retrieves all messages for a conversation in chronological
// order.
func (s *ChatStoreService) GetMessages(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
