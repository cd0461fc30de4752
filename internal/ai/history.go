package ai

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// History persists general AI conversations.
type History interface {
	CreateChat(ctx context.Context, ch *models.Chat) error
	// AddMessages appends msgs to chatID and touches the chat; an unknown
	// chat is a not-found error.
	AddMessages(ctx context.Context, chatID uuid.UUID, msgs ...*models.Message) error
	// Chat returns one conversation without its document, or nil.
	Chat(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
}

type gormHistory struct {
	db database.Acquirer
}

// NewHistory returns the Postgres-backed history.
func NewHistory(db database.Acquirer) History {
	return &gormHistory{db: db}
}

func (h *gormHistory) CreateChat(ctx context.Context, ch *models.Chat) error {
	db, err := h.db.Acquire(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(db.WithContext(ctx).Create(ch).Error, "create chat")
}

func (h *gormHistory) AddMessages(ctx context.Context, chatID uuid.UUID, msgs ...*models.Message) error {
	db, err := h.db.Acquire(ctx)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Chat{}).Where("id = ?", chatID).UpdateColumn("updated_at", time.Now())
		if res.Error != nil {
			return errors.Wrap(res.Error, "touch chat")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Chat not found")
		}
		for _, m := range msgs {
			m.ChatID = chatID
			if err := tx.Create(m).Error; err != nil {
				return errors.Wrap(err, "create message")
			}
		}
		return nil
	})
}

func (h *gormHistory) Chat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	db, err := h.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var ch models.Chat
	err = db.WithContext(ctx).Omit("document_data").First(&ch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load chat")
	}
	return &ch, nil
}

func (h *gormHistory) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	db, err := h.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Chat{}
	err = db.WithContext(ctx).
		Omit("document_data").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, errors.Wrap(err, "list chats")
}

func (h *gormHistory) Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	db, err := h.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Message{}
	err = db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC").Find(&out).Error
	return out, errors.Wrap(err, "list messages")
}
