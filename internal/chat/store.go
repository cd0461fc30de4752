package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// Store persists consultation threads, their messages and documents.
// Single-row finders return nil (no error) when nothing matches.
type Store interface {
	FindThread(ctx context.Context, consultationID uuid.UUID) (*models.ChatConsultancy, error)
	// CreateThread inserts th, or returns the thread a concurrent caller
	// created first for the same consultation.
	CreateThread(ctx context.Context, th *models.ChatConsultancy) (*models.ChatConsultancy, error)
	ListThreads(ctx context.Context, userID uuid.UUID) ([]models.ChatConsultancy, error)
	Messages(ctx context.Context, chatID uuid.UUID) ([]models.MessageView, error)
	// AppendMessage stores msg and bumps the thread's snapshot and the other
	// party's unread counter in one transaction.
	AppendMessage(ctx context.Context, msg *models.ConsultationMessage) error
	MarkRead(ctx context.Context, chatID uuid.UUID, role models.SenderRole) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	DocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error)
	ListDocuments(ctx context.Context, consultationID uuid.UUID) ([]models.Document, error)
}

// unreadColumn is the counter a message from role increments.
func unreadColumn(role models.SenderRole) string {
	switch role {
	case models.SenderClient:
		return "unread_for_lawyer"
	case models.SenderLawyer:
		return "unread_for_client"
	}
	return ""
}

/* ================================ gorm ================================== */

type gormStore struct {
	db database.Acquirer
}

// NewStore returns the Postgres-backed store.
func NewStore(db database.Acquirer) Store {
	return &gormStore{db: db}
}

func (s *gormStore) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

func (s *gormStore) FindThread(ctx context.Context, consultationID uuid.UUID) (*models.ChatConsultancy, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var th models.ChatConsultancy
	err = db.First(&th, "consultation_id = ?", consultationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load thread")
	}
	return &th, nil
}

func (s *gormStore) CreateThread(ctx context.Context, th *models.ChatConsultancy) (*models.ChatConsultancy, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "consultation_id"}},
		DoNothing: true,
	}).Create(th)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create thread")
	}
	if res.RowsAffected == 0 {
		existing, err := s.FindThread(ctx, th.ConsultationID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("thread vanished after conflict")
		}
		return existing, nil
	}
	return th, nil
}

func (s *gormStore) ListThreads(ctx context.Context, userID uuid.UUID) ([]models.ChatConsultancy, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.ChatConsultancy{}
	err = db.Where("client_id = ? OR lawyer_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list threads")
	}
	return out, nil
}

func (s *gormStore) Messages(ctx context.Context, chatID uuid.UUID) ([]models.MessageView, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.ConsultationMessage
	err = db.Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	out := make([]models.MessageView, 0, len(rows))
	for i := range rows {
		out = append(out, models.MessageView{ConsultationMessage: rows[i], Sender: rows[i].Sender.Summary()})
	}
	return out, nil
}

func (s *gormStore) AppendMessage(ctx context.Context, msg *models.ConsultationMessage) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return errors.Wrap(err, "create message")
		}
		updates := map[string]any{
			"last_message": msg.Content,
			"updated_at":   time.Now(),
		}
		if col := unreadColumn(msg.SenderRole); col != "" {
			updates[col] = gorm.Expr(col + " + 1")
		}
		res := tx.Model(&models.ChatConsultancy{}).Where("id = ?", msg.ChatID).Updates(updates)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update thread")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Chat not found")
		}
		return nil
	})
}

func (s *gormStore) MarkRead(ctx context.Context, chatID uuid.UUID, role models.SenderRole) error {
	var counter, flag string
	switch role {
	case models.SenderClient:
		counter, flag = "unread_for_client", "read_by_client"
	case models.SenderLawyer:
		counter, flag = "unread_for_lawyer", "read_by_lawyer"
	default:
		return apperr.Validation("Role must be client or lawyer")
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChatConsultancy{}).Where("id = ?", chatID).UpdateColumn(counter, 0)
		if res.Error != nil {
			return errors.Wrap(res.Error, "reset unread")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Chat not found")
		}
		err := tx.Model(&models.ConsultationMessage{}).
			Where("chat_id = ? AND "+flag+" = ?", chatID, false).
			UpdateColumn(flag, true).Error
		return errors.Wrap(err, "mark messages read")
	})
}

func (s *gormStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(db.Create(doc).Error, "create document")
}

func (s *gormStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(db.Delete(&models.Document{}, "id = ?", id).Error, "delete document")
}

func (s *gormStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	err = db.First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load document")
	}
	return &doc, nil
}

func (s *gormStore) DocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	out := []models.Document{}
	if len(ids) == 0 {
		return out, nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.Where("id IN ?", ids).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "load documents")
	}
	return out, nil
}

func (s *gormStore) ListDocuments(ctx context.Context, consultationID uuid.UUID) ([]models.Document, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Document{}
	err = db.Where("consultation_id = ?", consultationID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	return out, nil
}
