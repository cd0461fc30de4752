package consultations

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
	"github.com/aldoetobex/legal-consult-backend/pkg/utils"
)

// Store persists consultations. Get returns nil (no error) when absent.
type Store interface {
	Create(ctx context.Context, cs *models.Consultation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
	ListForClient(ctx context.Context, clientID uuid.UUID) ([]models.ConsultationView, error)
	ListForLawyer(ctx context.Context, lawyerID uuid.UUID) ([]models.ConsultationView, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConsultationStatus) error
	LogHistory(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, action string, oldS, newS models.ConsultationStatus, reason string)
}

type gormStore struct {
	db database.Acquirer
}

// NewStore returns the Postgres-backed store.
func NewStore(db database.Acquirer) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, cs *models.Consultation) error {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Omit("Client", "Lawyer").Create(cs).Error; err != nil {
		return errors.Wrap(err, "create consultation")
	}
	return nil
}

func (s *gormStore) Get(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var cs models.Consultation
	err = db.WithContext(ctx).First(&cs, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load consultation")
	}
	return &cs, nil
}

func (s *gormStore) list(ctx context.Context, column string, id uuid.UUID) ([]models.ConsultationView, error) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.Consultation
	err = db.WithContext(ctx).
		Preload("Client").
		Preload("Lawyer.Lawyer").
		Where(column+" = ?", id).
		Order("date_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list consultations")
	}
	return views(rows), nil
}

func (s *gormStore) ListForClient(ctx context.Context, clientID uuid.UUID) ([]models.ConsultationView, error) {
	return s.list(ctx, "client_id", clientID)
}

func (s *gormStore) ListForLawyer(ctx context.Context, lawyerID uuid.UUID) ([]models.ConsultationView, error) {
	return s.list(ctx, "lawyer_id", lawyerID)
}

func (s *gormStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConsultationStatus) error {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).Model(&models.Consultation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update consultation status")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Consultation not found")
	}
	return nil
}

func (s *gormStore) LogHistory(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, action string, oldS, newS models.ConsultationStatus, reason string) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return
	}
	utils.LogConsultationHistory(ctx, db, id, actorID, action, oldS, newS, reason)
}

// views attaches party summaries to loaded consultations.
func views(rows []models.Consultation) []models.ConsultationView {
	out := make([]models.ConsultationView, 0, len(rows))
	for i := range rows {
		v := models.ConsultationView{
			Consultation: rows[i],
			Client:       rows[i].Client.Summary(),
			Lawyer:       rows[i].Lawyer.LawyerSummary(),
		}
		out = append(out, v)
	}
	return out
}
