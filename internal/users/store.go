package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// Store reads and writes users. Finders return nil (no error) when no row matches.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindLawyerByExternalID(ctx context.Context, externalID string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	SetVerification(ctx context.Context, userID uuid.UUID, status models.VerificationStatus) error
}

// Resolve looks a user up by internal uuid, falling back to the external id.
func Resolve(ctx context.Context, s Store, idOrExternal string) (*models.User, error) {
	if id, err := uuid.Parse(idOrExternal); err == nil {
		u, err := s.FindByID(ctx, id)
		if err != nil || u != nil {
			return u, err
		}
	}
	return s.FindByExternalID(ctx, idOrExternal)
}

/* ================================ gorm ================================== */

type gormStore struct {
	db database.Acquirer
}

// NewStore returns the Postgres-backed store.
func NewStore(db database.Acquirer) Store {
	return &gormStore{db: db}
}

func (s *gormStore) first(ctx context.Context, q func(*gorm.DB) *gorm.DB) (*models.User, error) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var u models.User
	err = q(db.WithContext(ctx).Preload("Lawyer")).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	return &u, nil
}

func (s *gormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) })
}

func (s *gormStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("external_id = ?", externalID) })
}

func (s *gormStore) FindLawyerByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("external_id = ? AND role = ?", externalID, models.RoleLawyer)
	})
}

func (s *gormStore) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.User{}
	q := db.WithContext(ctx).Where("role = ?", role).Order("created_at DESC")
	if role == models.RoleLawyer {
		q = q.Preload("Lawyer")
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return out, nil
}

// Create inserts u together with its lawyer profile, if any.
func (s *gormStore) Create(ctx context.Context, u *models.User) error {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("A user with this email or id already exists")
		}
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (s *gormStore) SetVerification(ctx context.Context, userID uuid.UUID, status models.VerificationStatus) error {
	db, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).Model(&models.LawyerProfile{}).
		Where("user_id = ?", userID).
		Update("verification_status", status)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update verification")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Lawyer not found")
	}
	return nil
}

// isUniqueViolation matches Postgres SQLSTATE 23505 without importing pgconn.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
