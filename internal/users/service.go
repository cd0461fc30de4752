package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/cache"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

const (
	lawyersCacheKey = "lawyers"
	lawyersCacheTTL = time.Minute
)

// LawyerInput is the profile a lawyer submits on registration.
type LawyerInput struct {
	Name           string                      `json:"name" validate:"required,max=120"`
	Email          string                      `json:"email" validate:"required,email"`
	Phone          string                      `json:"phone" validate:"max=40"`
	Specialization string                      `json:"specialization" validate:"required,max=120"`
	BarID          string                      `json:"barId" validate:"required,barid"`
	Experience     int                         `json:"experience" validate:"gte=0,lte=80"`
	ConnectionLink string                      `json:"connection_link" validate:"omitempty,url"`
	FeePerHour     int                         `json:"feePerHour" validate:"gte=0"`
	Availability   []models.AvailabilityWindow `json:"availabilitySchedule" validate:"dive"`
}

// ClientInput registers a client.
type ClientInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"max=40"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Lawyers []models.LawyerView `json:"lawyers"`
	Clients []models.User       `json:"clients"`
}

// Service implements the lawyer directory and user registration.
type Service struct {
	store  Store
	cache  cache.Cache
	logger log.FieldLogger
}

// NewService wires the service. c may be nil.
func NewService(store Store, c cache.Cache, logger log.FieldLogger) *Service {
	return &Service{store: store, cache: c, logger: logger}
}

// Store exposes the underlying store for resolution by other services.
func (s *Service) Store() Store { return s.store }

// ListLawyers returns every lawyer, cached briefly.
func (s *Service) ListLawyers(ctx context.Context) ([]models.LawyerView, error) {
	return cache.GetOrGenerate(s.cache, lawyersCacheKey, lawyersCacheTTL, func() ([]models.LawyerView, error) {
		list, err := s.store.ListByRole(ctx, models.RoleLawyer)
		if err != nil {
			return nil, err
		}
		out := make([]models.LawyerView, 0, len(list))
		for i := range list {
			out = append(out, list[i].LawyerView())
		}
		return out, nil
	})
}

// GetLawyer returns the lawyer with the given external id.
func (s *Service) GetLawyer(ctx context.Context, externalID string) (*models.User, error) {
	u, err := s.store.FindLawyerByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("Lawyer not found")
	}
	return u, nil
}

// RegisterLawyer creates a lawyer user with a pending profile.
func (s *Service) RegisterLawyer(ctx context.Context, externalID string, in LawyerInput) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperr.Validation("Lawyer ID is required")
	}
	avail := in.Availability
	if avail == nil {
		avail = []models.AvailabilityWindow{}
	}
	u := &models.User{
		ExternalID: externalID,
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      strings.TrimSpace(in.Phone),
		Role:       models.RoleLawyer,
		Lawyer: &models.LawyerProfile{
			Specialization:     strings.TrimSpace(in.Specialization),
			BarID:              strings.TrimSpace(in.BarID),
			ExperienceYears:    in.Experience,
			FeePerHour:         in.FeePerHour,
			Availability:       datatypes.NewJSONSlice(avail),
			MeetingLink:        strings.TrimSpace(in.ConnectionLink),
			VerificationStatus: models.VerificationPending,
		},
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	cache.Invalidate(s.cache, lawyersCacheKey)
	s.logger.WithFields(log.Fields{"user": u.ID, "externalId": externalID}).Info("lawyer registered")
	return u, nil
}

// RegisterClient creates the client record for externalID, or returns the
// existing one.
func (s *Service) RegisterClient(ctx context.Context, externalID string, in ClientInput) (*models.User, bool, error) {
	if u, err := s.store.FindByExternalID(ctx, externalID); err != nil || u != nil {
		return u, false, err
	}
	u := &models.User{
		ExternalID: externalID,
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      strings.TrimSpace(in.Phone),
		Role:       models.RoleClient,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// ClientID maps an external id to the internal user id.
func (s *Service) ClientID(ctx context.Context, externalID string) (uuid.UUID, error) {
	u, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return uuid.Nil, err
	}
	if u == nil {
		return uuid.Nil, apperr.NotFound("User not found")
	}
	return u.ID, nil
}

// Dashboard lists all lawyers and clients.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	lawyers, err := s.store.ListByRole(ctx, models.RoleLawyer)
	if err != nil {
		return nil, err
	}
	clients, err := s.store.ListByRole(ctx, models.RoleClient)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Lawyers: make([]models.LawyerView, 0, len(lawyers)), Clients: clients}
	for i := range lawyers {
		d.Lawyers = append(d.Lawyers, lawyers[i].LawyerView())
	}
	return d, nil
}

// SetVerification records an admin decision on a lawyer profile.
func (s *Service) SetVerification(ctx context.Context, externalID string, status models.VerificationStatus) (*models.User, error) {
	u, err := s.GetLawyer(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetVerification(ctx, u.ID, status); err != nil {
		return nil, err
	}
	u.Lawyer.VerificationStatus = status
	cache.Invalidate(s.cache, lawyersCacheKey)
	s.logger.WithFields(log.Fields{"user": u.ID, "status": status}).Info("lawyer verification updated")
	return u, nil
}
