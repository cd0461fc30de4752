package consultations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/internal/events"
	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// UserDirectory resolves identity-provider ids. Finders return nil when absent.
type UserDirectory interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindLawyerByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// CreateInput is a booking request.
type CreateInput struct {
	ClientExternalID string                  `json:"userId" validate:"required"`
	LawyerExternalID string                  `json:"lawyerUserId" validate:"required"`
	DateTime         string                  `json:"dateTime" validate:"required"`
	Mode             models.ConsultationMode `json:"mode" validate:"mode"`
}

// accepted dateTime layouts; the short ones come from <input type="datetime-local">
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseDateTime parses a booking timestamp. Zone-less values are UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation("Invalid dateTime")
}

type Service struct {
	store       Store
	users       UserDirectory
	publisher   events.Publisher
	meetingLink string
	logger      log.FieldLogger
}

func NewService(store Store, users UserDirectory, publisher events.Publisher, meetingLink string, logger log.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, users: users, publisher: publisher, meetingLink: meetingLink, logger: logger}
}

// Create books a pending consultation between a client and a lawyer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Consultation, error) {
	client, err := s.users.FindByExternalID(ctx, in.ClientExternalID)
	if err != nil {
		return nil, err
	}
	lawyer, err := s.users.FindLawyerByExternalID(ctx, in.LawyerExternalID)
	if err != nil {
		return nil, err
	}
	if client == nil || lawyer == nil {
		return nil, apperr.Validation("Invalid client or lawyer")
	}

	at, err := ParseDateTime(in.DateTime)
	if err != nil {
		return nil, err
	}
	mode := in.Mode
	if mode == "" {
		mode = models.ModeChat
	}

	cs := &models.Consultation{
		ClientID: client.ID,
		LawyerID: lawyer.ID,
		DateTime: at,
		Mode:     mode,
		Status:   models.ConsultationPending,
	}
	if mode == models.ModeVideo {
		link := s.meetingLink
		cs.MeetingLink = &link
	}
	if err := s.store.Create(ctx, cs); err != nil {
		return nil, err
	}

	metrics.ConsultationsCreated.WithLabelValues(string(mode)).Inc()
	s.store.LogHistory(ctx, cs.ID, &client.ID, "created", "", cs.Status, "")
	events.PublishBestEffort(ctx, s.publisher, s.logger, eventOf(events.ConsultationCreated, cs))
	s.logger.WithFields(log.Fields{
		"consultation": cs.ID,
		"client":       client.ID,
		"lawyer":       lawyer.ID,
		"mode":         mode,
	}).Info("consultation created")
	return cs, nil
}

// ListForClient returns a client's consultations, newest first. Users with
// no internal record yet have none.
func (s *Service) ListForClient(ctx context.Context, externalID string) ([]models.ConsultationView, error) {
	u, err := s.users.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return []models.ConsultationView{}, nil
	}
	return s.store.ListForClient(ctx, u.ID)
}

// ListForLawyer returns a lawyer's consultations, newest first.
func (s *Service) ListForLawyer(ctx context.Context, lawyerID uuid.UUID) ([]models.ConsultationView, error) {
	return s.store.ListForLawyer(ctx, lawyerID)
}

// Get loads one consultation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	cs, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		return nil, apperr.NotFound("Consultation not found")
	}
	return cs, nil
}

// Confirm marks a consultation booked. Any prior status is accepted.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actorExternalID string) (*models.Consultation, error) {
	cs, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := cs.Status
	if err := s.store.UpdateStatus(ctx, id, models.ConsultationBooked); err != nil {
		return nil, err
	}
	cs.Status = models.ConsultationBooked

	var actor *uuid.UUID
	if actorExternalID != "" {
		if u, err := s.users.FindByExternalID(ctx, actorExternalID); err == nil && u != nil {
			actor = &u.ID
		}
	}
	s.store.LogHistory(ctx, id, actor, "confirmed", old, cs.Status, "")
	events.PublishBestEffort(ctx, s.publisher, s.logger, eventOf(events.ConsultationConfirmed, cs))
	s.logger.WithFields(log.Fields{"consultation": id, "from": old}).Info("consultation confirmed")
	return cs, nil
}

func eventOf(typ string, cs *models.Consultation) events.ConsultationEvent {
	ev := events.ConsultationEvent{
		Type:           typ,
		ConsultationID: cs.ID,
		ClientID:       cs.ClientID,
		LawyerID:       cs.LawyerID,
		DateTime:       cs.DateTime,
		Mode:           string(cs.Mode),
		Status:         string(cs.Status),
	}
	if cs.MeetingLink != nil {
		ev.MeetingLink = *cs.MeetingLink
	}
	return ev
}
