package chat

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
	"github.com/aldoetobex/legal-consult-backend/internal/storage"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// ConsultationLookup loads a consultation or fails with a not-found error.
type ConsultationLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
}

// UserLookup resolves message senders. Finders return nil when absent.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// Uploader moves a file to remote storage.
type Uploader interface {
	Relay(ctx context.Context, folder, filename string, src io.Reader) (*storage.Stored, error)
	Delete(ctx context.Context, storageID string)
}

// Thread is a consultation chat with its history.
type Thread struct {
	Chat      *models.ChatConsultancy `json:"chat"`
	Messages  []models.MessageView    `json:"messages"`
	Documents []models.Document       `json:"documents"`
}

// PostInput is a message posted to a thread.
type PostInput struct {
	SenderID    string             `json:"senderId" validate:"required"`
	SenderRole  models.SenderRole  `json:"senderRole" validate:"required,senderrole"`
	Content     string             `json:"content" validate:"max=10000"`
	ContentType models.ContentType `json:"contentType" validate:"omitempty,oneof=text document"`
	DocumentID  *uuid.UUID         `json:"documentId"`
}

// Parties are the two users of a consultation. Either may be nil when the
// user row is gone.
type Parties struct {
	Client *models.User
	Lawyer *models.User
}

// DocumentPosted is the result of a document upload.
type DocumentPosted struct {
	Message  models.MessageView `json:"message"`
	Document *models.Document   `json:"document"`
}

type Service struct {
	store         Store
	consultations ConsultationLookup
	users         UserLookup
	uploader      Uploader
	logger        log.FieldLogger
}

func NewService(store Store, consultations ConsultationLookup, users UserLookup, uploader Uploader, logger log.FieldLogger) *Service {
	return &Service{store: store, consultations: consultations, users: users, uploader: uploader, logger: logger}
}

// GetThread returns the thread of a consultation. A consultation with no
// thread yet yields a nil chat and empty lists.
func (s *Service) GetThread(ctx context.Context, consultationID uuid.UUID) (*Thread, error) {
	out := &Thread{Messages: []models.MessageView{}, Documents: []models.Document{}}
	th, err := s.store.FindThread(ctx, consultationID)
	if err != nil || th == nil {
		return out, err
	}
	out.Chat = th
	if out.Messages, err = s.store.Messages(ctx, th.ID); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, m := range out.Messages {
		if m.DocumentID != nil {
			ids = append(ids, *m.DocumentID)
		}
	}
	if out.Documents, err = s.store.DocumentsByIDs(ctx, ids); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOrCreate returns the consultation's thread, creating it on first use.
func (s *Service) FindOrCreate(ctx context.Context, consultationID uuid.UUID) (*models.ChatConsultancy, error) {
	th, err := s.store.FindThread(ctx, consultationID)
	if err != nil || th != nil {
		return th, err
	}
	cs, err := s.consultations.Get(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	return s.store.CreateThread(ctx, &models.ChatConsultancy{
		ConsultationID: cs.ID,
		ClientID:       cs.ClientID,
		LawyerID:       cs.LawyerID,
		Title:          "Consultation " + cs.ID.String(),
	})
}

// Parties loads the client and lawyer of a consultation.
func (s *Service) Parties(ctx context.Context, consultationID uuid.UUID) (*Parties, error) {
	cs, err := s.consultations.Get(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	out := &Parties{}
	if out.Client, err = s.users.FindByID(ctx, cs.ClientID); err != nil {
		return nil, err
	}
	if out.Lawyer, err = s.users.FindByID(ctx, cs.LawyerID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListThreads returns the threads a user takes part in, most recent first.
func (s *Service) ListThreads(ctx context.Context, userID string) ([]models.ChatConsultancy, error) {
	u, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return []models.ChatConsultancy{}, nil
	}
	return s.store.ListThreads(ctx, u.ID)
}

// PostText appends a message to the consultation's thread, creating the
// thread if needed. The sender must be the consultation's client or lawyer,
// and a document message must reference one of the consultation's documents.
func (s *Service) PostText(ctx context.Context, consultationID uuid.UUID, in PostInput) (*models.MessageView, error) {
	contentType := in.ContentType
	if contentType == "" {
		contentType = models.ContentText
	}
	content := strings.TrimSpace(in.Content)
	switch contentType {
	case models.ContentDocument:
		if in.DocumentID == nil {
			return nil, apperr.Validation("documentId is required for document messages")
		}
		if content == "" {
			content = "(file)"
		}
	default:
		if content == "" {
			return nil, apperr.Validation("Content is required")
		}
	}

	th, err := s.FindOrCreate(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	sender, err := s.sender(ctx, th, in.SenderID, in.SenderRole)
	if err != nil {
		return nil, err
	}
	if contentType == models.ContentDocument {
		doc, err := s.store.GetDocument(ctx, *in.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc == nil || doc.ConsultationID != consultationID {
			return nil, apperr.Validation("Invalid documentId")
		}
	}

	msg := newMessage(th.ID, sender.ID, in.SenderRole, content, contentType, in.DocumentID)
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.ChatMessages.WithLabelValues(string(contentType), string(in.SenderRole)).Inc()
	return &models.MessageView{ConsultationMessage: *msg, Sender: sender.Summary()}, nil
}

// PostDocument uploads a file into an existing thread and posts a document
// message referencing it.
func (s *Service) PostDocument(ctx context.Context, consultationID uuid.UUID, senderID string, role models.SenderRole, filename string, src io.Reader) (*DocumentPosted, error) {
	th, err := s.store.FindThread(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return nil, apperr.NotFound("Chat not found")
	}
	sender, err := s.sender(ctx, th, senderID, role)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploader.Relay(ctx, "consultations/"+consultationID.String(), filename, src)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ConsultationID: consultationID,
		UploadedBy:     sender.ID,
		FileName:       filename,
		FilePath:       stored.URL,
		StorageID:      stored.StorageID,
		FileType:       stored.FileType,
		FileSize:       stored.Size,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		s.uploader.Delete(ctx, stored.StorageID)
		return nil, err
	}

	msg := newMessage(th.ID, sender.ID, role, filename, models.ContentDocument, &doc.ID)
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if derr := s.store.DeleteDocument(ctx, doc.ID); derr != nil {
			s.logger.WithError(derr).WithField("document", doc.ID).Error("could not remove document without message")
		}
		s.uploader.Delete(ctx, stored.StorageID)
		return nil, err
	}
	metrics.ChatMessages.WithLabelValues(string(models.ContentDocument), string(role)).Inc()
	s.logger.WithFields(log.Fields{
		"consultation": consultationID,
		"document":     doc.ID,
		"size":         doc.FileSize,
	}).Info("document uploaded")

	return &DocumentPosted{
		Message:  models.MessageView{ConsultationMessage: *msg, Sender: sender.Summary()},
		Document: doc,
	}, nil
}

// GetDocument returns one document.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("Document not found")
	}
	return doc, nil
}

// ListDocuments returns a consultation's documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, consultationID uuid.UUID) ([]models.Document, error) {
	return s.store.ListDocuments(ctx, consultationID)
}

// MarkRead clears role's unread counter on the consultation's thread.
func (s *Service) MarkRead(ctx context.Context, consultationID uuid.UUID, role models.SenderRole) error {
	th, err := s.store.FindThread(ctx, consultationID)
	if err != nil {
		return err
	}
	if th == nil {
		return apperr.NotFound("Chat not found")
	}
	return s.store.MarkRead(ctx, th.ID, role)
}

// ResolveUser looks a user up by internal or identity-provider id. It
// returns nil when neither matches.
func (s *Service) ResolveUser(ctx context.Context, idOrExternal string) (*models.User, error) {
	if id, err := uuid.Parse(idOrExternal); err == nil {
		u, err := s.users.FindByID(ctx, id)
		if err != nil || u != nil {
			return u, err
		}
	}
	return s.users.FindByExternalID(ctx, idOrExternal)
}

// sender resolves id to one of the thread's parties. The claimed role must
// match that party; system messages may come from either.
func (s *Service) sender(ctx context.Context, th *models.ChatConsultancy, id string, claimed models.SenderRole) (*models.User, error) {
	u, err := s.ResolveUser(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Validation("Invalid sender")
	}
	var party models.SenderRole
	switch u.ID {
	case th.ClientID:
		party = models.SenderClient
	case th.LawyerID:
		party = models.SenderLawyer
	default:
		return nil, apperr.Forbidden("Sender is not part of this consultation")
	}
	if claimed != party && claimed != models.SenderSystem {
		return nil, apperr.Forbidden("Sender role does not match the sender")
	}
	return u, nil
}

// newMessage builds a message the sender has already read.
func newMessage(chatID, senderID uuid.UUID, role models.SenderRole, content string, ct models.ContentType, docID *uuid.UUID) *models.ConsultationMessage {
	return &models.ConsultationMessage{
		ChatID:       chatID,
		SenderID:     senderID,
		SenderRole:   role,
		Content:      content,
		ContentType:  ct,
		DocumentID:   docID,
		ReadByClient: role == models.SenderClient,
		ReadByLawyer: role == models.SenderLawyer,
	}
}
