package ai

import (
	"context"
	"encoding/base64"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
	"github.com/aldoetobex/legal-consult-backend/pkg/sanitize"
)

const (
	noResponse        = "No response generated"
	noDefenseStrategy = "No defense strategy generated."
	saveFailed        = "Failed to save chat history"
	titleLength       = 50
)

// AskInput is a general or contextual question.
type AskInput struct {
	Prompt          string `json:"prompt" validate:"required"`
	ContractText    string `json:"contractText"`
	UserID          string `json:"userId"`
	ChatID          string `json:"chatId"`
	SaveToHistory   *bool  `json:"saveToHistory"`
	FileID          string `json:"fileId"`
	HasUploadedFile bool   `json:"hasUploadedFile"`
}

func (in AskInput) save() bool {
	return in.SaveToHistory == nil || *in.SaveToHistory
}

// AskResult is the answer plus the outcome of saving it.
type AskResult struct {
	Response string `json:"response"`
	ChatID   string `json:"chatId,omitempty"`
	Saved    *bool  `json:"saved,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DefendInput is the JSON form of a defend-case request.
type DefendInput struct {
	CaseSummary string `json:"caseSummary"`
	Evidence    string `json:"evidence"`
	Charges     string `json:"charges"`
	UserID      string `json:"userId"`
}

func (in DefendInput) fields() map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"case_summary": in.CaseSummary,
		"evidence":     in.Evidence,
		"charges":      in.Charges,
		"user_id":      in.UserID,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// DocumentChat is a chat saved together with the analysed document.
type DocumentChat struct {
	UserID   string `form:"userId" validate:"required"`
	Question string `form:"question" validate:"required"`
	FileName string `form:"fileName"`
	FileID   string `form:"fileId"`
}

type Service struct {
	client  *Client
	history History
	logger  log.FieldLogger
}

func NewService(client *Client, history History, logger log.FieldLogger) *Service {
	return &Service{client: client, history: history, logger: logger}
}

// route picks the backend endpoint and form for a question.
func route(in AskInput) (string, map[string]string) {
	switch {
	case in.HasUploadedFile && in.FileID != "":
		return EndpointAskContext, map[string]string{"query": in.Prompt, "file_id": in.FileID}
	case strings.TrimSpace(in.ContractText) != "":
		return EndpointAskExisting, map[string]string{"query": in.Prompt}
	default:
		return EndpointChat, map[string]string{"query": in.Prompt}
	}
}

// Ask forwards a question and, when asked to, records the exchange. A
// failed save never fails the call.
func (s *Service) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	endpoint, fields := route(in)
	s.logger.WithFields(log.Fields{
		"endpoint": endpoint,
		"prompt":   sanitize.Summary(sanitize.RedactPII(in.Prompt), 80),
	}).Debug("ai question")

	reply, err := s.client.PostFields(ctx, endpoint, fields)
	if err != nil {
		return nil, err
	}
	if err := reply.Check("Failed to get AI response"); err != nil {
		return nil, err
	}

	answer := reply.Text("response", "answer", "comparison_analysis")
	if answer == "" {
		answer = noResponse
	}
	answer = sanitize.AIText(answer)

	res := &AskResult{Response: answer}
	if !in.save() || in.UserID == "" {
		return res, nil
	}

	chatID, err := s.record(ctx, in, answer)
	saved := err == nil
	res.Saved = &saved
	if err != nil {
		s.logger.WithError(err).WithField("user", in.UserID).Warn("could not save chat history")
		res.Error = saveFailed
		return res, nil
	}
	res.ChatID = chatID.String()
	return res, nil
}

func (s *Service) record(ctx context.Context, in AskInput, answer string) (uuid.UUID, error) {
	var chatID uuid.UUID
	if in.ChatID != "" {
		id, err := uuid.Parse(in.ChatID)
		if err != nil {
			return uuid.Nil, apperr.Validation("Invalid chat id")
		}
		ch, err := s.history.Chat(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		if ch == nil || ch.UserID != in.UserID {
			return uuid.Nil, apperr.NotFound("Chat not found")
		}
		chatID = id
	} else {
		ch := &models.Chat{
			UserID:   in.UserID,
			Title:    sanitize.Title(in.Prompt, titleLength),
			FileName: in.ContractText,
		}
		if err := s.history.CreateChat(ctx, ch); err != nil {
			return uuid.Nil, err
		}
		chatID = ch.ID
	}
	err := s.history.AddMessages(ctx, chatID,
		&models.Message{Sender: models.ChatSenderUser, Content: in.Prompt},
		&models.Message{Sender: models.ChatSenderAI, Content: answer},
	)
	return chatID, err
}

// DefendCase sends a JSON case description as a form.
func (s *Service) DefendCase(ctx context.Context, in DefendInput) (string, error) {
	reply, err := s.client.PostFields(ctx, EndpointDefendCase, in.fields())
	if err != nil {
		return "", err
	}
	return defense(reply)
}

// DefendCaseForm forwards a multipart case description unchanged.
func (s *Service) DefendCaseForm(ctx context.Context, contentType string, body io.Reader) (string, error) {
	reply, err := s.client.Forward(ctx, EndpointDefendCase, contentType, body)
	if err != nil {
		return "", err
	}
	return defense(reply)
}

func defense(reply *Reply) (string, error) {
	if err := reply.Check("Failed to get defense strategy"); err != nil {
		return "", err
	}
	text := reply.Text("defense_strategy", "response", "answer")
	if text == "" {
		text = noDefenseStrategy
	}
	return sanitize.AIText(text), nil
}

// AskUpload relays a question with its file verbatim.
func (s *Service) AskUpload(ctx context.Context, contentType string, body io.Reader) (*Reply, error) {
	return s.client.Forward(ctx, EndpointAskUpload, contentType, body)
}

// ListChats returns a user's conversations, most recent first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.history.ListChats(ctx, userID)
}

// Chat returns one conversation.
func (s *Service) Chat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	ch, err := s.history.Chat(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, apperr.NotFound("Chat not found")
	}
	return ch, nil
}

// Messages returns a conversation's messages, oldest first.
func (s *Service) Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	return s.history.Messages(ctx, chatID)
}

// SaveWithDocument creates a chat holding the analysed document. data may
// be empty, in which case only the chat is stored.
func (s *Service) SaveWithDocument(ctx context.Context, in DocumentChat, data []byte) (*models.Chat, bool, error) {
	ch := &models.Chat{
		UserID:   in.UserID,
		Title:    sanitize.Title(in.Question, titleLength),
		FileName: in.FileName,
		FileID:   in.FileID,
	}
	if len(data) > 0 {
		ch.HasDocument = true
		ch.DocumentData = base64.StdEncoding.EncodeToString(data)
		ch.DocumentSize = int64(len(data))
		ch.DocumentType = mimetype.Detect(data).String()
	}
	if err := s.history.CreateChat(ctx, ch); err != nil {
		return nil, false, err
	}
	return ch, ch.HasDocument, nil
}
