package ai

import (
	"bytes"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Ask godoc
// @Summary      Ask the AI
// @Description  Routes to the context, existing-database or general endpoint and optionally saves the exchange
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        payload  body  AskInput  true  "Question"
// @Success      200  {object}  AskResult
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /ai [post]
func (h *Handler) Ask(c *fiber.Ctx) error {
	var in AskInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if in.UserID != "" && !auth.Owns(c, in.UserID) {
		return fiber.ErrForbidden
	}
	res, err := h.svc.Ask(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Ask Upload godoc
// @Summary      Ask about an uploaded file
// @Description  Relays the multipart body (query, file) to the AI backend unchanged
// @Tags         ai
// @Accept       multipart/form-data
// @Produce      json
// @Param        query  formData  string  true  "question"
// @Param        file   formData  file    true  "document"
// @Success      200  {object}  map[string]any
// @Failure      500  {object}  models.ErrorResponse
// @Router       /ai/ask-upload [post]
func (h *Handler) AskUpload(c *fiber.Ctx) error {
	reply, err := h.svc.AskUpload(c.UserContext(), c.Get(fiber.HeaderContentType), bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(reply.Status).Send(reply.Body)
}

// Defend Case godoc
// @Summary      Draft a defense strategy
// @Description  Accepts JSON (caseSummary, evidence, charges, userId) or a multipart form and returns formatted text
// @Tags         ai
// @Accept       json,mpfd
// @Produce      json
// @Param        payload  body  DefendInput  false  "Case"
// @Success      200  {object}  map[string]any  "success, response"
// @Failure      500  {object}  map[string]any  "success=false, error"
// @Router       /ai/defend-case [post]
func (h *Handler) DefendCase(c *fiber.Ctx) error {
	var (
		text string
		err  error
	)
	ct := c.Get(fiber.HeaderContentType)
	if strings.Contains(ct, fiber.MIMEApplicationJSON) {
		var in DefendInput
		if perr := c.BodyParser(&in); perr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "invalid json"})
		}
		text, err = h.svc.DefendCase(c.UserContext(), in)
	} else {
		text, err = h.svc.DefendCaseForm(c.UserContext(), ct, bytes.NewReader(c.Body()))
	}
	if err != nil {
		msg := "Internal server error"
		if ae, ok := apperr.As(err); ok {
			msg = ae.Message
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": msg})
	}
	return c.JSON(fiber.Map{"success": true, "response": text})
}

// List Chats godoc
// @Summary      List AI chats
// @Description  A user's AI conversations, most recent first
// @Tags         ai
// @Produce      json
// @Param        userId  query     string  true  "identity-provider user id"
// @Success      200     {object}  map[string][]models.Chat  "chats"
// @Failure      400     {object}  models.ErrorResponse
// @Router       /chats [get]
func (h *Handler) ListChats(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "User ID is required")
	}
	if !auth.Owns(c, userID) {
		return fiber.ErrForbidden
	}
	chats, err := h.svc.ListChats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// List Messages godoc
// @Summary      List AI chat messages
// @Description  Messages of one AI conversation, oldest first
// @Tags         ai
// @Produce      json
// @Param        chatId  query     string  true  "chat id"
// @Success      200     {object}  map[string][]models.Message  "messages"
// @Failure      400     {object}  models.ErrorResponse
// @Failure      403     {object}  models.ErrorResponse
// @Failure      404     {object}  models.ErrorResponse
// @Router       /messages [get]
func (h *Handler) ListMessages(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Query("chatId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Chat ID is required")
	}
	ch, err := h.svc.Chat(c.UserContext(), chatID)
	if err != nil {
		return err
	}
	if !auth.Owns(c, ch.UserID) {
		return fiber.ErrForbidden
	}
	msgs, err := h.svc.Messages(c.UserContext(), chatID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// Save With Document godoc
// @Summary      Save AI chat with document
// @Description  Creates an AI chat that embeds the analysed document
// @Tags         ai
// @Accept       multipart/form-data
// @Produce      json
// @Param        userId    formData  string  true   "identity-provider user id"
// @Param        question  formData  string  true   "question"
// @Param        fileName  formData  string  false  "file name"
// @Param        fileId    formData  string  false  "AI backend file id"
// @Param        document  formData  file    false  "document"
// @Success      201  {object}  map[string]any  "chat, documentStored"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /chats/save-with-document [post]
func (h *Handler) SaveWithDocument(c *fiber.Ctx) error {
	var in DocumentChat
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if !auth.Owns(c, in.UserID) {
		return fiber.ErrForbidden
	}

	var data []byte
	if fh, err := c.FormFile("document"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cannot read file")
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cannot read file")
		}
		if in.FileName == "" {
			in.FileName = fh.Filename
		}
	}

	ch, stored, err := h.svc.SaveWithDocument(c.UserContext(), in, data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chat": ch, "documentStored": stored})
}
