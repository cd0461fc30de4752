package chat

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
	"github.com/aldoetobex/legal-consult-backend/pkg/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func consultationID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid consultation id")
	}
	return id, nil
}

// actsAs fails with 403 unless the caller is the user behind idOrExternal.
// Unknown users pass through so the service can reject them.
func (h *Handler) actsAs(c *fiber.Ctx, idOrExternal string) error {
	if auth.Privileged(c) {
		return nil
	}
	u, err := h.svc.ResolveUser(c.UserContext(), strings.TrimSpace(idOrExternal))
	if err != nil {
		return err
	}
	ext := idOrExternal
	if u != nil {
		ext = u.ExternalID
	}
	if !auth.Owns(c, ext) {
		return fiber.ErrForbidden
	}
	return nil
}

// partyOnly fails with 403 unless the caller is the consultation's client or
// lawyer. A client or lawyer role narrows the check to that party.
func (h *Handler) partyOnly(c *fiber.Ctx, id uuid.UUID, role models.SenderRole) error {
	if auth.Privileged(c) {
		return nil
	}
	p, err := h.svc.Parties(c.UserContext(), id)
	if err != nil {
		return err
	}
	if role != models.SenderLawyer && p.Client != nil && auth.Owns(c, p.Client.ExternalID) {
		return nil
	}
	if role != models.SenderClient && p.Lawyer != nil && auth.Owns(c, p.Lawyer.ExternalID) {
		return nil
	}
	return fiber.ErrForbidden
}

// List Threads godoc
// @Summary      List chat threads
// @Description  Threads where the user is the client or the lawyer, most recently updated first
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Param        userId  query     string  true  "internal or identity-provider user id"
// @Success      200     {object}  map[string][]models.ChatConsultancy  "chats"
// @Failure      400     {object}  models.ErrorResponse
// @Failure      403     {object}  models.ErrorResponse
// @Router       /consultations/chat [get]
func (h *Handler) ListThreads(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "User ID is required")
	}
	if err := h.actsAs(c, userID); err != nil {
		return err
	}
	list, err := h.svc.ListThreads(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chats": list})
}

type openReq struct {
	ConsultationID string `json:"consultationId" validate:"required,uuid"`
}

// Open Thread godoc
// @Summary      Find or create thread
// @Description  Returns the consultation's chat thread, creating it on first use
// @Tags         chat
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  openReq  true  "consultationId"
// @Success      200  {object}  map[string]models.ChatConsultancy  "chat"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /consultations/chat [post]
func (h *Handler) Open(c *fiber.Ctx) error {
	var in openReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	id := uuid.MustParse(in.ConsultationID)
	if err := h.partyOnly(c, id, ""); err != nil {
		return err
	}
	th, err := h.svc.FindOrCreate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chat": th})
}

// Get Thread godoc
// @Summary      Get thread
// @Description  Chat, messages (oldest first, with sender) and referenced documents; chat is null when no thread exists yet
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "consultation id"
// @Success      200  {object}  Thread
// @Router       /consultations/chat/{id} [get]
func (h *Handler) GetThread(c *fiber.Ctx) error {
	id, err := consultationID(c, "id")
	if err != nil {
		return err
	}
	if err := h.partyOnly(c, id, ""); err != nil {
		return err
	}
	th, err := h.svc.GetThread(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(th)
}

// Post Message godoc
// @Summary      Post message
// @Description  Appends a message, creating the thread if needed; bumps the other party's unread count
// @Tags         chat
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string     true  "consultation id"
// @Param        payload  body  PostInput  true  "Message"
// @Success      200  {object}  map[string]models.MessageView  "message"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /consultations/chat/{id} [post]
func (h *Handler) PostMessage(c *fiber.Ctx) error {
	id, err := consultationID(c, "id")
	if err != nil {
		return err
	}
	var in PostInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if err := h.actsAs(c, in.SenderID); err != nil {
		return err
	}
	msg, err := h.svc.PostText(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": msg})
}

type uploadForm struct {
	SenderID   string            `form:"senderId" validate:"required"`
	SenderRole models.SenderRole `form:"senderRole" validate:"required,senderrole"`
}

// Upload Document godoc
// @Summary      Upload document
// @Description  Relays a file to storage and posts a document message; the thread must exist
// @Tags         chat
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id          path      string  true  "consultation id"
// @Param        senderId    formData  string  true  "sender id"
// @Param        senderRole  formData  string  true  "client | lawyer | system"
// @Param        file        formData  file    true  "document"
// @Success      200  {object}  DocumentPosted
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /consultations/chat/{id}/document [post]
func (h *Handler) UploadDocument(c *fiber.Ctx) error {
	id, err := consultationID(c, "id")
	if err != nil {
		return err
	}
	var in uploadForm
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if err := h.actsAs(c, in.SenderID); err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read file")
	}
	defer f.Close()

	out, err := h.svc.PostDocument(c.UserContext(), id, in.SenderID, in.SenderRole, fh.Filename, f)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Get Documents godoc
// @Summary      Get documents
// @Description  One document when documentId is given, otherwise all documents of the consultation, newest first
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Param        id          path   string  true   "consultation id"
// @Param        documentId  query  string  false  "document id"
// @Success      200  {object}  map[string]any  "document | documents"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /consultations/chat/{id}/document [get]
func (h *Handler) GetDocuments(c *fiber.Ctx) error {
	id, err := consultationID(c, "id")
	if err != nil {
		return err
	}
	if err := h.partyOnly(c, id, ""); err != nil {
		return err
	}
	if raw := c.Query("documentId"); raw != "" {
		docID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Document not found")
		}
		doc, err := h.svc.GetDocument(c.UserContext(), docID)
		if err != nil {
			return err
		}
		if doc.ConsultationID != id {
			return fiber.NewError(fiber.StatusNotFound, "Document not found")
		}
		return c.JSON(fiber.Map{"document": doc})
	}
	docs, err := h.svc.ListDocuments(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"documents": docs})
}

type readReq struct {
	Role models.SenderRole `json:"role" validate:"required,oneof=client lawyer"`
}

// Mark Read godoc
// @Summary      Mark thread read
// @Description  Clears the role's unread counter and marks every message read for that role
// @Tags         chat
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string   true  "consultation id"
// @Param        payload  body  readReq  true  "role"
// @Success      200  {object}  map[string]bool  "success"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /consultations/chat/{id}/read [patch]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	id, err := consultationID(c, "id")
	if err != nil {
		return err
	}
	var in readReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if err := h.partyOnly(c, id, in.Role); err != nil {
		return err
	}
	if err := h.svc.MarkRead(c.UserContext(), id, in.Role); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
