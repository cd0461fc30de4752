package consultations

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/pkg/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List Consultations godoc
// @Summary      List client consultations
// @Description  Consultations of a client with client and lawyer summaries, newest first
// @Tags         consultations
// @Security     BearerAuth
// @Produce      json
// @Param        userId  query     string  true  "identity-provider user id"
// @Success      200     {object}  map[string][]models.ConsultationView  "consultations"
// @Failure      400     {object}  models.ErrorResponse
// @Failure      403     {object}  models.ErrorResponse
// @Router       /consultations [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "User ID is required")
	}
	if !auth.Owns(c, userID) {
		return fiber.ErrForbidden
	}
	list, err := h.svc.ListForClient(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"consultations": list})
}

// Create Consultation godoc
// @Summary      Book consultation
// @Description  Creates a pending consultation; video bookings get the meeting link
// @Tags         consultations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Booking"
// @Success      201  {object}  map[string]any  "success, consultation"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /consultations [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if !auth.Owns(c, in.ClientExternalID) {
		return fiber.ErrForbidden
	}
	cs, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "consultation": cs})
}

// Confirm Consultation godoc
// @Summary      Confirm consultation
// @Description  Lawyer confirms a booking; status becomes booked
// @Tags         consultations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "consultation id"
// @Success      200  {object}  map[string]any  "success, consultation"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /consultations/{id}/confirm [patch]
func (h *Handler) Confirm(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Consultation not found")
	}
	cs, err := h.svc.Confirm(c.UserContext(), id, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "consultation": cs})
}
