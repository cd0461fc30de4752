package users

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
	"github.com/aldoetobex/legal-consult-backend/pkg/validation"
)

// ConsultationLister lists a lawyer's bookings for the profile page.
type ConsultationLister interface {
	ListForLawyer(ctx context.Context, lawyerID uuid.UUID) ([]models.ConsultationView, error)
}

type Handler struct {
	svc           *Service
	consultations ConsultationLister
}

func NewHandler(svc *Service, consultations ConsultationLister) *Handler {
	return &Handler{svc: svc, consultations: consultations}
}

// List Lawyers godoc
// @Summary      List lawyers
// @Description  Every registered lawyer with profile fields
// @Tags         lawyers
// @Produce      json
// @Success      200  {object}  map[string][]models.LawyerView  "lawyers"
// @Failure      500  {object}  models.ErrorResponse
// @Router       /lawyers [get]
func (h *Handler) ListLawyers(c *fiber.Ctx) error {
	list, err := h.svc.ListLawyers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"lawyers": list})
}

// Get Lawyer godoc
// @Summary      Lawyer profile
// @Description  Profile of one lawyer (by identity-provider id) and their consultations, newest first
// @Tags         lawyers
// @Produce      json
// @Param        id   path      string  true  "identity-provider user id"
// @Success      200  {object}  map[string]any  "profile, consultations"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyer/{id} [get]
func (h *Handler) GetLawyer(c *fiber.Ctx) error {
	u, err := h.svc.GetLawyer(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	consultations, err := h.consultations.ListForLawyer(c.UserContext(), u.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profile": u.LawyerView(), "consultations": consultations})
}

// Register Lawyer godoc
// @Summary      Register lawyer profile
// @Description  Creates the lawyer record for an identity-provider user; verification starts as pending
// @Tags         lawyers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "identity-provider user id"
// @Param        payload  body  LawyerInput  true  "Profile"
// @Success      201  {object}  map[string]models.LawyerView  "profile"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /lawyer/{id} [post]
func (h *Handler) RegisterLawyer(c *fiber.Ctx) error {
	var in LawyerInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if !auth.Owns(c, c.Params("id")) {
		return fiber.ErrForbidden
	}
	u, err := h.svc.RegisterLawyer(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"profile": u.LawyerView()})
}

// Client ID godoc
// @Summary      Resolve client id
// @Description  Maps an identity-provider user id to the internal user id
// @Tags         clients
// @Produce      json
// @Param        userId  path  string  true  "identity-provider user id"
// @Success      200  {object}  map[string]string  "clientId"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /client/{userId} [get]
func (h *Handler) ClientID(c *fiber.Ctx) error {
	id, err := h.svc.ClientID(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"clientId": id})
}

// Register Client godoc
// @Summary      Register client
// @Description  Creates the client record for an identity-provider user (idempotent)
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userId   path  string       true  "identity-provider user id"
// @Param        payload  body  ClientInput  true  "Client"
// @Success      200  {object}  map[string]models.User  "client (already registered)"
// @Success      201  {object}  map[string]models.User  "client"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /client/{userId} [post]
func (h *Handler) RegisterClient(c *fiber.Ctx) error {
	var in ClientInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if !auth.Owns(c, c.Params("userId")) {
		return fiber.ErrForbidden
	}
	u, created, err := h.svc.RegisterClient(c.UserContext(), c.Params("userId"), in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"client": u})
}

// Admin Dashboard godoc
// @Summary      Admin dashboard
// @Description  All lawyers and clients
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Dashboard
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/dashboard [get]
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	d, err := h.svc.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(d)
}

type verificationReq struct {
	Status models.VerificationStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

// Set Verification godoc
// @Summary      Review lawyer
// @Description  Admin sets a lawyer's verification status
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string           true  "identity-provider user id"
// @Param        payload  body  verificationReq  true  "pending | approved | rejected"
// @Success      200  {object}  map[string]models.LawyerView  "profile"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/lawyers/{id}/verification [patch]
func (h *Handler) SetVerification(c *fiber.Ctx) error {
	var in verificationReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	u, err := h.svc.SetVerification(c.UserContext(), c.Params("id"), in.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profile": u.LawyerView()})
}
