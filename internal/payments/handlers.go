package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/internal/events"
	"github.com/aldoetobex/legal-consult-backend/pkg/config"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
	"github.com/aldoetobex/legal-consult-backend/pkg/validation"
)

const HeaderDevSecret = "X-Dev-Secret"

type Handler struct {
	db        database.Acquirer
	cfg       *config.Config
	publisher events.Publisher
	logger    log.FieldLogger
}

func NewHandler(db database.Acquirer, cfg *config.Config, publisher events.Publisher, logger log.FieldLogger) *Handler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{db: db, cfg: cfg, publisher: publisher, logger: logger}
}

type checkoutReq struct {
	UserID string `json:"userId" validate:"required"`
}

// CheckoutResponse is returned by the mock checkout.
type CheckoutResponse struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	RedirectURL string    `json:"redirectUrl"`
	Provider    string    `json:"provider"`
}

// ========== Create Checkout (client) ==========

// Create Checkout godoc
// @Summary      Start checkout
// @Description  Creates (or returns) the initiated payment for a consultation; amount is the lawyer's hourly fee
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "consultation id"
// @Param        payload  body  checkoutReq  true  "userId"
// @Success      201  {object}  CheckoutResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      501  {object}  models.ErrorResponse
// @Router       /consultations/{id}/checkout [post]
func (h *Handler) CreateCheckout(c *fiber.Ctx) error {
	if h.cfg.PaymentProvider != "mock" {
		return fiber.NewError(fiber.StatusNotImplemented, "Payment provider not wired yet")
	}
	csID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Consultation not found")
	}
	var in checkoutReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	if !auth.Owns(c, in.UserID) {
		return fiber.ErrForbidden
	}

	db, err := h.db.Acquire(c.UserContext())
	if err != nil {
		return err
	}
	db = db.WithContext(c.UserContext())

	var cs models.Consultation
	if err := db.Preload("Client").Preload("Lawyer.Lawyer").First(&cs, "id = ?", csID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Consultation not found")
		}
		return fiber.ErrInternalServerError
	}
	// only the booking client pays
	if cs.Client == nil || cs.Client.ExternalID != in.UserID {
		return fiber.ErrForbidden
	}
	if cs.Status == models.ConsultationCancelled {
		return fiber.NewError(fiber.StatusConflict, "consultation is cancelled")
	}
	amount := 0
	if cs.Lawyer != nil && cs.Lawyer.Lawyer != nil {
		amount = cs.Lawyer.Lawyer.FeePerHour * 100
	}

	// Idempotent by the unique consultation id
	pay := models.Payment{
		ConsultationID: cs.ID,
		ClientID:       cs.ClientID,
		ProviderRef:    "mock_" + uuid.NewString(),
		AmountCents:    amount,
		Status:         models.PayInitiated,
	}
	if err := db.Create(&pay).Error; err != nil {
		var existing models.Payment
		if e := db.First(&existing, "consultation_id = ?", cs.ID).Error; e != nil {
			return fiber.ErrInternalServerError
		}
		pay = existing
	}
	if err := db.Model(&models.Consultation{}).Where("id = ?", cs.ID).Update("payment_id", pay.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	// The frontend redirects here and then calls /payments/mock/complete
	return c.Status(fiber.StatusCreated).JSON(CheckoutResponse{
		PaymentID:   pay.ID,
		RedirectURL: "mock://checkout?payment_id=" + pay.ID.String(),
		Provider:    "mock",
	})
}

// ========== Mock Complete (dev only) ==========

type mockCompleteReq struct {
	PaymentID string `json:"paymentId" validate:"required,uuid"`
}

// Mock Complete godoc
// @Summary      Complete mock payment
// @Description  Dev-only: marks a payment paid. Requires X-Dev-Secret. Consultation status is left alone.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Dev-Secret  header  string           true  "dev secret"
// @Param        payload       body    mockCompleteReq  true  "paymentId"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/mock/complete [post]
func (h *Handler) MockComplete(c *fiber.Ctx) error {
	if !h.cfg.MockPayments() {
		return fiber.ErrNotFound
	}
	if secret := c.Get(HeaderDevSecret); secret == "" || secret != h.cfg.DevPaymentSecret {
		return fiber.NewError(http.StatusUnauthorized, "missing/invalid X-Dev-Secret")
	}
	var in mockCompleteReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if ok, err := validation.Check(c, in); !ok {
		return err
	}
	pid := uuid.MustParse(in.PaymentID)

	db, err := h.db.Acquire(c.UserContext())
	if err != nil {
		return err
	}

	// Atomic: single winner
	tx := db.WithContext(c.UserContext()).Begin()

	var pay models.Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pay, "id = ?", pid).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if pay.Status == models.PayPaid {
		tx.Rollback()
		return c.JSON(fiber.Map{"ok": true, "message": "already paid (idempotent)"})
	}

	var cs models.Consultation
	if err := tx.First(&cs, "id = ?", pay.ConsultationID).Error; err != nil {
		tx.Rollback()
		return fiber.ErrInternalServerError
	}

	if err := tx.Model(&models.Payment{}).Where("id = ?", pay.ID).
		Update("status", models.PayPaid).Error; err != nil {
		tx.Rollback()
		return fiber.ErrInternalServerError
	}
	if err := tx.Commit().Error; err != nil {
		return fiber.ErrInternalServerError
	}

	ev := events.ConsultationEvent{
		Type:           events.PaymentCompleted,
		ConsultationID: cs.ID,
		ClientID:       cs.ClientID,
		LawyerID:       cs.LawyerID,
		DateTime:       cs.DateTime,
		Mode:           string(cs.Mode),
		Status:         string(cs.Status),
	}
	events.PublishBestEffort(c.UserContext(), h.publisher, h.logger, ev)
	h.logger.WithFields(log.Fields{"payment": pay.ID, "consultation": cs.ID}).Info("mock payment completed")
	return c.JSON(fiber.Map{"ok": true})
}
