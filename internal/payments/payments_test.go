package payments

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/internal/events"
	"github.com/aldoetobex/legal-consult-backend/internal/testutil"
	"github.com/aldoetobex/legal-consult-backend/pkg/config"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

/* ===== helpers ===== */

type recorder struct{ events []events.ConsultationEvent }

func (r *recorder) Publish(_ context.Context, ev events.ConsultationEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func devConfig() *config.Config {
	return &config.Config{Env: "dev", PaymentProvider: "mock", DevPaymentSecret: "s3cret"}
}

func newApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Post("/api/consultations/:id/checkout", h.CreateCheckout)
	app.Post("/api/payments/mock/complete", h.MockComplete)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func seed(t *testing.T, db *gorm.DB) models.Consultation {
	t.Helper()
	client := models.User{ExternalID: "u1", Name: "Cli", Email: "c@example.com", Role: models.RoleClient}
	lawyer := models.User{
		ExternalID: "u2", Name: "Law", Email: "l@example.com", Role: models.RoleLawyer,
		Lawyer: &models.LawyerProfile{Specialization: "Tax", BarID: "BAR-1", FeePerHour: 150},
	}
	require.NoError(t, db.Create(&client).Error)
	require.NoError(t, db.Create(&lawyer).Error)
	cs := models.Consultation{ClientID: client.ID, LawyerID: lawyer.ID, Mode: models.ModeChat, Status: models.ConsultationPending}
	require.NoError(t, db.Omit("Client", "Lawyer").Create(&cs).Error)
	return cs
}

/* ===== guards (no database) ===== */

func TestCheckoutRequiresMockProvider(t *testing.T) {
	cfg := devConfig()
	cfg.PaymentProvider = "stripe"
	app := newApp(NewHandler(nil, cfg, nil, testutil.QuietLogger()))

	status, _ := post(t, app, "/api/consultations/"+uuid.NewString()+"/checkout", `{"userId":"u1"}`, nil)
	assert.Equal(t, fiber.StatusNotImplemented, status)
}

func TestMockCompleteGuards(t *testing.T) {
	prod := devConfig()
	prod.Env = "production"
	status, _ := post(t, newApp(NewHandler(nil, prod, nil, testutil.QuietLogger())), "/api/payments/mock/complete", `{}`, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	app := newApp(NewHandler(nil, devConfig(), nil, testutil.QuietLogger()))
	status, _ = post(t, app, "/api/payments/mock/complete", `{"paymentId":"`+uuid.NewString()+`"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = post(t, app, "/api/payments/mock/complete", `{"paymentId":"`+uuid.NewString()+`"}`,
		map[string]string{HeaderDevSecret: "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := post(t, app, "/api/payments/mock/complete", `{"paymentId":"nope"}`,
		map[string]string{HeaderDevSecret: "s3cret"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "paymentId")
}

/* ===== flow (real Postgres) ===== */

func TestCheckoutAndComplete(t *testing.T) {
	db := testutil.OpenTestDB(t)
	cs := seed(t, db)
	rec := &recorder{}
	app := newApp(NewHandler(database.Static{DB: db}, devConfig(), rec, testutil.QuietLogger()))
	path := "/api/consultations/" + cs.ID.String() + "/checkout"

	status, _ := post(t, app, path, `{"userId":"u2"}`, nil)
	assert.Equal(t, fiber.StatusForbidden, status, "only the booking client pays")

	status, body := post(t, app, path, `{"userId":"u1"}`, nil)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "mock", body["provider"])
	pid := body["paymentId"].(string)

	// second checkout returns the same payment
	status, body = post(t, app, path, `{"userId":"u1"}`, nil)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, pid, body["paymentId"])

	var pay models.Payment
	require.NoError(t, db.First(&pay, "id = ?", pid).Error)
	assert.Equal(t, 15000, pay.AmountCents)
	assert.Equal(t, models.PayInitiated, pay.Status)

	var linked models.Consultation
	require.NoError(t, db.First(&linked, "id = ?", cs.ID).Error)
	require.NotNil(t, linked.PaymentID)
	assert.Equal(t, pid, linked.PaymentID.String())

	secret := map[string]string{HeaderDevSecret: "s3cret"}
	status, _ = post(t, app, "/api/payments/mock/complete", `{"paymentId":"`+pid+`"}`, secret)
	require.Equal(t, fiber.StatusOK, status)
	status, body = post(t, app, "/api/payments/mock/complete", `{"paymentId":"`+pid+`"}`, secret)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "already paid (idempotent)", body["message"])

	require.NoError(t, db.First(&pay, "id = ?", pid).Error)
	assert.Equal(t, models.PayPaid, pay.Status)
	require.NoError(t, db.First(&linked, "id = ?", cs.ID).Error)
	assert.Equal(t, models.ConsultationPending, linked.Status, "payment leaves the booking status alone")

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.PaymentCompleted, rec.events[0].Type)

	status, _ = post(t, app, "/api/payments/mock/complete", `{"paymentId":"`+uuid.NewString()+`"}`, secret)
	assert.Equal(t, fiber.StatusNotFound, status)
}
