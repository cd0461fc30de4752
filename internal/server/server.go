// Package server assembles the HTTP application.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberSwagger "github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/internal/ai"
	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/internal/chat"
	"github.com/aldoetobex/legal-consult-backend/internal/consultations"
	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
	"github.com/aldoetobex/legal-consult-backend/internal/payments"
	"github.com/aldoetobex/legal-consult-backend/internal/users"
	"github.com/aldoetobex/legal-consult-backend/pkg/config"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
)

// Handlers groups the route handlers mounted under /api.
type Handlers struct {
	Users         *users.Handler
	Consultations *consultations.Handler
	Chat          *chat.Handler
	AI            *ai.Handler
	Payments      *payments.Handler
}

// Deps is everything New needs.
type Deps struct {
	Config   *config.Config
	DB       database.Acquirer
	Verifier *auth.Verifier
	Handlers Handlers
	// UploadsDir, when set, is served at /uploads (local storage provider).
	UploadsDir string
	Logger     log.FieldLogger
}

// New builds the fiber app with middleware and every route.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "legal-consult-backend",
		BodyLimit:    d.Config.MaxUploadBytes,
		ErrorHandler: auth.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(RequestLogger(d.Logger))
	app.Use(metrics.Middleware())

	app.Get("/health", Health(d.DB))
	app.Get("/metrics", metrics.Handler())
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)
	if d.UploadsDir != "" {
		app.Static("/uploads", d.UploadsDir)
	}

	Mount(app.Group("/api"), d.Verifier, d.Config, d.Handlers)
	return app
}

// Mount registers the API routes on r.
func Mount(r fiber.Router, v *auth.Verifier, cfg *config.Config, h Handlers) {
	// Public directory
	r.Get("/lawyers", h.Users.ListLawyers)
	r.Get("/lawyer/:id", h.Users.GetLawyer)

	// Dev-only, guarded by X-Dev-Secret instead of a session
	if cfg.MockPayments() {
		r.Post("/payments/mock/complete", h.Payments.MockComplete)
	}

	api := r.Group("", v.RequireAuth())

	// Users
	api.Post("/lawyer/:id", h.Users.RegisterLawyer)
	api.Get("/client/:userId", h.Users.ClientID)
	api.Post("/client/:userId", h.Users.RegisterClient)

	admin := api.Group("/admin", auth.RequireRole("admin"))
	admin.Get("/dashboard", h.Users.Dashboard)
	admin.Patch("/lawyers/:id/verification", h.Users.SetVerification)

	// Consultation chat (registered before /consultations/:id routes)
	ch := api.Group("/consultations/chat")
	ch.Get("/", h.Chat.ListThreads)
	ch.Post("/", h.Chat.Open)
	ch.Get("/:id", h.Chat.GetThread)
	ch.Post("/:id", h.Chat.PostMessage)
	ch.Post("/:id/document", h.Chat.UploadDocument)
	ch.Get("/:id/document", h.Chat.GetDocuments)
	ch.Patch("/:id/read", h.Chat.MarkRead)

	// Consultations
	api.Get("/consultations", h.Consultations.List)
	api.Post("/consultations", h.Consultations.Create)
	api.Patch("/consultations/:id/confirm", auth.RequireRole("lawyer", "admin"), h.Consultations.Confirm)
	api.Post("/consultations/:id/checkout", h.Payments.CreateCheckout)

	// AI
	api.Post("/ai", h.AI.Ask)
	api.Post("/ai/ask-upload", h.AI.AskUpload)
	api.Post("/ai/defend-case", h.AI.DefendCase)
	api.Get("/chats", h.AI.ListChats)
	api.Post("/chats/save-with-document", h.AI.SaveWithDocument)
	api.Get("/messages", h.AI.ListMessages)
}

// RequestLogger logs one line per request.
func RequestLogger(logger log.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = metrics.StatusOf(err)
		}
		entry := logger.WithFields(log.Fields{
			"method":    c.Method(),
			"path":      c.Path(),
			"status":    status,
			"latency":   time.Since(start).String(),
			"requestid": c.GetRespHeader(fiber.HeaderXRequestID),
		})
		if status >= fiber.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request")
		}
		return err
	}
}

// Health reports whether the database answers.
func Health(db database.Acquirer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if err := ping(ctx, db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func ping(ctx context.Context, db database.Acquirer) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
