// Package testutil holds helpers shared by store integration tests.
package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// OpenTestDB opens TEST_DATABASE_URL, migrates every model and truncates all
// tables after the test. Tests are skipped when the variable is unset.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Truncate AFTER each test (data survives within a single test).
	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	payments,
	messages,
	chats,
	documents,
	consultation_messages,
	chat_consultancies,
	consultation_histories,
	consultations,
	lawyer_profiles,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})
	return db
}

// QuietLogger discards output.
func QuietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// InjectAuth puts the auth locals into the Fiber context so handlers see an
// authenticated caller without a real token.
func InjectAuth(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(auth.LocalUserID, userID)
		c.Locals(auth.LocalRole, role)
		return c.Next()
	}
}
