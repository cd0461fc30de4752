package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusBadGateway:
		return "BAD_GATEWAY"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is the global Fiber error handler. It renders fiber errors and
// classified service errors in one JSON shape and logs server-side failures.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	resp := models.ErrorResponse{Error: "Internal Server Error"}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			resp.Error = fe.Message
		}
	} else if ae, ok := apperr.As(err); ok {
		code = ae.Status()
		resp.Error = ae.Message
		switch ae.Kind {
		case apperr.KindUpload, apperr.KindDownstream:
			if ae.Err != nil {
				resp.Details = ae.Err.Error()
			}
		}
	}
	resp.Code = httpCodeToString(code)

	if code >= fiber.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method":    c.Method(),
			"path":      c.Path(),
			"requestId": c.Locals("requestid"),
		}).Error("request failed")
	}

	return c.Status(code).JSON(resp)
}
