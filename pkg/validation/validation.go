package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

var (
	v *validator.Validate

	// Bar id: 3 to 40 chars, alphanumerics plus space, dash, slash.
	reBarID = regexp.MustCompile(`^[A-Za-z0-9 /-]{3,40}$`)
	// 24h clock, e.g. 09:30
	reClock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("barid", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let omitempty handle empty
			return true
		}
		return reBarID.MatchString(val)
	})

	_ = v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		switch models.ConsultationMode(fl.Field().String()) {
		case "", models.ModeChat, models.ModeCall, models.ModeVideo:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("senderrole", func(fl validator.FieldLevel) bool {
		switch models.SenderRole(fl.Field().String()) {
		case models.SenderClient, models.SenderLawyer, models.SenderSystem:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return reClock.MatchString(fl.Field().String())
	})
}

// Validate returns map[field][]messages (Laravel-like)
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := e.Field() // already mapped from json tag

			switch e.Tag() {
			case "required":
				out[field] = append(out[field], "This field is required")

			case "email":
				out[field] = append(out[field], "Invalid email format")

			case "min", "gte":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max", "lte":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "url":
				out[field] = append(out[field], "Invalid URL")

			case "barid":
				out[field] = append(out[field], "Invalid bar id format")

			case "mode":
				out[field] = append(out[field], "Mode must be one of chat, call, video")

			case "senderrole":
				out[field] = append(out[field], "Sender role must be one of client, lawyer, system")

			case "clock":
				out[field] = append(out[field], "Use HH:MM (24h)")

			default:
				// Fallback to original error text if we missed a tag
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}
