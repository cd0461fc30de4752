package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("Invalid client or lawyer"), http.StatusBadRequest},
		{NotFound("Consultation not found"), http.StatusNotFound},
		{Conflict("email taken"), http.StatusConflict},
		{Forbidden("nope"), http.StatusForbidden},
		{Upload(errors.New("s3 down")), http.StatusInternalServerError},
		{Downstream("AI backend failed", nil), http.StatusInternalServerError},
		{Internal("db", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e, ok := As(tt.err)
		if assert.True(t, ok) {
			assert.Equal(t, tt.want, e.Status(), tt.err.Error())
		}
	}
}

func TestAsThroughWrapping(t *testing.T) {
	err := errors.WithMessage(NotFound("Chat not found"), "load thread")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindValidation))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "Failed to upload file: s3 down", Upload(errors.New("s3 down")).Error())
	assert.Equal(t, "Consultation not found", NotFound("Consultation not found").Error())
}
