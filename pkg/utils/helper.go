package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// LogConsultationHistory inserts an audit record into consultation_histories.
// Best-effort: a failure is logged, never returned.
func LogConsultationHistory(
	ctx context.Context,
	db *gorm.DB,
	consultationID uuid.UUID,
	actorID *uuid.UUID,
	action string,
	oldS, newS models.ConsultationStatus,
	reason string,
) {
	err := db.WithContext(ctx).Create(&models.ConsultationHistory{
		ConsultationID: consultationID,
		ActorID:        actorID,
		Action:         action,
		OldStatus:      oldS,
		NewStatus:      newS,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}).Error
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"consultation": consultationID,
			"action":       action,
		}).Warn("could not record consultation history")
	}
}
