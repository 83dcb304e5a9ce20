package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"verification-service/internal/bucketing"
	"verification-service/internal/models"
)

// Recorder accepts security-relevant events. Implementations must never
// be handed passcode values; callers pass only identifiers and outcomes.
type Recorder interface {
	Emit(ctx context.Context, eventType, recipient, purpose string, details map[string]string)
}

// Sink persists a batch of audit events to one backend.
type Sink interface {
	Write(ctx context.Context, events []*models.AuditEvent) error
	Name() string
}

func newEvent(bm *bucketing.BucketingManager, eventType, recipient, purpose string, details map[string]string) *models.AuditEvent {
	now := time.Now().UTC()
	return &models.AuditEvent{
		EventBucket: bm.GetEventBucket(recipient),
		EventID:     uuid.New().String(),
		EventDate:   now.Format("2006-01-02"),
		EventTime:   now,
		EventType:   eventType,
		Recipient:   recipient,
		Purpose:     purpose,
		Details:     details,
	}
}
