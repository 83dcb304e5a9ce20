package models

import "time"

// Audit event types emitted by the service. Event details never include
// passcode values.
const (
	EventOTPIssued            = "otp.issued"
	EventOTPRateLimited       = "otp.rate_limited"
	EventOTPDeliveryFailed    = "otp.delivery_failed"
	EventContactSubmitted     = "contact.submitted"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationUpdated   = "application.status_changed"
)

// AuditEvent is a security-relevant event routed to the audit sinks
// (log, Kafka stream, ClickHouse analytics table).
type AuditEvent struct {
	EventBucket int               `json:"event_bucket" db:"event_bucket"`
	EventID     string            `json:"event_id" db:"event_id"`
	EventDate   string            `json:"event_date" db:"event_date"`
	EventTime   time.Time         `json:"event_time" db:"event_time"`
	EventType   string            `json:"event_type" db:"event_type"`
	Recipient   string            `json:"recipient" db:"recipient"`
	Purpose     string            `json:"purpose" db:"purpose"`
	Details     map[string]string `json:"details,omitempty" db:"details"`
}
