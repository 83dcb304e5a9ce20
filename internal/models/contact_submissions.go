package models

import "time"

// ContactSubmission is a website contact-form entry. The submitter's email
// is stored encrypted (envelope encryption via the KMS-backed manager) with
// a deterministic hash kept alongside for lookup and search correlation.
type ContactSubmission struct {
	SubmissionDate string     `db:"submission_date"`
	ID             string     `db:"id"`
	Name           string     `db:"name"`
	Company        string     `db:"company"`
	EmailHash      string     `db:"email_hash"`
	EmailEncrypted []byte     `db:"email_encrypted"`
	EmailKeyID     string     `db:"email_key_id"`
	Message        string     `db:"message"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	RespondedAt    *time.Time `db:"responded_at"`
}

// Contact submission statuses.
const (
	SubmissionStatusNew       = "new"
	SubmissionStatusResponded = "responded"
)
