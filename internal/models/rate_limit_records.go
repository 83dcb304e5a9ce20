package models

import "time"

// RateLimitRecord tracks request attempts for one identity key
// (normalized recipient + purpose) inside the current window.
type RateLimitRecord struct {
	Key             string    `json:"key"`
	Attempts        int       `json:"attempts"`
	WindowStartedAt time.Time `json:"window_started_at"`
	LastAttemptAt   time.Time `json:"last_attempt_at"`
}
