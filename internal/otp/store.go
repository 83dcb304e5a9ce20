package otp

import (
	"context"
	"time"

	"verification-service/internal/models"
)

// Store persists at most one entry per (recipient, purpose) key. Save
// unconditionally replaces whatever entry the key held before: issuing a
// new code supersedes the old one.
//
// Consume and Remove take the entry ID so a caller holding a stale entry
// cannot consume or delete a superseding one.
type Store interface {
	// Save stores the entry, replacing any prior entry for the key.
	Save(ctx context.Context, entry *models.OTPEntry, ttl time.Duration) error

	// Get returns the entry for the key, or nil if none is stored.
	Get(ctx context.Context, recipient string, purpose Purpose) (*models.OTPEntry, error)

	// Consume marks the identified entry consumed. It reports false when
	// the entry is gone, already consumed, or superseded — exactly one of
	// any number of concurrent calls for the same entry sees true.
	Consume(ctx context.Context, recipient string, purpose Purpose, entryID string) (bool, error)

	// Remove deletes the identified entry if it is still the one stored.
	Remove(ctx context.Context, recipient string, purpose Purpose, entryID string) error
}
