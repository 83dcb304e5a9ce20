package models

import "time"

// OTPEntry is the stored form of an issued one-time passcode. The code
// itself is never persisted; only an argon2id hash of it is, alongside the
// salt and pepper version needed to re-derive the hash at verification time.
//
// At most one active entry exists per (recipient, purpose) key; a new
// issuance overwrites the previous entry.
type OTPEntry struct {
	ID            string    `json:"id"`
	Recipient     string    `json:"recipient"`
	Purpose       string    `json:"purpose"`
	CodeHash      string    `json:"code_hash"`
	CodeSalt      string    `json:"code_salt"`
	HashAlgorithm string    `json:"hash_algorithm"`
	PepperVersion int       `json:"pepper_version"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Consumed      bool      `json:"consumed"`
}
