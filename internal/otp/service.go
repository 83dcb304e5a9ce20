package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"verification-service/internal/config"
	"verification-service/internal/hashing"
	"verification-service/internal/models"
	"verification-service/internal/util"
)

// Reason classifies why a verification failed. The HTTP boundary collapses
// all of these into one opaque user-facing message; the distinction exists
// for server-side logging and tests.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonExpired     Reason = "expired"
	ReasonAlreadyUsed Reason = "already_used"
	ReasonMismatch    Reason = "mismatch"
)

// Result is the outcome of a verification attempt. Reason is empty when
// Valid is true.
type Result struct {
	Valid  bool
	Reason Reason
}

// Service generates and verifies one-time passcodes. Codes are hashed
// before storage; verification re-derives the hash and compares in
// constant time via the hasher.
type Service struct {
	store      Store
	hasher     *hashing.Hasher
	ttl        time.Duration
	codeLength int
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, hasher *hashing.Hasher, cfg config.OTPConfig, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		hasher:     hasher,
		ttl:        cfg.TTL,
		codeLength: cfg.CodeLength,
		logger:     logger,
		now:        time.Now,
	}
}

// Generate issues a fresh code for the (recipient, purpose) key,
// superseding any prior entry. The clear-text code is returned to the
// caller for out-of-band delivery and exists nowhere else.
func (s *Service) Generate(ctx context.Context, recipient string, purpose Purpose) (string, time.Time, error) {
	code, err := GenerateCode(s.codeLength)
	if err != nil {
		return "", time.Time{}, err
	}

	hashed, err := s.hasher.HashOTP(code)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.now()
	entry := &models.OTPEntry{
		ID:            uuid.New().String(),
		Recipient:     recipient,
		Purpose:       string(purpose),
		CodeHash:      hashed.Hash,
		CodeSalt:      hashed.Salt,
		HashAlgorithm: hashed.Algorithm,
		PepperVersion: hashed.PepperVersion,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Consumed:      false,
	}

	if err := s.store.Save(ctx, entry, s.ttl); err != nil {
		return "", time.Time{}, err
	}

	return code, entry.ExpiresAt, nil
}

// Verify checks a submitted code against the active entry for the key.
// A mismatch does not consume the entry; a match consumes it exactly once.
func (s *Service) Verify(ctx context.Context, recipient string, purpose Purpose, submitted string) (Result, error) {
	entry, err := s.store.Get(ctx, recipient, purpose)
	if err != nil {
		return Result{}, err
	}
	if entry == nil {
		return Result{Reason: ReasonNotFound}, nil
	}

	if s.now().After(entry.ExpiresAt) {
		// Treat an expired entry as spent: discard it so the same code
		// cannot be probed again.
		if err := s.store.Remove(ctx, recipient, purpose, entry.ID); err != nil {
			s.logger.Warn("Failed to remove expired OTP entry",
				util.String("recipient", recipient),
				util.String("purpose", string(purpose)),
				util.ErrorField(err),
			)
		}
		return Result{Reason: ReasonExpired}, nil
	}

	if entry.Consumed {
		return Result{Reason: ReasonAlreadyUsed}, nil
	}

	match, err := s.hasher.VerifyOTP(submitted, &hashing.HashResult{
		Hash:          entry.CodeHash,
		Salt:          entry.CodeSalt,
		PepperVersion: entry.PepperVersion,
		Algorithm:     entry.HashAlgorithm,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to verify code: %w", err)
	}
	if !match {
		return Result{Reason: ReasonMismatch}, nil
	}

	consumed, err := s.store.Consume(ctx, recipient, purpose, entry.ID)
	if err != nil {
		return Result{}, err
	}
	if !consumed {
		// Lost the race against a concurrent verify or a superseding
		// generate; either way this code no longer proves anything.
		return Result{Reason: ReasonAlreadyUsed}, nil
	}

	return Result{Valid: true}, nil
}
