package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/audit"
	"verification-service/internal/models"
	"verification-service/internal/notifier"
	"verification-service/internal/otp"
	"verification-service/internal/ratelimit"
	"verification-service/internal/util"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidPurpose   = errors.New("invalid purpose")
	ErrCodeRequired     = errors.New("code is required")
)

// RequestOutcome classifies the result of a code request.
type RequestOutcome string

const (
	OutcomeSent           RequestOutcome = "sent"
	OutcomeRateLimited    RequestOutcome = "rate_limited"
	OutcomeDeliveryFailed RequestOutcome = "delivery_failed"
)

// RequestResult carries the outcome of RequestCode. ExpiresAt is set when
// a code was issued (including when delivery subsequently failed);
// RetryAfterMinutes is set only for rate-limited requests.
type RequestResult struct {
	Outcome           RequestOutcome
	ExpiresAt         time.Time
	RetryAfter        time.Duration
	RetryAfterMinutes int
}

// VerifyResult carries the outcome of VerifyCode. Reason is for
// server-side logging only; callers expose a single opaque failure to
// the client.
type VerifyResult struct {
	Valid  bool
	Reason otp.Reason
}

// VerificationService orchestrates the request/verify flow: it normalizes
// the recipient, consults the rate limiter, issues codes, hands them to
// the delivery channel, and emits audit events. Audit details never
// include code values.
type VerificationService struct {
	limiter  *ratelimit.Limiter
	codes    *otp.Service
	sender   notifier.Sender
	recorder audit.Recorder
	logger   *zap.Logger
}

func NewVerificationService(
	limiter *ratelimit.Limiter,
	codes *otp.Service,
	sender notifier.Sender,
	recorder audit.Recorder,
	logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		limiter:  limiter,
		codes:    codes,
		sender:   sender,
		recorder: recorder,
		logger:   logger,
	}
}

// RequestCode issues and delivers a fresh code for the recipient. A
// request that passes the limiter always generates a code, even if
// delivery then fails: the recipient may still receive a delayed message,
// and the code must work when they do.
func (s *VerificationService) RequestCode(ctx context.Context, recipient, purpose string) (RequestResult, error) {
	normalized := util.NormalizeRecipient(recipient)
	if !util.IsPlausibleEmail(normalized) {
		return RequestResult{}, ErrInvalidRecipient
	}

	p, err := otp.ParsePurpose(purpose)
	if err != nil {
		return RequestResult{}, ErrInvalidPurpose
	}

	key := ratelimit.Key(normalized, p.String())
	decision, err := s.limiter.CheckAndRecordAttempt(ctx, key)
	if err != nil {
		return RequestResult{}, err
	}

	if !decision.Allowed {
		minutes := ceilMinutes(decision.RemainingCooldown)
		s.recorder.Emit(ctx, models.EventOTPRateLimited, normalized, p.String(), map[string]string{
			"retry_after_minutes": strconv.Itoa(minutes),
		})
		return RequestResult{
			Outcome:           OutcomeRateLimited,
			RetryAfter:        decision.RemainingCooldown,
			RetryAfterMinutes: minutes,
		}, nil
	}

	code, expiresAt, err := s.codes.Generate(ctx, normalized, p)
	if err != nil {
		return RequestResult{}, err
	}

	s.recorder.Emit(ctx, models.EventOTPIssued, normalized, p.String(), nil)

	if err := s.sender.Send(ctx, normalized, p, code, expiresAt); err != nil {
		// The generated code stays valid; do not roll it back.
		s.logger.Error("Failed to deliver verification code",
			util.String("recipient", normalized),
			util.String("purpose", p.String()),
			util.ErrorField(err),
		)
		s.recorder.Emit(ctx, models.EventOTPDeliveryFailed, normalized, p.String(), nil)
		return RequestResult{
			Outcome:   OutcomeDeliveryFailed,
			ExpiresAt: expiresAt,
		}, nil
	}

	return RequestResult{
		Outcome:   OutcomeSent,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyCode checks a submitted code for the recipient. The failure
// reason is logged but never propagated verbatim to clients.
func (s *VerificationService) VerifyCode(ctx context.Context, recipient, purpose, code string) (VerifyResult, error) {
	normalized := util.NormalizeRecipient(recipient)
	if !util.IsPlausibleEmail(normalized) {
		return VerifyResult{}, ErrInvalidRecipient
	}

	p, err := otp.ParsePurpose(purpose)
	if err != nil {
		return VerifyResult{}, ErrInvalidPurpose
	}

	if code == "" {
		return VerifyResult{}, ErrCodeRequired
	}

	result, err := s.codes.Verify(ctx, normalized, p, code)
	if err != nil {
		return VerifyResult{}, err
	}

	if !result.Valid {
		s.logger.Info("Verification failed",
			util.String("recipient", normalized),
			util.String("purpose", p.String()),
			util.String("reason", string(result.Reason)),
		)
	}

	return VerifyResult{Valid: result.Valid, Reason: result.Reason}, nil
}

// ceilMinutes rounds a cooldown up to whole minutes, never below one.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
