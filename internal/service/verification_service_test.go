package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verification-service/internal/bucketing"
	"verification-service/internal/config"
	"verification-service/internal/hashing"
	"verification-service/internal/models"
	"verification-service/internal/notifier"
	"verification-service/internal/otp"
	"verification-service/internal/ratelimit"
)

// stubSender captures delivered codes instead of sending them. When fail
// is set it reports a delivery error but still records the code, the same
// way a flaky mailer may deliver after reporting a timeout.
type stubSender struct {
	mu   sync.Mutex
	fail bool
	sent []sentCode
}

type sentCode struct {
	recipient string
	purpose   otp.Purpose
	code      string
	expiresAt time.Time
}

func (s *stubSender) Send(_ context.Context, recipient string, purpose otp.Purpose, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentCode{recipient: recipient, purpose: purpose, code: code, expiresAt: expiresAt})
	if s.fail {
		return errors.New("smtp relay unavailable")
	}
	return nil
}

func (s *stubSender) last(t *testing.T) sentCode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "expected at least one delivery")
	return s.sent[len(s.sent)-1]
}

// fakeRecorder collects emitted audit events for assertions.
type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	eventType string
	recipient string
	purpose   string
	details   map[string]string
}

func (r *fakeRecorder) Emit(_ context.Context, eventType, recipient, purpose string, details map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{
		eventType: eventType,
		recipient: recipient,
		purpose:   purpose,
		details:   details,
	})
}

func (r *fakeRecorder) byType(eventType string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, ev := range r.events {
		if ev.eventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestVerificationService(t *testing.T, sender notifier.Sender, recorder *fakeRecorder) *VerificationService {
	t.Helper()

	cfg := &config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:   8192,
			Argon2TimeCost:     1,
			Argon2Parallelism:  1,
			PepperRotationDays: 30,
		},
		Bucketing: config.BucketingConfig{
			EventBuckets: 16,
			ShardCount:   8,
		},
		OTP: config.OTPConfig{
			TTL:        10 * time.Minute,
			CodeLength: 6,
		},
		RateLimit: config.RateLimitConfig{
			Window:      time.Minute,
			MaxAttempts: 3,
			Cooldown:    5 * time.Minute,
		},
	}

	buckets := bucketing.NewBucketingManager(cfg)
	hasher := hashing.NewHasher(cfg)
	logger := zap.NewNop()

	limiterStore := ratelimit.NewMemoryStore(ratelimit.PolicyFromConfig(cfg.RateLimit), buckets)
	t.Cleanup(limiterStore.Close)
	limiter := ratelimit.NewLimiter(limiterStore, logger)

	otpStore := otp.NewMemoryStore(buckets)
	t.Cleanup(otpStore.Close)
	codes := otp.NewService(otpStore, hasher, cfg.OTP, logger)

	return NewVerificationService(limiter, codes, sender, recorder, logger)
}

func TestRequestAndVerifyNormalizesRecipient(t *testing.T) {
	sender := &stubSender{}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	result, err := svc.RequestCode(ctx, "  User@Example.COM ", "login")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, result.Outcome)
	assert.False(t, result.ExpiresAt.IsZero())

	delivered := sender.last(t)
	assert.Equal(t, "user@example.com", delivered.recipient)
	assert.Len(t, delivered.code, 6)

	// Verification with a differently-cased address hits the same entry.
	verify, err := svc.VerifyCode(ctx, "user@example.com", "login", delivered.code)
	require.NoError(t, err)
	assert.True(t, verify.Valid)
}

func TestRequestCodeRateLimited(t *testing.T) {
	sender := &stubSender{}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := svc.RequestCode(ctx, "burst@example.com", "login")
		require.NoError(t, err)
		require.Equal(t, OutcomeSent, result.Outcome, "request %d", i+1)
	}

	result, err := svc.RequestCode(ctx, "burst@example.com", "login")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, result.Outcome)
	// Microseconds after the third accepted attempt the remaining cooldown
	// is still effectively five minutes, rounded up to whole minutes.
	assert.Equal(t, 5, result.RetryAfterMinutes)
	assert.Greater(t, result.RetryAfter, 4*time.Minute)

	limited := recorder.byType(models.EventOTPRateLimited)
	require.Len(t, limited, 1)
	assert.Equal(t, "5", limited[0].details["retry_after_minutes"])

	// No code was generated or delivered for the denied request.
	assert.Len(t, sender.sent, 3)
}

func TestRequestCodeRateLimitKeysIndependent(t *testing.T) {
	sender := &stubSender{}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RequestCode(ctx, "shared@example.com", "login")
		require.NoError(t, err)
	}

	// Same recipient, different purpose: separate budget.
	result, err := svc.RequestCode(ctx, "shared@example.com", "signup")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, result.Outcome)

	// Different recipient, same purpose: separate budget.
	result, err = svc.RequestCode(ctx, "other@example.com", "login")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, result.Outcome)
}

func TestRequestCodeDeliveryFailureKeepsCodeValid(t *testing.T) {
	sender := &stubSender{fail: true}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	result, err := svc.RequestCode(ctx, "late@example.com", "login")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeliveryFailed, result.Outcome)
	assert.False(t, result.ExpiresAt.IsZero())

	require.Len(t, recorder.byType(models.EventOTPIssued), 1)
	require.Len(t, recorder.byType(models.EventOTPDeliveryFailed), 1)

	// The message may still arrive late; the code it carries must work.
	verify, err := svc.VerifyCode(ctx, "late@example.com", "login", sender.last(t).code)
	require.NoError(t, err)
	assert.True(t, verify.Valid)
}

func TestRequestCodeRejectsBadInput(t *testing.T) {
	svc := newTestVerificationService(t, &stubSender{}, &fakeRecorder{})
	ctx := context.Background()

	_, err := svc.RequestCode(ctx, "not-an-email", "login")
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = svc.RequestCode(ctx, "", "login")
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = svc.RequestCode(ctx, "user@example.com", "password_reset")
	assert.ErrorIs(t, err, ErrInvalidPurpose)
}

func TestVerifyCodeRejectsBadInput(t *testing.T) {
	svc := newTestVerificationService(t, &stubSender{}, &fakeRecorder{})
	ctx := context.Background()

	_, err := svc.VerifyCode(ctx, "not-an-email", "login", "123456")
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = svc.VerifyCode(ctx, "user@example.com", "unknown", "123456")
	assert.ErrorIs(t, err, ErrInvalidPurpose)

	_, err = svc.VerifyCode(ctx, "user@example.com", "login", "")
	assert.ErrorIs(t, err, ErrCodeRequired)
}

func TestVerifyCodeReportsReason(t *testing.T) {
	sender := &stubSender{}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	verify, err := svc.VerifyCode(ctx, "nobody@example.com", "login", "123456")
	require.NoError(t, err)
	assert.False(t, verify.Valid)
	assert.Equal(t, otp.ReasonNotFound, verify.Reason)

	_, err = svc.RequestCode(ctx, "nobody@example.com", "login")
	require.NoError(t, err)
	code := sender.last(t).code

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	verify, err = svc.VerifyCode(ctx, "nobody@example.com", "login", wrong)
	require.NoError(t, err)
	assert.False(t, verify.Valid)
	assert.Equal(t, otp.ReasonMismatch, verify.Reason)

	verify, err = svc.VerifyCode(ctx, "nobody@example.com", "login", code)
	require.NoError(t, err)
	assert.True(t, verify.Valid)

	verify, err = svc.VerifyCode(ctx, "nobody@example.com", "login", code)
	require.NoError(t, err)
	assert.False(t, verify.Valid)
	assert.Equal(t, otp.ReasonAlreadyUsed, verify.Reason)
}

func TestAuditEventsNeverContainCodes(t *testing.T) {
	sender := &stubSender{}
	recorder := &fakeRecorder{}
	svc := newTestVerificationService(t, sender, recorder)
	ctx := context.Background()

	_, err := svc.RequestCode(ctx, "audited@example.com", "signup")
	require.NoError(t, err)
	code := sender.last(t).code

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.NotEmpty(t, recorder.events)
	for _, ev := range recorder.events {
		for key, value := range ev.details {
			assert.NotContains(t, value, code, "detail %q leaks the code", key)
		}
		assert.False(t, strings.Contains(ev.eventType, code))
	}
}

func TestCeilMinutes(t *testing.T) {
	assert.Equal(t, 1, ceilMinutes(0))
	assert.Equal(t, 1, ceilMinutes(-time.Second))
	assert.Equal(t, 1, ceilMinutes(time.Second))
	assert.Equal(t, 5, ceilMinutes(295*time.Second))
	assert.Equal(t, 5, ceilMinutes(5*time.Minute))
	assert.Equal(t, 6, ceilMinutes(5*time.Minute+time.Second))
}
