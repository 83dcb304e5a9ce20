package notifier

import (
	"context"
	"time"

	"verification-service/internal/otp"
)

// Sender delivers a one-time code to a recipient over some out-of-band
// channel. Implementations must not persist the code.
type Sender interface {
	Send(ctx context.Context, recipient string, purpose otp.Purpose, code string, expiresAt time.Time) error
}

// subjectFor maps a purpose to the message subject line.
func subjectFor(purpose otp.Purpose) string {
	switch purpose {
	case otp.PurposeSignup:
		return "Confirm your email"
	default:
		return "Your sign-in code"
	}
}
