package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/otp"
	"verification-service/internal/util"
)

// LogSender writes delivery requests to the application log instead of a
// real channel. Development only: it logs the code in clear text.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, recipient string, purpose otp.Purpose, code string, expiresAt time.Time) error {
	s.logger.Info("OTP delivery (log channel)",
		util.String("recipient", recipient),
		util.String("purpose", string(purpose)),
		util.String("subject", subjectFor(purpose)),
		util.String("code", code),
		util.Time("expires_at", expiresAt),
	)
	return nil
}
