package audit

import (
	"context"

	"go.uber.org/zap"

	"verification-service/internal/models"
	"verification-service/internal/util"
)

// LogSink mirrors audit events into the structured application log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, events []*models.AuditEvent) error {
	for _, event := range events {
		s.logger.Info("Audit event",
			util.String("event_id", event.EventID),
			util.String("event_type", event.EventType),
			util.String("recipient", event.Recipient),
			util.String("purpose", event.Purpose),
			util.Any("details", event.Details),
		)
	}
	return nil
}
