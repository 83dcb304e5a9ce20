package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/client"
	"verification-service/internal/otp"
	"verification-service/internal/util"
)

// emailMessage is the payload consumed by the downstream mailer. The code
// travels only on this channel; it is never logged or audited.
type emailMessage struct {
	Recipient string    `json:"recipient"`
	Purpose   string    `json:"purpose"`
	Subject   string    `json:"subject"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	SentAt    time.Time `json:"sent_at"`
}

// KafkaSender publishes delivery requests to the notification topic. The
// mailer service owns templating and SMTP.
type KafkaSender struct {
	producer *client.KafkaProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaSender(producer *client.KafkaProducer, topic string, logger *zap.Logger) *KafkaSender {
	return &KafkaSender{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (s *KafkaSender) Send(ctx context.Context, recipient string, purpose otp.Purpose, code string, expiresAt time.Time) error {
	msg := emailMessage{
		Recipient: recipient,
		Purpose:   string(purpose),
		Subject:   subjectFor(purpose),
		Code:      code,
		ExpiresAt: expiresAt,
		SentAt:    time.Now(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	headers := map[string]string{
		"purpose": string(purpose),
	}

	if err := s.producer.ProduceMessage(ctx, s.topic, []byte(recipient), payload, headers); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("Notification published",
		util.String("topic", s.topic),
		util.String("purpose", string(purpose)),
	)
	return nil
}
