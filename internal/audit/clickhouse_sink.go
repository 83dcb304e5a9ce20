package audit

import (
	"context"

	"verification-service/internal/client"
	"verification-service/internal/models"
)

const insertEventsQuery = `
	INSERT INTO security_events (
		event_bucket, event_id, event_date, event_time,
		event_type, recipient, purpose, details
	)`

// ClickHouseSink lands audit events in the analytics table that backs
// abuse and funnel dashboards.
type ClickHouseSink struct {
	client *client.ClickHouseClient
}

func NewClickHouseSink(ch *client.ClickHouseClient) *ClickHouseSink {
	return &ClickHouseSink{client: ch}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, events []*models.AuditEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, event := range events {
		rows = append(rows, []interface{}{
			uint32(event.EventBucket),
			event.EventID,
			event.EventDate,
			event.EventTime,
			event.EventType,
			event.Recipient,
			event.Purpose,
			event.Details,
		})
	}
	return s.client.BatchInsert(ctx, insertEventsQuery, rows)
}
