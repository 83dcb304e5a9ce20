package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verification-service/internal/bucketing"
	"verification-service/internal/config"
	"verification-service/internal/models"
)

// collectSink accumulates every event written to it.
type collectSink struct {
	mu     sync.Mutex
	events []*models.AuditEvent
	fail   bool
}

func (s *collectSink) Write(_ context.Context, events []*models.AuditEvent) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *collectSink) Name() string { return "collect" }

func (s *collectSink) collected() []*models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func testBucketing() *bucketing.BucketingManager {
	return bucketing.NewBucketingManager(&config.Config{
		Bucketing: config.BucketingConfig{EventBuckets: 16, ShardCount: 8},
	})
}

func TestDispatcherDeliversAllEventsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(testBucketing(), []Sink{sink}, zap.NewNop())

	const total = 200
	ctx := context.Background()
	for i := 0; i < total; i++ {
		d.Emit(ctx, models.EventOTPIssued, fmt.Sprintf("user%d@example.com", i), "login", nil)
	}
	d.Close()

	events := sink.collected()
	require.Len(t, events, total)

	seen := make(map[string]bool, total)
	for _, ev := range events {
		assert.Equal(t, models.EventOTPIssued, ev.EventType)
		assert.NotEmpty(t, ev.EventID)
		assert.NotEmpty(t, ev.EventDate)
		assert.False(t, seen[ev.EventID], "duplicate event ID %s", ev.EventID)
		seen[ev.EventID] = true
	}
}

func TestDispatcherEventCarriesFields(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(testBucketing(), []Sink{sink}, zap.NewNop())

	d.Emit(context.Background(), models.EventOTPRateLimited, "user@example.com", "signup", map[string]string{
		"retry_after_minutes": "5",
	})
	d.Close()

	events := sink.collected()
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, models.EventOTPRateLimited, ev.EventType)
	assert.Equal(t, "user@example.com", ev.Recipient)
	assert.Equal(t, "signup", ev.Purpose)
	assert.Equal(t, "5", ev.Details["retry_after_minutes"])
	assert.GreaterOrEqual(t, ev.EventBucket, 0)
	assert.Less(t, ev.EventBucket, 16)
}

func TestDispatcherFailingSinkDoesNotStarveOthers(t *testing.T) {
	good := &collectSink{}
	bad := &collectSink{fail: true}
	d := NewDispatcher(testBucketing(), []Sink{bad, good}, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Emit(ctx, models.EventOTPIssued, "user@example.com", "login", nil)
	}
	d.Close()

	assert.Len(t, good.collected(), 10)
}
