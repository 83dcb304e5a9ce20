package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"verification-service/internal/bucketing"
	"verification-service/internal/models"
	"verification-service/internal/util"
)

const (
	defaultQueueSize     = 1024
	defaultBatchSize     = 64
	defaultFlushInterval = 2 * time.Second
	flushTimeout         = 5 * time.Second
)

// Dispatcher buffers events on a bounded channel and flushes batches to
// all sinks. Emit never blocks the request path: when the queue is full
// the event is dropped and counted.
type Dispatcher struct {
	bucketing *bucketing.BucketingManager
	sinks     []Sink
	logger    *zap.Logger

	queue   chan *models.AuditEvent
	dropped int64
	mu      sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

func NewDispatcher(bm *bucketing.BucketingManager, sinks []Sink, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		bucketing: bm,
		sinks:     sinks,
		logger:    logger,
		queue:     make(chan *models.AuditEvent, defaultQueueSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) Emit(ctx context.Context, eventType, recipient, purpose string, details map[string]string) {
	event := newEvent(d.bucketing, eventType, recipient, purpose, details)

	select {
	case d.queue <- event:
	default:
		d.mu.Lock()
		d.dropped++
		dropped := d.dropped
		d.mu.Unlock()
		d.logger.Warn("Audit queue full, event dropped",
			util.String("event_type", eventType),
			util.Int64("total_dropped", dropped),
		)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditEvent, 0, defaultBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		d.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case event := <-d.queue:
			batch = append(batch, event)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-d.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case event := <-d.queue:
					batch = append(batch, event)
					if len(batch) >= defaultBatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) flush(batch []*models.AuditEvent) {
	events := make([]*models.AuditEvent, len(batch))
	copy(events, batch)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range d.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Write(gctx, events); err != nil {
				// A failing sink must not take the others down with it.
				d.logger.Error("Audit sink write failed",
					util.String("sink", sink.Name()),
					util.Int("events", len(events)),
					util.ErrorField(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Close stops the background loop after draining the queue.
func (d *Dispatcher) Close() {
	close(d.done)
	d.wg.Wait()
}
