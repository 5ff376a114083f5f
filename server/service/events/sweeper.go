package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bonsaihq/bonsai/store"
)

const sweepBatchSize = 100

// Sweeper periodically retries unpublished events and purges events
// older than the retention window.
type Sweeper struct {
	publisher *Publisher
	interval  time.Duration
	retention time.Duration
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewSweeper creates an event sweeper.
func NewSweeper(publisher *Publisher, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Sweeper{
		publisher: publisher,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
		logger:    slog.Default(),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("event sweeper started", "interval", s.interval, "retention", s.retention)
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("event sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle: retry unpublished events, then purge expired ones.
func (s *Sweeper) Sweep(ctx context.Context) {
	retried, err := s.RetryUnpublished(ctx)
	if err != nil {
		s.logger.Error("failed to retry unpublished events", "error", err)
	} else if retried > 0 {
		s.logger.Info("republished events", "count", retried)
	}

	purged, err := s.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge expired events", "error", err)
	} else if purged > 0 {
		s.logger.Info("purged expired events", "count", purged)
	}
}

// RetryUnpublished attempts delivery of stored events that have not been
// published yet, with exponential backoff per event.
func (s *Sweeper) RetryUnpublished(ctx context.Context) (int, error) {
	published := false
	limit := sweepBatchSize
	pending, err := s.publisher.store.ListTaskEvents(ctx, &store.FindTaskEvent{
		Published: &published,
		Limit:     &limit,
	})
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, event := range pending {
		select {
		case <-ctx.Done():
			return retried, ctx.Err()
		default:
		}

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		err := backoff.Retry(func() error {
			return s.publisher.Publish(ctx, event)
		}, policy)
		if err != nil {
			s.logger.Warn("event still unpublished after retries",
				"event_id", event.ID, "type", event.Type, "error", err)
			continue
		}
		retried++
	}
	return retried, nil
}

// PurgeExpired removes events older than the retention window, published
// or not.
func (s *Sweeper) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.publisher.now().Add(-s.retention).Unix()
	return s.publisher.store.PurgeTaskEvents(ctx, cutoff)
}
