package drivers

import (
	"context"
	"time"

	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/resilience"
	"go.uber.org/zap"
)

// Flusher runs the two background loops that move dirty state from
// the in-memory store to the persistent store: locations on a slow
// period, status changes on a fast one. The telemetry path never
// blocks on persistence.
type Flusher struct {
	store   StateStore
	repo    *Repository
	breaker *resilience.CircuitBreaker

	locationPeriod time.Duration
	statusPeriod   time.Duration
	maxRetries     int

	stop chan struct{}
	done chan struct{}
}

// NewFlusher creates a flusher for the given store and repository.
func NewFlusher(store StateStore, repo *Repository, cfg *config.DispatchConfig) *Flusher {
	return &Flusher{
		store: store,
		repo:  repo,
		breaker: resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "driver-flush",
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		}, nil),
		locationPeriod: cfg.LocationFlushPeriod,
		statusPeriod:   cfg.StatusFlushPeriod,
		maxRetries:     cfg.MaxFlushRetries,
		stop:           make(chan struct{}),
		done:           make(chan struct{}, 2),
	}
}

// Start launches both flush loops.
func (f *Flusher) Start(ctx context.Context) {
	go f.runLocationLoop(ctx)
	go f.runStatusLoop(ctx)
}

// Stop signals both loops and waits for them to drain.
func (f *Flusher) Stop() {
	close(f.stop)
	<-f.done
	<-f.done
}

func (f *Flusher) runLocationLoop(ctx context.Context) {
	defer func() { f.done <- struct{}{} }()

	ticker := time.NewTicker(f.locationPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			// Final drain so a clean shutdown loses nothing.
			f.flushLocations(ctx)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flushLocations(ctx)
		}
	}
}

func (f *Flusher) runStatusLoop(ctx context.Context) {
	defer func() { f.done <- struct{}{} }()

	ticker := time.NewTicker(f.statusPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			f.flushStatuses(ctx)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flushStatuses(ctx)
		}
	}
}

func (f *Flusher) flushLocations(ctx context.Context) {
	writes := f.store.DrainDirtyLocations(ctx)
	if len(writes) == 0 {
		return
	}

	_, err := resilience.RetryWithName(ctx, resilience.FlushRetryConfig(f.maxRetries),
		func(ctx context.Context) (interface{}, error) {
			return f.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
				return nil, f.repo.FlushLocations(ctx, writes)
			})
		}, "flush_locations")
	if err != nil {
		// Dropped: the next telemetry update re-dirties the record.
		f.store.RecordWriteFailure("location")
		logger.Error("location flush dropped after retries",
			zap.Int("batch_size", len(writes)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed driver locations", zap.Int("batch_size", len(writes)))
}

func (f *Flusher) flushStatuses(ctx context.Context) {
	writes := f.store.DrainStatusWrites(ctx)
	if len(writes) == 0 {
		return
	}

	_, err := resilience.RetryWithName(ctx, resilience.FlushRetryConfig(f.maxRetries),
		func(ctx context.Context) (interface{}, error) {
			return f.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
				return nil, f.repo.FlushStatuses(ctx, writes)
			})
		}, "flush_statuses")
	if err != nil {
		f.store.RecordWriteFailure("status")
		logger.Error("status flush dropped after retries",
			zap.Int("batch_size", len(writes)),
			zap.Error(err),
		)
	}
}
