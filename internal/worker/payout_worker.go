package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/observability"
	"github.com/marketloop/earnings/internal/payout"
	"github.com/marketloop/earnings/internal/platform"
	"go.uber.org/zap"
)

// SweepStore narrows the repository to the sweep's candidate query.
type SweepStore interface {
	ListSweepCandidates(ctx context.Context, minAvailableCents int64, limit int32) ([]uuid.UUID, error)
}

// PayoutSweeper periodically walks users whose available balance could clear
// the platform minimum and runs the auto-payout state machine for each. The
// per-user lock inside the processor keeps concurrent sweep instances safe.
type PayoutSweeper struct {
	processor *payout.Processor
	provider  platform.Provider
	store     SweepStore
	interval  time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewPayoutSweeper(processor *payout.Processor, provider platform.Provider, store SweepStore) *PayoutSweeper {
	return &PayoutSweeper{
		processor: processor,
		provider:  provider,
		store:     store,
		interval:  time.Hour,
		batchSize: 50,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *PayoutSweeper) WithInterval(interval time.Duration) *PayoutSweeper {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize caps how many users one sweep pass touches.
func (w *PayoutSweeper) WithBatchSize(size int32) *PayoutSweeper {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *PayoutSweeper) Start(ctx context.Context) {
	zap.L().Info("payout sweeper starting",
		zap.Duration("interval", w.interval),
		zap.Int32("batch_size", w.batchSize),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("payout sweeper context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("payout sweeper stop signal received")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// Stop stops the running sweep loop.
func (w *PayoutSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the sweeper in a goroutine and returns a stop function.
func (w *PayoutSweeper) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// SweepOnce processes a single batch of candidates immediately.
func (w *PayoutSweeper) SweepOnce(ctx context.Context) {
	minCents, err := w.provider.MinThresholdCents(ctx)
	if err != nil {
		observability.IncrementWorkerRun("payout_sweep", "failed")
		zap.L().Error("payout sweep: minimum threshold unavailable", zap.Error(err))
		return
	}

	candidates, err := w.store.ListSweepCandidates(ctx, minCents, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("payout_sweep", "failed")
		zap.L().Error("payout sweep: candidate query failed", zap.Error(err))
		return
	}

	processed := 0
	for _, userID := range candidates {
		if ctx.Err() != nil {
			return
		}
		outcome, err := w.processor.ProcessAutoPayout(ctx, userID)
		if err != nil {
			// A failed transfer for one user never stops the sweep.
			zap.L().Warn("payout sweep: user skipped",
				zap.Error(err),
				zap.String("user_id", userID.String()),
			)
			continue
		}
		if outcome.Processed {
			processed++
		}
	}

	observability.IncrementWorkerRun("payout_sweep", "success")
	zap.L().Info("payout sweep completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", processed),
	)
}
