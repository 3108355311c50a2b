package worker

import (
	"context"
	"sync"
	"time"

	"github.com/marketloop/earnings/internal/observability"
	"go.uber.org/zap"
)

// SettlementStore narrows the repository to the settlement sweep.
type SettlementStore interface {
	SettleArrivedPayouts(ctx context.Context, asOf time.Time) (int64, error)
}

// SettlementWorker periodically promotes pending disbursements to completed
// once their estimated arrival date has passed. Rails in this system expose
// no status callback, so arrival is settled on the estimate.
type SettlementWorker struct {
	store    SettlementStore
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSettlementWorker constructs a worker with a default daily interval.
func NewSettlementWorker(store SettlementStore) *SettlementWorker {
	return &SettlementWorker{
		store:    store,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *SettlementWorker) WithInterval(interval time.Duration) *SettlementWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs settlement at the configured interval.
func (w *SettlementWorker) Start(ctx context.Context) {
	zap.L().Info("settlement worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("settlement worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("settlement worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SettlementWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettlementWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *SettlementWorker) runOnce(ctx context.Context) {
	settled, err := w.store.SettleArrivedPayouts(ctx, time.Now().UTC())
	if err != nil {
		observability.IncrementWorkerRun("settlement", "failed")
		zap.L().Error("settlement run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("settlement", "success")
	if settled > 0 {
		zap.L().Info("settlement run completed", zap.Int64("settled", settled))
	}
}
