// Package worker runs periodic background jobs alongside the API server.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/observability"
	"github.com/adeolu/wallet-multicurrency/internal/service"
	"go.uber.org/zap"
)

// ReconciliationWorker periodically audits the ledger for negative balances
// and broken conservation, so corruption surfaces within one interval instead
// of at the next dispute.
type ReconciliationWorker struct {
	svc      *service.ReconciliationService
	logger   *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReconciliationWorker(svc *service.ReconciliationService, logger *zap.Logger) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		logger:   logger,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

func (w *ReconciliationWorker) WithInterval(d time.Duration) *ReconciliationWorker {
	if d > 0 {
		w.interval = d
	}
	return w
}

// Start launches the loop. The first run happens after one interval, not at
// startup, so deploys do not stampede the database.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *ReconciliationWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	violations, err := w.svc.Run(runCtx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "error")
		w.logger.Error("reconciliation run failed", zap.Error(err))
		return
	}
	if len(violations) > 0 {
		observability.IncrementWorkerRun("reconciliation", "violations")
		w.logger.Error("reconciliation found violations", zap.Int("count", len(violations)))
		return
	}
	observability.IncrementWorkerRun("reconciliation", "clean")
	w.logger.Info("reconciliation run clean")
}
