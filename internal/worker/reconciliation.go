package worker

import (
	"context"
	"log/slog"
	"time"

	"movie-membership/internal/domain"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/service"
)

type staleOrderFinder interface {
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type reconciler interface {
	ReconcileWithGateway(ctx context.Context, orderID string) (*service.CallbackResult, error)
}

// ReconciliationWorker settles orders whose gateway notification never
// arrived by asking the gateway directly.
type ReconciliationWorker struct {
	orders     staleOrderFinder
	callbacks  reconciler
	metrics    *metrics.PaymentMetrics
	log        *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
}

func NewReconciliationWorker(
	orders staleOrderFinder,
	callbacks reconciler,
	m *metrics.PaymentMetrics,
	log *slog.Logger,
	interval, staleAfter time.Duration,
	batchSize int,
) *ReconciliationWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ReconciliationWorker{
		orders:     orders,
		callbacks:  callbacks,
		metrics:    m,
		log:        log,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation worker started",
		slog.Duration("interval", rw.interval),
		slog.Duration("stale_after", rw.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Sweep(ctx); err != nil {
				rw.log.Error("reconciliation sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep runs one pass and returns how many orders it settled. A failure on
// one order is logged and the order is retried on the next pass.
func (rw *ReconciliationWorker) Sweep(ctx context.Context) (int, error) {
	rw.metrics.RecordSweep()

	stale, err := rw.orders.FindStalePending(ctx, rw.staleAfter, rw.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	rw.log.Info("found stale pending orders", slog.Int("count", len(stale)))

	resolved := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		res, err := rw.callbacks.ReconcileWithGateway(ctx, order.OrderID)
		if err != nil {
			rw.log.Warn("gateway status check failed", slog.String("order_id", order.OrderID), slog.Any("error", err))
			continue
		}
		switch res.Outcome {
		case service.OutcomePaid, service.OutcomeFailed, service.OutcomeAmountMismatch:
			resolved++
		}
	}
	return resolved, nil
}
