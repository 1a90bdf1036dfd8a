// Package reconciliation runs the periodic ledger pass: rate refresh,
// one-time incentives, balance sweep, rank evaluation and the matrix pool
// payout.
package reconciliation

import (
	"context"
	"time"

	"github.com/david-jerry/heroku-suibison/internal/infrastructure/rates"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// RateRefresher refreshes the cached SUI/USD rate.
type RateRefresher interface {
	Refresh(ctx context.Context) (*rates.Quote, error)
}

// IncentiveEngine applies the fast bonus and speed boost rules.
type IncentiveEngine interface {
	RunIncentivePass(ctx context.Context) error
}

// StakeEngine sweeps custodial balances into stakes.
type StakeEngine interface {
	RunSweepPass(ctx context.Context) error
}

// RankEngine re-ranks accounts and pays due weekly bonuses.
type RankEngine interface {
	RunPass(ctx context.Context) error
}

// PoolEngine pays out the matrix pool inside its lead window.
type PoolEngine interface {
	RunPayoutPass(ctx context.Context) error
}

// Worker drives the reconciliation pass on a fixed interval.
type Worker struct {
	rates      RateRefresher
	incentives IncentiveEngine
	stakes     StakeEngine
	ranks      RankEngine
	pools      PoolEngine
	interval   time.Duration
	logger     *logger.Logger
	stopCh     chan struct{}
}

// NewWorker creates a reconciliation worker.
func NewWorker(rates RateRefresher, incentives IncentiveEngine, stakes StakeEngine, ranks RankEngine, pools PoolEngine, interval time.Duration, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Worker{
		rates:      rates,
		incentives: incentives,
		stakes:     stakes,
		ranks:      ranks,
		pools:      pools,
		interval:   interval,
		logger:     log,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the reconciliation loop. It blocks until the context is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting reconciliation worker", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconciliation worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Reconciliation worker stopped")
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// runPass executes the engines in their fixed order. Engine failures are
// logged and never abort the remaining engines.
func (w *Worker) runPass(ctx context.Context) {
	start := time.Now()
	w.logger.Info("Running reconciliation pass")

	if _, err := w.rates.Refresh(ctx); err != nil {
		// Rank evaluation tolerates a stale cached rate.
		w.logger.Warn("Rate refresh failed", "error", err)
	}
	if err := w.incentives.RunIncentivePass(ctx); err != nil {
		w.logger.Error("Incentive pass failed", "error", err)
	}
	if err := w.stakes.RunSweepPass(ctx); err != nil {
		w.logger.Error("Balance sweep pass failed", "error", err)
	}
	if err := w.ranks.RunPass(ctx); err != nil {
		w.logger.Error("Rank pass failed", "error", err)
	}
	if err := w.pools.RunPayoutPass(ctx); err != nil {
		w.logger.Error("Pool payout pass failed", "error", err)
	}

	w.logger.Info("Reconciliation pass completed", "duration", time.Since(start).String())
}

// RunOnce runs one pass (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.runPass(ctx)
}
