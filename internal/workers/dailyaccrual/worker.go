// Package dailyaccrual runs the daily ledger jobs on a cron schedule: keep a
// matrix pool open and apply one interest accrual step to every account.
package dailyaccrual

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// PoolEngine keeps exactly one pool open.
type PoolEngine interface {
	EnsureActivePool(ctx context.Context) (*entities.Pool, error)
}

// AccrualEngine applies the daily interest step.
type AccrualEngine interface {
	RunPass(ctx context.Context) error
}

// Worker schedules the daily pass with cron.
type Worker struct {
	pools    PoolEngine
	accrual  AccrualEngine
	cronSpec string
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewWorker creates a daily accrual worker. cronSpec uses the standard
// five-field syntax; empty means midnight UTC.
func NewWorker(pools PoolEngine, accrual AccrualEngine, cronSpec string, log *logger.Logger) *Worker {
	if cronSpec == "" {
		cronSpec = "0 0 * * *"
	}
	return &Worker{
		pools:    pools,
		accrual:  accrual,
		cronSpec: cronSpec,
		logger:   log,
	}
}

// Start registers the cron entry and begins scheduling.
func (w *Worker) Start(ctx context.Context) error {
	w.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := w.cron.AddFunc(w.cronSpec, func() { w.runPass(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("Starting daily accrual worker", "cron", w.cronSpec)
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (w *Worker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.logger.Info("Daily accrual worker stopped")
}

func (w *Worker) runPass(ctx context.Context) {
	w.logger.Info("Running daily accrual pass")

	if _, err := w.pools.EnsureActivePool(ctx); err != nil {
		w.logger.Error("Failed to ensure active pool", "error", err)
	}
	if err := w.accrual.RunPass(ctx); err != nil {
		w.logger.Error("Accrual pass failed", "error", err)
	}

	w.logger.Info("Daily accrual pass completed")
}

// RunOnce runs one pass (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.runPass(ctx)
}
