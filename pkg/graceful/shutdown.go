// Package graceful coordinates orderly shutdown of the HTTP server, the
// batch workers and the database connection.
package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// Stopper is anything that can be told to stop, typically a worker.
type Stopper interface {
	Stop()
}

// ShutdownManager waits for a termination signal and stops components in
// registration order before closing the server and the database.
type ShutdownManager struct {
	server   *http.Server
	db       *sqlx.DB
	stoppers []Stopper
	logger   *logger.Logger
	timeout  time.Duration
}

// NewShutdownManager creates a shutdown manager.
func NewShutdownManager(server *http.Server, db *sqlx.DB, log *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		db:      db,
		logger:  log,
		timeout: 30 * time.Second,
	}
}

// Register adds a component to stop before the server goes down.
func (sm *ShutdownManager) Register(s Stopper) {
	sm.stoppers = append(sm.stoppers, s)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains everything.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	for _, s := range sm.stoppers {
		s.Stop()
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("Database close error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
