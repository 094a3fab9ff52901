package syncer

import (
	"context"
	"sync"

	"github.com/quotadb/quotadb/internal/logging"
	"github.com/robfig/cron/v3"
)

// Scheduler triggers synchronization runs at fixed times of day. It is
// an explicit lifecycle object: construct with an engine, Start once,
// Stop on shutdown. Overlapping triggers are skipped rather than queued;
// the next trigger picks up whatever the running sync has not covered.
type Scheduler struct {
	engine   *Engine
	schedule string
	logger   *logging.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for the given cron expression
// (standard five-field syntax, e.g. "0 3,12,18 * * *").
func NewScheduler(engine *Engine, schedule string, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sync scheduler stopped")
}

// runOnce executes a single scheduled sync. A failed run is logged and
// retried at the next trigger; it never crashes the serving process.
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous sync still running, skipping trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.logger.Error("sync run panicked", "panic", r)
		}
	}()

	if _, err := s.engine.Run(context.Background()); err != nil {
		s.logger.Error("scheduled sync aborted", "error", err.Error())
	}
}
