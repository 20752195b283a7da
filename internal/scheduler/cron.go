package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrPassRunning is returned when a pass is requested while another runs
var ErrPassRunning = errors.New("a sync pass is already running")

// PassRunner runs one sync pass
type PassRunner interface {
	Run(ctx context.Context, req controllers.PassRequest, state controllers.SyncState) (controllers.PassOutcome, error)
}

// LastPass describes the most recent finished pass
type LastPass struct {
	Request  controllers.PassRequest
	Outcome  controllers.PassOutcome
	Err      error
	Finished time.Time
}

// Status is a snapshot of the scheduler for monitoring
type Status struct {
	Running   bool
	State     controllers.SyncState
	NextRunAt time.Time
	HeldUntil time.Time
	Last      *LastPass
}

// Scheduler manages scheduled passes. Delta passes are checked every minute
// and run once the persisted state says they are due; full passes follow
// their own cron expression. Passes never overlap.
type Scheduler struct {
	cron         *cron.Cron
	runner       PassRunner
	prefs        controllers.Preferences
	fullSyncSpec string
	clock        func() time.Time
	logger       *logrus.Logger

	passMu sync.Mutex

	mu        sync.Mutex
	running   bool
	last      *LastPass
	heldUntil time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(runner PassRunner, prefs controllers.Preferences, fullSyncSpec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		runner:       runner,
		prefs:        prefs,
		fullSyncSpec: fullSyncSpec,
		clock:        time.Now,
		logger:       logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every minute: run a delta pass if one is due
	if _, err := s.cron.AddFunc("* * * * *", s.runDue); err != nil {
		return fmt.Errorf("failed to add delta sync job: %w", err)
	}

	if s.fullSyncSpec != "" {
		_, err := s.cron.AddFunc(s.fullSyncSpec, func() {
			s.runScheduled(controllers.PassRequest{Mode: controllers.UpdateFull})
		})
		if err != nil {
			return fmt.Errorf("failed to add full sync job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Catch up right away instead of waiting for the first tick
	go s.runDue()

	return nil
}

// Stop stops the scheduler and waits for a running pass to finish, whether
// started by cron or by Trigger. No pass can start afterwards.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.passMu.Lock()
}

// RunPass runs a pass now. It fails with ErrPassRunning when another pass
// is in progress. The resulting state is persisted except after a rejected
// batch, which holds back scheduled delta passes for one update interval.
func (s *Scheduler) RunPass(ctx context.Context, req controllers.PassRequest) (controllers.PassOutcome, error) {
	if !s.passMu.TryLock() {
		return controllers.PassOutcome{}, ErrPassRunning
	}
	defer s.passMu.Unlock()

	return s.runLocked(ctx, req)
}

// Trigger starts a pass in the background. It fails right away with
// ErrPassRunning when another pass is in progress.
func (s *Scheduler) Trigger(req controllers.PassRequest) error {
	if !s.passMu.TryLock() {
		return ErrPassRunning
	}

	go func() {
		defer s.passMu.Unlock()
		if _, err := s.runLocked(context.Background(), req); err != nil {
			s.logger.WithError(err).WithField("mode", req.Mode.String()).Error("Triggered sync failed")
		}
	}()

	return nil
}

// runLocked runs a pass; the caller holds passMu
func (s *Scheduler) runLocked(ctx context.Context, req controllers.PassRequest) (controllers.PassOutcome, error) {
	s.setRunning(true)
	defer s.setRunning(false)

	state, err := controllers.LoadSyncState(s.prefs)
	if err != nil {
		return controllers.PassOutcome{}, fmt.Errorf("failed to load sync state: %w", err)
	}

	outcome, err := s.runner.Run(ctx, req, state)
	s.record(req, outcome, err)
	if err != nil {
		s.mu.Lock()
		s.heldUntil = s.clock().Add(controllers.UpdateInterval)
		s.mu.Unlock()
		return outcome, err
	}

	if req.Mode != controllers.UpdateAutoSingle {
		if err := controllers.SaveSyncState(s.prefs, outcome.State); err != nil {
			return outcome, fmt.Errorf("failed to save sync state: %w", err)
		}
	}

	return outcome, nil
}

// Status returns a snapshot for monitoring
func (s *Scheduler) Status() Status {
	state, err := controllers.LoadSyncState(s.prefs)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load sync state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		State:     state,
		NextRunAt: state.NextRunAt(),
		HeldUntil: s.heldUntil,
	}
	if s.last != nil {
		last := *s.last
		status.Last = &last
	}
	return status
}

// runDue runs a delta pass when the persisted state says one is due
func (s *Scheduler) runDue() {
	now := s.clock()

	s.mu.Lock()
	held := now.Before(s.heldUntil)
	s.mu.Unlock()
	if held {
		return
	}

	state, err := controllers.LoadSyncState(s.prefs)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load sync state")
		return
	}
	if !state.Due(now) {
		return
	}

	s.runScheduled(controllers.PassRequest{Mode: controllers.UpdateDelta})
}

func (s *Scheduler) runScheduled(req controllers.PassRequest) {
	log := s.logger.WithField("mode", req.Mode.String())
	log.Info("Running scheduled sync")

	_, err := s.RunPass(context.Background(), req)
	switch {
	case errors.Is(err, ErrPassRunning):
		log.Debug("Sync pass already running, skipping")
	case err != nil:
		log.WithError(err).Error("Sync job failed")
	}
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *Scheduler) record(req controllers.PassRequest, outcome controllers.PassOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &LastPass{
		Request:  req,
		Outcome:  outcome,
		Err:      err,
		Finished: s.clock(),
	}
}
