package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/amaumene/seriesync/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []controllers.PassRequest
	result   controllers.UpdateResult
	err      error
	block    chan struct{}
	now      time.Time
}

func (f *fakeRunner) Run(ctx context.Context, req controllers.PassRequest, state controllers.SyncState) (controllers.PassOutcome, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return controllers.PassOutcome{Result: controllers.ResultError, State: state}, f.err
	}
	return controllers.PassOutcome{
		Result: f.result,
		State:  controllers.NextSyncState(state, f.result, f.now),
	}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestScheduler(t *testing.T, runner *fakeRunner) (*Scheduler, *models.Database) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	s := NewScheduler(runner, db, "0 4 * * 0", logger)
	s.clock = func() time.Time { return runner.now }
	return s, db
}

func TestRunPassPersistsState(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0), result: controllers.ResultIncomplete}
	s, db := newTestScheduler(t, runner)

	_, err := s.RunPass(context.Background(), controllers.PassRequest{Mode: controllers.UpdateDelta})
	require.NoError(t, err)

	state, err := controllers.LoadSyncState(db)
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCounter)
	assert.Equal(t, runner.now.Add(4*time.Minute), state.NextRunAt())

	status := s.Status()
	require.NotNil(t, status.Last)
	assert.Equal(t, controllers.ResultIncomplete, status.Last.Outcome.Result)
	assert.False(t, status.Running)
}

func TestRunPassSingleShowKeepsState(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0)}
	s, db := newTestScheduler(t, runner)

	_, err := s.RunPass(context.Background(), controllers.PassRequest{Mode: controllers.UpdateAutoSingle, ShowID: "1"})
	require.NoError(t, err)

	state, err := controllers.LoadSyncState(db)
	require.NoError(t, err)
	assert.True(t, state.LastUpdate.IsZero())
}

func TestRunPassRejectsOverlap(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0), block: make(chan struct{})}
	s, _ := newTestScheduler(t, runner)

	done := make(chan error)
	go func() {
		_, err := s.RunPass(context.Background(), controllers.PassRequest{Mode: controllers.UpdateFull})
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Status().Running }, time.Second, 5*time.Millisecond)

	_, err := s.RunPass(context.Background(), controllers.PassRequest{Mode: controllers.UpdateDelta})
	assert.True(t, errors.Is(err, ErrPassRunning))

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, runner.count())
}

func TestRunDueOnlyWhenDue(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0)}
	s, db := newTestScheduler(t, runner)

	// Never synced: due immediately
	s.runDue()
	assert.Equal(t, 1, runner.count())

	// Just synced: not due
	s.runDue()
	assert.Equal(t, 1, runner.count())

	runner.now = runner.now.Add(controllers.UpdateInterval)
	s.runDue()
	assert.Equal(t, 2, runner.count())

	state, err := controllers.LoadSyncState(db)
	require.NoError(t, err)
	assert.Equal(t, runner.now, state.LastUpdate)
}

func TestFatalPassHoldsScheduledRuns(t *testing.T) {
	runner := &fakeRunner{
		now: time.Unix(1700000000, 0),
		err: &controllers.BatchApplyError{Operations: 2, Err: models.ErrConstraintViolation},
	}
	s, db := newTestScheduler(t, runner)

	s.runDue()
	assert.Equal(t, 1, runner.count())

	state, err := controllers.LoadSyncState(db)
	require.NoError(t, err)
	assert.True(t, state.LastUpdate.IsZero())

	// Still due, but held back after the rejected batch
	s.runDue()
	assert.Equal(t, 1, runner.count())

	runner.now = runner.now.Add(controllers.UpdateInterval)
	s.runDue()
	assert.Equal(t, 2, runner.count())

	assert.Error(t, s.Status().Last.Err)
}

func TestTrigger(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0), block: make(chan struct{})}
	s, _ := newTestScheduler(t, runner)

	require.NoError(t, s.Trigger(controllers.PassRequest{Mode: controllers.UpdateFull}))
	assert.True(t, errors.Is(s.Trigger(controllers.PassRequest{Mode: controllers.UpdateDelta}), ErrPassRunning))

	close(runner.block)
	require.Eventually(t, func() bool {
		status := s.Status()
		return !status.Running && status.Last != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, controllers.UpdateFull, s.Status().Last.Request.Mode)
}

func TestStopWaitsForTriggeredPass(t *testing.T) {
	runner := &fakeRunner{now: time.Unix(1700000000, 0), block: make(chan struct{})}
	s, _ := newTestScheduler(t, runner)

	require.NoError(t, s.Trigger(controllers.PassRequest{Mode: controllers.UpdateFull}))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a pass was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the pass finished")
	}

	assert.Equal(t, 1, runner.count())
	assert.True(t, errors.Is(s.Trigger(controllers.PassRequest{Mode: controllers.UpdateDelta}), ErrPassRunning))
}
