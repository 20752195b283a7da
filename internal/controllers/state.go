package controllers

import (
	"fmt"
	"time"

	"github.com/amaumene/seriesync/internal/models"
)

// UpdateInterval is the normal cadence of passes: the next pass is due this
// long after SyncState.LastUpdate.
const UpdateInterval = 30 * time.Minute

// acceleratedFailures is the number of consecutive failures that still get
// a shortened retry delay
const acceleratedFailures = 4

// SyncState is the state carried from one pass to the next
type SyncState struct {
	LastUpdate         time.Time // Last full-library update, possibly faked by backoff
	LastActivityUpdate time.Time // Server time of the last applied activity feed
	FailedCounter      int       // Consecutive failed passes
}

// NextRunAt returns when the next regular pass is due
func (s SyncState) NextRunAt() time.Time {
	return s.LastUpdate.Add(UpdateInterval)
}

// Due reports whether a regular pass should run at now
func (s SyncState) Due(now time.Time) bool {
	return !now.Before(s.NextRunAt())
}

// NextSyncState applies the result of a pass. On success the update time is
// now and the failure counter resets. On failure the update time is set in
// the past so the next pass is due after 4, 8, 16 then 32 minutes; from the
// fifth consecutive failure on the normal interval applies again.
func NextSyncState(state SyncState, result UpdateResult, now time.Time) SyncState {
	next := state

	if !result.Failed() {
		next.LastUpdate = now
		next.FailedCounter = 0
		return next
	}

	failed := state.FailedCounter
	if failed < 0 {
		failed = 0
	}

	if failed < acceleratedFailures {
		delay := time.Duration(1<<(failed+2)) * time.Minute
		next.LastUpdate = now.Add(-(UpdateInterval - delay))
	} else {
		next.LastUpdate = now
	}
	next.FailedCounter = failed + 1

	return next
}

// LoadSyncState reads the persisted state
func LoadSyncState(prefs Preferences) (SyncState, error) {
	lastUpdate, err := prefs.GetInt64(models.PrefLastUpdate, 0)
	if err != nil {
		return SyncState{}, err
	}
	lastActivity, err := prefs.GetInt64(models.PrefLastTraktUpdate, 0)
	if err != nil {
		return SyncState{}, err
	}
	failed, err := prefs.GetInt(models.PrefFailedCounter, 0)
	if err != nil {
		return SyncState{}, err
	}

	return SyncState{
		LastUpdate:         fromMillis(lastUpdate),
		LastActivityUpdate: fromMillis(lastActivity),
		FailedCounter:      failed,
	}, nil
}

// SaveSyncState persists the state
func SaveSyncState(prefs Preferences, state SyncState) error {
	if err := prefs.SetInt64(models.PrefLastUpdate, toMillis(state.LastUpdate)); err != nil {
		return fmt.Errorf("failed to save last update: %w", err)
	}
	if err := prefs.SetInt64(models.PrefLastTraktUpdate, toMillis(state.LastActivityUpdate)); err != nil {
		return fmt.Errorf("failed to save last activity update: %w", err)
	}
	if err := prefs.SetInt(models.PrefFailedCounter, state.FailedCounter); err != nil {
		return fmt.Errorf("failed to save failure counter: %w", err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
