package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/seriesync/internal/metrics"
	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/amaumene/seriesync/internal/services/trakt"
	"github.com/sirupsen/logrus"
)

// BatchApplyError is returned when the local store rejects the batch built
// from the activity feed. Nothing of the batch was written and the pass must
// stop.
type BatchApplyError struct {
	Operations int
	Err        error
}

func (e *BatchApplyError) Error() string {
	return fmt.Sprintf("failed to apply batch of %d operations: %v", e.Operations, e.Err)
}

func (e *BatchApplyError) Unwrap() error {
	return e.Err
}

// ActivityOutcome is the result of one activity sync
type ActivityOutcome struct {
	Result   UpdateResult
	State    SyncState
	NewShows []PendingNewShow
	Applied  int
}

// ActivitySyncer pulls the activity feed and applies it to the store
type ActivitySyncer struct {
	provider     ActivityProvider
	store        Store
	prefs        Preferences
	connectivity Connectivity
	username     string
	logger       *logrus.Logger
}

// NewActivitySyncer creates an activity syncer for the given user
func NewActivitySyncer(provider ActivityProvider, store Store, prefs Preferences, connectivity Connectivity, username string, logger *logrus.Logger) *ActivitySyncer {
	return &ActivitySyncer{
		provider:     provider,
		store:        store,
		prefs:        prefs,
		connectivity: connectivity,
		username:     username,
		logger:       logger,
	}
}

// Sync fetches activity since state.LastActivityUpdate, or since now when it
// was never synced, and applies it as one batch. Recoverable problems give
// INCOMPLETE and leave the state unchanged. A rejected batch is returned as
// *BatchApplyError. On success LastActivityUpdate moves forward to the server
// time of the response.
func (s *ActivitySyncer) Sync(ctx context.Context, state SyncState, now time.Time) (ActivityOutcome, error) {
	outcome := ActivityOutcome{Result: ResultSilentSuccess, State: state}

	if s.provider == nil || !s.provider.HasValidCredentials() {
		s.logger.Debug("No activity credentials, skipping activity sync")
		return outcome, nil
	}

	if !s.connectivity.IsConnected(ctx) {
		s.logger.Warn("Network unreachable, skipping activity sync")
		outcome.Result = ResultIncomplete
		return outcome, nil
	}

	since := state.LastActivityUpdate
	if since.IsZero() {
		since = now
	}

	activity, err := s.provider.FetchActivity(ctx, since, s.username, trakt.EpisodeActions)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch activity")
		metrics.RecordFault("activity", fault.Kind(err))
		outcome.Result = ResultIncomplete
		return outcome, nil
	}
	if activity == nil || activity.Activity == nil {
		s.logger.Warn("Activity response has no activity list")
		metrics.RecordFault("activity", "empty")
		outcome.Result = ResultIncomplete
		return outcome, nil
	}

	autoAdd, err := s.prefs.GetBool(models.PrefAutoAddShows, true)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read auto-add preference, assuming enabled")
		autoAdd = true
	}

	ids, err := s.store.ListShowIDs()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list local shows")
		metrics.RecordFault("store", "read")
		outcome.Result = ResultIncomplete
		return outcome, nil
	}
	local := make(map[string]bool, len(ids))
	for _, id := range ids {
		local[id] = true
	}

	merged, err := MergeActivity(activity.Activity, local, autoAdd, s.store)
	if err != nil {
		s.logger.WithError(err).Error("Failed to merge activity")
		metrics.RecordFault("store", "read")
		outcome.Result = ResultIncomplete
		return outcome, nil
	}

	if err := s.store.ApplyBatch(merged.Ops); err != nil {
		return outcome, &BatchApplyError{Operations: len(merged.Ops), Err: err}
	}

	for _, op := range merged.Ops {
		metrics.RecordOperation(string(op.Kind))
	}

	if serverTime := activity.ServerTime(); serverTime.After(state.LastActivityUpdate) {
		outcome.State.LastActivityUpdate = serverTime
	}
	outcome.NewShows = merged.NewShows
	outcome.Applied = len(merged.Ops)

	s.logger.WithFields(logrus.Fields{
		"items":      len(activity.Activity),
		"operations": len(merged.Ops),
		"new_shows":  len(merged.NewShows),
	}).Info("Activity applied")

	return outcome, nil
}
