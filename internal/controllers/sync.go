package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/seriesync/internal/metrics"
	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/amaumene/seriesync/internal/controllers")

// PassRequest describes one sync pass
type PassRequest struct {
	Mode   UpdateType
	ShowID string // Only for UpdateAutoSingle
}

// PassOutcome is the result of one sync pass
type PassOutcome struct {
	Result   UpdateResult
	State    SyncState
	Refresh  RefreshReport
	NewShows []PendingNewShow
	Duration time.Duration
}

// SyncController runs sync passes: metadata refresh, follow-up, activity
// merge, backoff bookkeeping and adding newly discovered shows
type SyncController struct {
	selector  *ShowSelector
	refresher *RefreshLoop
	activity  *ActivitySyncer
	followUp  *FollowUp
	adder     ShowAdder
	ignore    *utils.IgnoreList
	notifier  Notifier
	clock     func() time.Time
	logger    *logrus.Logger
}

// NewSyncController creates a new sync controller
func NewSyncController(selector *ShowSelector, refresher *RefreshLoop, activity *ActivitySyncer, followUp *FollowUp, adder ShowAdder, ignore *utils.IgnoreList, notifier Notifier, logger *logrus.Logger) *SyncController {
	return &SyncController{
		selector:  selector,
		refresher: refresher,
		activity:  activity,
		followUp:  followUp,
		adder:     adder,
		ignore:    ignore,
		notifier:  notifier,
		clock:     time.Now,
		logger:    logger,
	}
}

// Run performs one pass starting from state and returns the state to persist.
// Single-show passes only refresh that show and return state unchanged. The
// only error returned is *BatchApplyError, in which case state is unchanged
// and no new shows are added. Observers are notified whatever the outcome.
func (c *SyncController) Run(ctx context.Context, req PassRequest, state SyncState) (outcome PassOutcome, err error) {
	start := time.Now()
	now := c.clock()

	ctx, span := tracer.Start(ctx, "sync.pass", trace.WithAttributes(attribute.String("mode", req.Mode.String())))
	defer span.End()

	outcome = PassOutcome{Result: ResultSilentSuccess, State: state}

	defer func() {
		outcome.Duration = time.Since(start)
		c.notifier.NotifyEpisodesChanged("sync pass " + req.Mode.String() + " finished")
		metrics.RecordPass(req.Mode.String(), outcome.Result.String(), outcome.Duration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("result", outcome.Result.String()))
	}()

	log := c.logger.WithField("mode", req.Mode.String())
	log.Info("Starting sync pass")

	ids, selectErr := c.selector.SelectShowsToUpdate(req.Mode, now, req.ShowID)
	if selectErr != nil {
		log.WithError(selectErr).Error("Failed to select shows to update")
		metrics.RecordFault("store", "read")
		outcome.Result = ResultError
	} else {
		outcome.Refresh = c.refresher.Run(ctx, ids)
		outcome.Result = outcome.Result.Merge(outcome.Refresh.Result)
	}

	if req.Mode == UpdateAutoSingle {
		log.WithField("result", outcome.Result.String()).Info("Single show pass finished")
		return outcome, nil
	}

	if len(ids) > 0 && outcome.Refresh.Updated > 0 && c.followUp != nil {
		c.followUp.Run(ctx)
	}

	activity, activityErr := c.activity.Sync(ctx, state, now)
	if activityErr != nil {
		var batchErr *BatchApplyError
		if errors.As(activityErr, &batchErr) {
			log.WithError(activityErr).Error("Activity batch rejected, aborting pass")
		}
		outcome.Result = ResultError
		return outcome, activityErr
	}
	outcome.Result = outcome.Result.Merge(activity.Result)

	outcome.State = NextSyncState(activity.State, outcome.Result, now)
	metrics.ConsecutiveFailures.Set(float64(outcome.State.FailedCounter))

	outcome.NewShows = c.filterIgnored(activity.NewShows)
	if len(outcome.NewShows) > 0 && c.adder != nil {
		metrics.NewShowsTotal.Add(float64(len(outcome.NewShows)))
		if addErr := c.adder.AddShows(ctx, outcome.NewShows); addErr != nil {
			log.WithError(addErr).Warn("Failed to add some new shows")
		}
	}

	log.WithFields(logrus.Fields{
		"result":    outcome.Result.String(),
		"refreshed": outcome.Refresh.Updated,
		"new_shows": len(outcome.NewShows),
		"failures":  outcome.State.FailedCounter,
		"next_run":  outcome.State.NextRunAt(),
	}).Info("Sync pass finished")

	return outcome, nil
}

func (c *SyncController) filterIgnored(shows []PendingNewShow) []PendingNewShow {
	var kept []PendingNewShow
	for _, show := range shows {
		if ignored, reason := c.ignore.IsIgnored(show.TvdbID, show.Title); ignored {
			c.logger.WithFields(logrus.Fields{
				"show_id": show.TvdbID,
				"title":   show.Title,
				"reason":  reason,
			}).Info("Not adding ignored show")
			continue
		}
		kept = append(kept, show)
	}
	return kept
}
