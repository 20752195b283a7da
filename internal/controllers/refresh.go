package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/seriesync/internal/metrics"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// triesPerShow is how many times one show is attempted per pass
const triesPerShow = 2

var errOffline = errors.New("network unreachable")

// RefreshState tracks the metadata refresh loop
type RefreshState int

const (
	RefreshNotStarted RefreshState = iota
	RefreshRunning
	RefreshCompleted
	RefreshAbortedNoNetwork
	RefreshCancelled
)

func (s RefreshState) String() string {
	switch s {
	case RefreshNotStarted:
		return "not_started"
	case RefreshRunning:
		return "running"
	case RefreshCompleted:
		return "completed"
	case RefreshAbortedNoNetwork:
		return "aborted_no_network"
	case RefreshCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RefreshReport summarises one run of the refresh loop
type RefreshReport struct {
	State     RefreshState
	Result    UpdateResult
	Selected  int      // Ids handed to the loop
	Attempted int      // Ids the loop got to
	Updated   int      // Ids refreshed successfully
	Failed    []string // Ids that failed both tries
}

// RefreshLoop refreshes the metadata of selected shows one after another
type RefreshLoop struct {
	provider     MetadataProvider
	connectivity Connectivity
	notifier     Notifier
	retryDelay   time.Duration
	logger       *logrus.Logger
}

// NewRefreshLoop creates a refresh loop
func NewRefreshLoop(provider MetadataProvider, connectivity Connectivity, notifier Notifier, logger *logrus.Logger) *RefreshLoop {
	return &RefreshLoop{
		provider:     provider,
		connectivity: connectivity,
		notifier:     notifier,
		retryDelay:   2 * time.Second,
		logger:       logger,
	}
}

// Run refreshes ids in order. A show that fails twice is skipped and makes
// the result INCOMPLETE. Losing connectivity aborts the loop without trying
// the remaining ids.
func (l *RefreshLoop) Run(ctx context.Context, ids []string) RefreshReport {
	report := RefreshReport{
		State:    RefreshNotStarted,
		Result:   ResultSilentSuccess,
		Selected: len(ids),
	}
	if len(ids) == 0 {
		report.State = RefreshCompleted
		return report
	}

	span := trace.SpanFromContext(ctx)
	report.State = RefreshRunning
	l.logger.WithField("shows", len(ids)).Info("Refreshing show metadata")

	for _, id := range ids {
		if ctx.Err() != nil {
			return l.cancelled(report, id)
		}

		err := l.refreshWithRetry(ctx, id)

		switch {
		case errors.Is(err, errOffline):
			l.logger.WithField("show_id", id).Warn("Network lost, aborting metadata refresh")
			report.State = RefreshAbortedNoNetwork
			report.Result = ResultIncomplete
			return report
		case err != nil && ctx.Err() != nil:
			return l.cancelled(report, id)
		}

		report.Attempted++
		if err != nil {
			l.logger.WithError(err).WithField("show_id", id).Error("Failed to refresh show")
			metrics.RecordShowRefresh(false)
			metrics.RecordFault("metadata", fault.Kind(err))
			report.Failed = append(report.Failed, id)
			report.Result = ResultIncomplete
			continue
		}

		metrics.RecordShowRefresh(true)
		span.AddEvent("show refreshed", trace.WithAttributes(attribute.String("show_id", id)))
		report.Updated++
		l.notifier.NotifyEpisodesChanged("show " + id + " refreshed")
	}

	report.State = RefreshCompleted
	l.logger.WithFields(logrus.Fields{
		"updated": report.Updated,
		"failed":  len(report.Failed),
	}).Info("Show metadata refresh finished")

	return report
}

func (l *RefreshLoop) cancelled(report RefreshReport, id string) RefreshReport {
	l.logger.WithField("show_id", id).Warn("Metadata refresh cancelled")
	report.State = RefreshCancelled
	report.Result = ResultCancelled
	return report
}

// refreshWithRetry tries a show up to triesPerShow times, checking
// connectivity before every try
func (l *RefreshLoop) refreshWithRetry(ctx context.Context, id string) error {
	operation := func() error {
		if !l.connectivity.IsConnected(ctx) {
			return backoff.Permanent(errOffline)
		}
		return l.provider.RefreshShow(ctx, id)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.retryDelay), triesPerShow-1),
		ctx,
	)

	return backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"show_id": id,
			"wait":    wait,
		}).Warn("Show refresh failed, retrying")
	})
}
