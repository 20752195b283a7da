package controllers

import (
	"context"

	"github.com/amaumene/seriesync/internal/metrics"
	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
)

// FollowUp runs the housekeeping that follows a refresh with updates: it
// rebuilds the title search index and caches the image base URL of the
// display configuration. Its failures never affect the pass result.
type FollowUp struct {
	store   Store
	prefs   Preferences
	display DisplayConfigProvider
	logger  *logrus.Logger
}

// NewFollowUp creates the follow-up step. display may be nil.
func NewFollowUp(store Store, prefs Preferences, display DisplayConfigProvider, logger *logrus.Logger) *FollowUp {
	return &FollowUp{store: store, prefs: prefs, display: display, logger: logger}
}

// Run performs the follow-up
func (f *FollowUp) Run(ctx context.Context) {
	count, err := f.store.RebuildSearchIndex(utils.NormalizeTitle)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to rebuild search index")
		metrics.RecordFault("search_index", "write")
	} else {
		f.logger.WithField("entries", count).Debug("Search index rebuilt")
	}

	if f.display == nil {
		return
	}

	cfg, err := f.display.Configuration(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to fetch display configuration")
		metrics.RecordFault("display_config", fault.Kind(err))
		cfg, _ = f.display.LastKnown()
	}
	if cfg == nil || cfg.Images.BaseURL == "" {
		return
	}

	if err := f.prefs.SetString(models.PrefTMDBBaseURL, cfg.Images.BaseURL); err != nil {
		f.logger.WithError(err).Warn("Failed to save image base URL")
	}
}
