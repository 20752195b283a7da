package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
)

// AddShowController adds shows discovered in the activity feed by fetching
// their metadata
type AddShowController struct {
	store    Store
	provider MetadataProvider
	logger   *logrus.Logger
}

// NewAddShowController creates an add-show controller
func NewAddShowController(store Store, provider MetadataProvider, logger *logrus.Logger) *AddShowController {
	return &AddShowController{store: store, provider: provider, logger: logger}
}

// AddShows fetches and stores every show not yet in the library. A failing
// show does not stop the others; all failures are returned joined.
func (c *AddShowController) AddShows(ctx context.Context, shows []PendingNewShow) error {
	var errs []error
	added := 0

	for _, show := range shows {
		exists, err := c.store.HasShow(show.TvdbID)
		if err != nil {
			errs = append(errs, fmt.Errorf("show %s: %w", show.TvdbID, err))
			continue
		}
		if exists {
			continue
		}

		if err := c.provider.RefreshShow(ctx, show.TvdbID); err != nil {
			c.logger.WithError(err).WithField("show_id", show.TvdbID).Error("Failed to add show")
			errs = append(errs, fmt.Errorf("show %s: %w", show.TvdbID, err))
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"show_id": show.TvdbID,
			"title":   show.Title,
		}).Info("Added show")
		added++
	}

	if added > 0 {
		if _, err := c.store.RebuildSearchIndex(utils.NormalizeTitle); err != nil {
			errs = append(errs, fmt.Errorf("failed to rebuild search index: %w", err))
		}
	}

	return errors.Join(errs...)
}
