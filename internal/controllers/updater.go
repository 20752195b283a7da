package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/amaumene/seriesync/internal/services/tvdb"
	"github.com/sirupsen/logrus"
)

// SeriesSource serves show metadata with the full episode listing
type SeriesSource interface {
	GetSeriesEpisodes(ctx context.Context, id string) (*tvdb.SeriesEpisodes, error)
}

// MetadataWriter stores refreshed show metadata
type MetadataWriter interface {
	SaveShowMetadata(show *models.Show, episodes []models.Episode, refreshedAt time.Time) error
}

// ShowUpdater refreshes one show from TheTVDB into the local store
type ShowUpdater struct {
	source SeriesSource
	db     MetadataWriter
	clock  func() time.Time
	logger *logrus.Logger
}

// NewShowUpdater creates a show updater
func NewShowUpdater(source SeriesSource, db MetadataWriter, logger *logrus.Logger) *ShowUpdater {
	return &ShowUpdater{
		source: source,
		db:     db,
		clock:  time.Now,
		logger: logger,
	}
}

// RefreshShow fetches the show and its episodes and saves them, keeping the
// watched and collected state of episodes already stored
func (u *ShowUpdater) RefreshShow(ctx context.Context, id string) error {
	series, err := u.source.GetSeriesEpisodes(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch show %s: %w", id, err)
	}
	if series.Series.Name == "" {
		return fmt.Errorf("%w: show %s has no title", fault.ErrEmptyPayload, id)
	}

	episodes := make([]models.Episode, 0, len(series.Episodes))
	for _, ep := range series.Episodes {
		aired, err := ep.AiredAt()
		if err != nil {
			return fmt.Errorf("show %s S%02dE%02d: %w", id, ep.SeasonNumber, ep.Number, err)
		}
		episodes = append(episodes, models.Episode{
			Season:     ep.SeasonNumber,
			Number:     ep.Number,
			Title:      ep.Name,
			FirstAired: aired,
		})
	}

	show := &models.Show{TvdbID: id, Title: series.Series.Name}
	if err := u.db.SaveShowMetadata(show, episodes, u.clock()); err != nil {
		return fmt.Errorf("failed to save show %s: %w", id, err)
	}

	u.logger.WithFields(logrus.Fields{
		"show_id":  id,
		"title":    show.Title,
		"episodes": len(episodes),
	}).Debug("Show metadata saved")

	return nil
}
