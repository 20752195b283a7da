package main

import (
	"context"
	"fmt"

	"github.com/amaumene/seriesync/internal/config"
	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/notify"
	"github.com/amaumene/seriesync/internal/services/network"
	"github.com/amaumene/seriesync/internal/services/tmdb"
	"github.com/amaumene/seriesync/internal/services/trakt"
	"github.com/amaumene/seriesync/internal/services/tvdb"
	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
)

// app holds the wired components shared by the commands
type app struct {
	db     *models.Database
	hub    *notify.Hub
	probe  *network.Probe
	tvdb   *tvdb.Client
	sync   *controllers.SyncController
	search *controllers.SearchController
	logger *logrus.Logger
}

func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.WithField("path", cfg.DatabaseFile).Info("Database initialized")

	if err := db.SetBool(models.PrefAutoAddShows, cfg.AutoAddShows); err != nil {
		db.Close()
		return nil, err
	}

	ignore, err := utils.LoadIgnoreList(cfg.IgnoreFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load ignore list, continuing without it")
		ignore = utils.NewIgnoreList()
	}

	tvdbClient, err := tvdb.NewClient(cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize TheTVDB client: %w", err)
	}

	// A nil provider turns the activity step into a no-op
	var activityProvider controllers.ActivityProvider
	if cfg.TraktEnabled() {
		traktClient, err := trakt.NewClient(cfg, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize Trakt client: %w", err)
		}
		if !traktClient.HasValidCredentials() {
			logger.Warn("No Trakt token, run 'seriesync auth' to enable activity sync")
		}
		activityProvider = traktClient
	} else {
		logger.Info("Trakt not configured, activity sync disabled")
	}

	var display controllers.DisplayConfigProvider
	if cfg.TMDBAPIKey != "" {
		display = tmdb.NewClient(cfg, logger)
	}

	hub := notify.NewHub(logger)
	probe := network.NewProbe(cfg.ConnectivityProbe, logger)

	updater := controllers.NewShowUpdater(tvdbClient, db, logger)
	syncCtrl := controllers.NewSyncController(
		controllers.NewShowSelector(db, cfg.ShowStaleAfter),
		controllers.NewRefreshLoop(updater, probe, hub, logger),
		controllers.NewActivitySyncer(activityProvider, db, db, probe, cfg.TraktUsername, logger),
		controllers.NewFollowUp(db, db, display, logger),
		controllers.NewAddShowController(db, updater, logger),
		ignore,
		hub,
		logger,
	)
	logger.Info("Controllers initialized")

	return &app{
		db:     db,
		hub:    hub,
		probe:  probe,
		tvdb:   tvdbClient,
		sync:   syncCtrl,
		search: controllers.NewSearchController(db, logger),
		logger: logger,
	}, nil
}

// watchChanges logs change signals until ctx is done
func (a *app) watchChanges(ctx context.Context) {
	events, unsubscribe := a.hub.Subscribe(16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			a.logger.WithField("reason", event.Reason).Debug("Episode data changed")
		}
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
