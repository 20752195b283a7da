package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/seriesync/internal/api"
	"github.com/amaumene/seriesync/internal/config"
	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/amaumene/seriesync/internal/scheduler"
	"github.com/amaumene/seriesync/internal/services/trakt"
	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "seriesync",
		Short:         "Keeps a local show library in sync with TheTVDB and Trakt",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run scheduled sync passes and the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve()
			},
		},
		newSyncCommand(),
		&cobra.Command{
			Use:   "auth",
			Short: "Authorize access to the Trakt account",
			RunE: func(cmd *cobra.Command, args []string) error {
				return authenticate(cmd.Context())
			},
		},
	)

	return root
}

func newSyncCommand() *cobra.Command {
	var mode, show string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := controllers.PassRequest{ShowID: show}
			if show != "" {
				req.Mode = controllers.UpdateAutoSingle
			} else {
				parsed, err := controllers.ParseUpdateType(mode)
				if err != nil {
					return err
				}
				req.Mode = parsed
			}
			return syncOnce(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "delta", "pass mode: delta or full")
	cmd.Flags().StringVar(&show, "show", "", "refresh a single show by TheTVDB id")

	return cmd
}

func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)
	return cfg, logger, nil
}

func serve() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	logger.Info("Starting seriesync")

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.watchChanges(ctx)

	sched := scheduler.NewScheduler(a.sync, a.db, cfg.FullSyncCron, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	deps := api.Dependencies{
		Stats:        a.db,
		Scheduler:    sched,
		Changes:      a.hub,
		Search:       a.search,
		Connectivity: a.probe,
		BreakerState: a.tvdb.BreakerState,
	}
	server := api.NewServer(cfg.ServerPort, deps, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("seriesync is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("seriesync stopped")
	return nil
}

func syncOnce(ctx context.Context, req controllers.PassRequest) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.NewScheduler(a.sync, a.db, "", logger)
	outcome, err := sched.RunPass(ctx, req)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"result":    outcome.Result.String(),
		"refreshed": outcome.Refresh.Updated,
		"new_shows": len(outcome.NewShows),
		"next_run":  outcome.State.NextRunAt(),
	}).Info("Sync finished")
	return nil
}

func authenticate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if !cfg.TraktEnabled() {
		return fmt.Errorf("TRAKT_CLIENT_ID, TRAKT_CLIENT_SECRET and TRAKT_USERNAME are required")
	}

	client, err := trakt.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Trakt client: %w", err)
	}

	return client.Authenticate(ctx, func(url, code string) {
		fmt.Printf("Open %s and enter the code %s\n", url, code)
	})
}
