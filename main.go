package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaseW/MyGitHubNotification/Config"
	"github.com/BaseW/MyGitHubNotification/CreateNotification"
	"github.com/BaseW/MyGitHubNotification/Logger"
	"github.com/BaseW/MyGitHubNotification/Models"
	"github.com/BaseW/MyGitHubNotification/Repo"
	"github.com/BaseW/MyGitHubNotification/Scheduler"
	"github.com/BaseW/MyGitHubNotification/Server"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "mygithub-notification",
		Short:         "Post your open assigned GitHub issues to Slack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read when a variable is not set in the environment")

	rootCmd.AddCommand(newServeCommand(&envFile), newNotifyCommand(&envFile))
	return rootCmd
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the /mygithub slash command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loadConfigError := Config.Load(*envFile)
			if loadConfigError != nil {
				return loadConfigError
			}
			if validateError := cfg.Validate(true); validateError != nil {
				return validateError
			}
			logger := Logger.New(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func newNotifyCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send the notification once and exit",
		Long: `Notify fetches the open issues assigned to you, sorts them by priority label
and posts them to the Slack webhook. A failed delivery is logged, the exit code stays 0.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loadConfigError := Config.Load(*envFile)
			if loadConfigError != nil {
				return loadConfigError
			}
			if validateError := cfg.Validate(false); validateError != nil {
				return validateError
			}
			logger := Logger.New(cfg)

			var runRecorder CreateNotification.RunRecorder
			if cfg.DatabaseURL != "" {
				store, openStoreError := openStore(cmd.Context(), cfg.DatabaseURL)
				if openStoreError != nil {
					return openStoreError
				}
				defer store.Close()
				runRecorder = store
			}

			notifier, newNotifierError := CreateNotification.New(cfg, logger, runRecorder)
			if newNotifierError != nil {
				return newNotifierError
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.PipelineTimeout)
			defer cancel()
			notifier.CreateNotification(ctx, Models.TriggerCLI)
			return nil
		},
	}
}

func serve(ctx context.Context, cfg Config.Config, logger zerolog.Logger) error {
	var (
		runRecorder CreateNotification.RunRecorder
		runLister   Server.RunLister
		tickClaimer Scheduler.TickClaimer
	)
	if cfg.DatabaseURL != "" {
		store, openStoreError := openStore(ctx, cfg.DatabaseURL)
		if openStoreError != nil {
			return openStoreError
		}
		defer store.Close()
		runRecorder, runLister, tickClaimer = store, store, store
		logger.Info().Msg("notification run history enabled")
	}

	notifier, newNotifierError := CreateNotification.New(cfg, logger, runRecorder)
	if newNotifierError != nil {
		return newNotifierError
	}

	if cfg.NotificationSchedule != "" {
		scheduler, newSchedulerError := Scheduler.New(cfg.NotificationSchedule, cfg.PipelineTimeout, logger, notifier, tickClaimer)
		if newSchedulerError != nil {
			return newSchedulerError
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	handler := Server.NewHandler(cfg, logger, notifier, runLister)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveError := <-serveErrors:
		if !errors.Is(serveError, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", serveError)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownError := httpServer.Shutdown(shutdownCtx); shutdownError != nil {
		logger.Error().Err(shutdownError).Msg("main:serve#Error while shutting down the http server")
	}
	// notifications already accepted are finished before exiting
	handler.Wait()
	return nil
}

func openStore(ctx context.Context, databaseUrl string) (*Repo.Store, error) {
	dbPool, dbInitialisationError := Repo.InitDbPool(ctx, databaseUrl)
	if dbInitialisationError != nil {
		return nil, fmt.Errorf("failed to initialise DB: %w", dbInitialisationError)
	}
	store := Repo.NewStore(dbPool)
	if ensureSchemaError := store.EnsureSchema(ctx); ensureSchemaError != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create the notification_runs table: %w", ensureSchemaError)
	}
	return store, nil
}
