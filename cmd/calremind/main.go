// Command calremind runs the calendar-reminder service: the Sync Loop and
// the Reminder Loop, as two goroutines sharing one cancellation context
// (spec.md §5).
//
// The root-command wiring follows cbrasser-cbraapps/cbratasks/main.go's
// cobra shape; the two-loop errgroup.WithContext is grounded on
// artpromedia-email/services/ai-assistant/embedding/service.go's use of
// golang.org/x/sync/errgroup.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"calremind/caldav"
	"calremind/dispatch"
	"calremind/internal/config"
	"calremind/scheduler"
	"calremind/store"
	"calremind/sync"
)

func main() {
	var configPath string
	var webhookURL string

	rootCmd := &cobra.Command{
		Use:   "calremind",
		Short: "Calendar reminder service",
		Long:  "calremind fetches CalDAV calendars, expands their recurrences, and fires reminders into chat rooms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, webhookURL)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file")
	rootCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "chat transport webhook URL")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, webhookURL string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "calremind").Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading configuration")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to database")
	}
	defer pool.Close()

	pgStore := store.NewPGStore(pool)

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	fetcher := caldav.NewFetcher(httpClient)
	sender := dispatch.NewHTTPSender(httpClient, webhookURL)
	sink := dispatch.New(sender, pgStore.GetUserMappings, logger)

	syncLoop := sync.New(fetcher.Fetch, pgStore, cfg.Horizon(), cfg.SyncPeriod, logger)
	reminderLoop := scheduler.New(pgStore.GetNextReminders, sink.Dispatch, scheduler.RealClock{}, cfg.ReminderRefreshPeriod, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncLoop.Run(gctx) })
	g.Go(func() error { return reminderLoop.Run(gctx) })

	logger.Info().Msg("calremind started")
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}
