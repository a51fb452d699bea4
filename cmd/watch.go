package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/jodi/services/whatsapp/internal/api"
	"example.com/jodi/services/whatsapp/internal/metrics"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Load exports on a fixed interval",
	Long: `Run the production load on a fixed interval against a directory of
exports. Replaces the external cron job: the dedup index and the export
cache make repeated runs over the same files cheap. Optionally exposes run
metrics and health over HTTP.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForLoad(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := migrate(db); err != nil {
		return err
	}

	collector := metrics.NewMetrics()
	svc, closeSvc := buildProductionService(cfg, db, collector)
	defer closeSvc()

	path := args[0]

	g.Go(func() error {
		log.Info().Dur("interval", cfg.Watch.Interval).Str("path", path).Msg("Starting scheduled loads")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Watch.Interval),
			gocron.NewTask(func() {
				summary, err := svc.LoadProduction(ctx, path)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled load failed")
					return
				}
				logSummary(summary)
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if cfg.Watch.MetricsAddress != "" {
		server := api.NewServer(cfg.Watch.MetricsAddress, collector)

		g.Go(func() error {
			return server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Watch error")
		return err
	}

	log.Info().Msg("Watch shutting down gracefully")
	return nil
}
