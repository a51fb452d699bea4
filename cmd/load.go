package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/jodi/services/whatsapp/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	loadLocal     bool
	loadBatchSize int
)

var loadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Parse exports and load membership events",
	Long: `Parse a WhatsApp export file, or a directory of .txt exports, and load
the extracted membership events.

By default identifiers are hashed and events are inserted into PostgreSQL
through the bastion tunnel, with duplicate rows silently skipped. With
--local the events are written to the debug CSV instead, identifiers in
clear text, and no database connection is made.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVar(&loadLocal, "local", false, "write clear-text events to the debug CSV instead of the database")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "override the configured insert batch size")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if loadBatchSize > 0 {
		cfg.Loader.BatchSize = loadBatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	collector := metrics.NewMetrics()

	if loadLocal {
		svc := buildLocalService(cfg, collector)
		summary, err := svc.LoadLocal(ctx, args[0])
		if err != nil {
			return err
		}
		logSummary(summary)
		return nil
	}

	if err := cfg.ValidateForLoad(); err != nil {
		return err
	}

	db, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := migrate(db); err != nil {
		return err
	}

	svc, closeSvc := buildProductionService(cfg, db, collector)
	defer closeSvc()

	summary, err := svc.LoadProduction(ctx, args[0])
	if err != nil {
		return err
	}
	logSummary(summary)
	return nil
}
