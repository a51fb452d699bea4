package cmd

import (
	"context"

	"example.com/jodi/services/whatsapp/internal/metrics"
	"example.com/jodi/services/whatsapp/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Parse exports and report event counts without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc := buildLocalService(cfg, metrics.NewMetrics())

	ext, err := svc.Extract(context.Background(), args[0])
	if err != nil {
		return err
	}

	joined, left, added := 0, 0, 0
	for _, ev := range ext.Events {
		switch ev.EventType {
		case models.EventJoined:
			joined++
		case models.EventLeft:
			left++
		case models.EventAdded:
			added++
		}
	}

	log.Info().
		Int("files", ext.Files).
		Int("events", len(ext.Events)).
		Int("joined", joined).
		Int("left", left).
		Int("added", added).
		Int("lines_skipped", ext.LinesSkipped).
		Msg("Scan complete")

	return nil
}
