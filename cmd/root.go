package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "whatsapp-logs",
	Short: "Extract WhatsApp group membership events and load them into the warehouse",
	Long: `A loader that parses WhatsApp group-chat text exports, extracts
join/leave/added membership events, and loads them into PostgreSQL through
an SSH bastion tunnel with duplicate rows silently skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
