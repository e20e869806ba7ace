package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "insightforge",
	Short:         "InsightForge analysis task orchestrator",
	Long:          "Accepts analysis requests, forwards them to the AI service through a job queue and records results delivered by webhook",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
