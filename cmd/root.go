package cmd

import (
	"study-pipeline/config"

	"github.com/spf13/cobra"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "study-pipeline",
		Short:         "transcribe, extract and summarize study uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(process(config))
	rootCmd.AddCommand(migrate(config))
	return rootCmd
}
