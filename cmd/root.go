package cmd

import (
	"github.com/spf13/cobra"

	"session-capture/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{Use: "session-capture"}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(reassemble(config))
	rootCmd.AddCommand(record(config))
	return rootCmd
}
