package cmd

import (
	"github.com/spf13/cobra"
	"video-chapters/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-chapters",
		Short: "lesson video chapters and quiz gate",
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(worker(config))
	rootCmd.AddCommand(migrate(config))
	rootCmd.AddCommand(author(config))
	return rootCmd
}
