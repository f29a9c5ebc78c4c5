package cmd

import (
	"github.com/spf13/cobra"
	"video-chapters/config"
	server2 "video-chapters/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}

func worker(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "consume chapter change events",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunWorker(config)
		},
	}
}

func migrate(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunMigrate(config)
		},
	}
}
