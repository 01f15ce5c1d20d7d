package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mqsd",
		Short: "mqsd - multi-tenant HTTP message queue service",
		Long:  "mqsd runs the MQS message-queue daemon: queue CRUD, publish, receive, and delete over HTTP.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (optional, env vars override)")

	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
