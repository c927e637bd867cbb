package main

import (
	"os"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:          "clinic-service",
		Short:        "Clinic scheduling backend: availability, bookings and session status",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(configFile)
			if path == "" {
				path = os.Getenv("CONFIG_FILE")
			}
			return config.LoadFile(path)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json, toml or .env); environment variables take precedence")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(healthcheckCmd())
	return root
}
