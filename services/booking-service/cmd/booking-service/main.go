package main

import (
	"os"

	"github.com/md-rashed-zaman/agendafacil/libs/config"
	"github.com/spf13/cobra"
)

func main() {
	var configFile string
	root := &cobra.Command{
		Use:          "booking-service",
		Short:        "Appointment scheduling and availability engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}
			return config.Load(configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json or toml); env vars take precedence")

	root.AddCommand(serveCmd(), migrateCmd(), remindersCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
