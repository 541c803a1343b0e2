package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/invweb/internal/web/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long:  `Run the HTTP gateway. Configuration comes from the environment, .env and WEB_CONFIG_FILE.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			return application.Run()
		},
	}
}
