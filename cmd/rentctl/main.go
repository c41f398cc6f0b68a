// Command rentctl is the operator CLI: schema migrations and platform admin
// provisioning. It reads the same environment as the API.
//
//	rentctl db up
//	rentctl db status
//	rentctl admin create --email ops@example.com --password '...'
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rentdesk/internal/adapters/observability"
	"rentdesk/internal/shared"
)

var cfg shared.Config

var rootCmd = &cobra.Command{
	Use:          "rentctl",
	Short:        "rentdesk operator tool",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = shared.Load()
		log.Logger = observability.NewLogger(cfg.AppEnv, "rentctl", cfg.LogLevel)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
