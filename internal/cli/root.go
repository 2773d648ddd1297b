package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	addr       string
	httpAddr   string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "quiz-arena",
		Short:        "Multiplayer quiz server over line-delimited JSON",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&addr, "addr", os.Getenv("QUIZ_ADDR"), "TCP address to listen on (overrides server.addr)")
	cmd.PersistentFlags().StringVar(&httpAddr, "http-addr", "", "WebSocket/metrics address (overrides server.http_addr)")
	cmd.AddCommand(NewStartCmd(&configPath, &addr, &httpAddr))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewTopicsCmd(&configPath))
	cmd.AddCommand(NewImportCmd(&configPath))
	return cmd
}
