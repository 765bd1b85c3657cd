// Command rrcompanion runs the book-rank estimation engine.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nbunney/rrcompanion/internal/config"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "rrcompanion",
		Short:         "Estimate leaderboard ranks below the main list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv(config.EnvFile, configPath); err != nil {
					return err
				}
			}
			return logger.Init()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides "+config.EnvFile+")")
	rootCmd.AddCommand(newServeCmd(), newReplayCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// logger may not be initialized yet
		os.Stderr.WriteString("rrcompanion: " + err.Error() + "\n")
		os.Exit(1)
	}
}
