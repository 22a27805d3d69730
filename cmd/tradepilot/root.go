package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tradepilot",
	Short: "Autonomous sentiment-driven trading agents",
	Long: `tradepilot runs per-asset trading agents that fuse news, Reddit and
SEC filing sentiment with technical analysis, validate every decision
against risk limits, and execute through a paper or live broker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Secrets come from .env in development; absence is fine.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
		return nil
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := config.NewLogger("cli")
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
}
