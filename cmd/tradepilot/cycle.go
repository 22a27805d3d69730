package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/config"
)

var cycleDryRun bool

var cycleCmd = &cobra.Command{
	Use:   "cycle <agent-id>",
	Short: "Run a single trading cycle for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]

		agent, err := config.LoadAgentConfig(cfg.App.AgentsDir, agentID)
		if err != nil {
			return err
		}
		state, err := config.LoadAgentState(cfg.App.AgentsDir, agentID)
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg, cycleDryRun)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.runner.Run(cmd.Context(), agent, state)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	cycleCmd.Flags().BoolVar(&cycleDryRun, "dry-run", false, "simulate order execution without touching broker or state")
	rootCmd.AddCommand(cycleCmd)
}
