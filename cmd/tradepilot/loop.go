package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/loop"
	"github.com/tradepilot/tradepilot/internal/metrics"
	"github.com/tradepilot/tradepilot/internal/risk"
)

var (
	loopInterval  time.Duration
	loopMaxCycles int
	loopDryRun    bool
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Manage continuous trading loops",
}

var loopStartCmd = &cobra.Command{
	Use:   "start [agent-id...]",
	Short: "Run trading loops in the foreground until interrupted",
	Long: `Starts a trading loop for each named agent, or for every active
agent when none are named. Loops run until SIGINT or SIGTERM, or until
--max-cycles completed cycles per agent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := selectAgents(args)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			return fmt.Errorf("no active agents to start")
		}

		// Company-wide capital deployment is checked before anything runs.
		if ok, reason := risk.ValidateCompanyCapital(agents, cfg.Company); !ok {
			return fmt.Errorf("capital check failed: %s", reason)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, loopDryRun)
		if err != nil {
			return err
		}
		defer a.close()

		if cfg.Monitoring.EnableMetrics {
			srv := metrics.NewServer(cfg.Monitoring.PrometheusPort)
			if err := srv.Start(); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		var stateStore loop.StateStore
		if a.store != nil {
			stateStore = a.store
		}
		mgr := loop.NewManager(a.runner, stateStore, cfg.App.AgentsDir, a.timezone)
		defer mgr.StopAll()

		interval := loopInterval
		if interval <= 0 {
			interval = cfg.Loop.GetInterval()
		}

		for _, agent := range agents {
			if err := mgr.Start(ctx, agent, loop.StartOptions{
				Interval:  interval,
				MaxCycles: loopMaxCycles,
			}); err != nil {
				return err
			}
		}

		<-ctx.Done()
		return nil
	},
}

var loopStatusCmd = &cobra.Command{
	Use:   "status [agent-id]",
	Short: "Show persisted loop state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.New(cmd.Context(), cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("database required for loop status: %w", err)
		}
		defer store.Close()

		if len(args) == 1 {
			state, err := store.GetLoopState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLoopStates([]*db.LoopState{state})
			return nil
		}

		states, err := store.ListLoopStates(cmd.Context())
		if err != nil {
			return err
		}
		printLoopStates(states)
		return nil
	},
}

var loopStopCmd = &cobra.Command{
	Use:   "stop <agent-id>",
	Short: "Mark an agent's persisted loop state stopped",
	Long: `Marks the persisted loop state for an agent as stopped. Use this to
clean up state left behind by an unclean shutdown; a live foreground
loop is stopped with SIGINT.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.New(cmd.Context(), cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("database required for loop stop: %w", err)
		}
		defer store.Close()

		state, err := store.GetLoopState(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state.Status = loop.StatusStopped
		if err := store.UpsertLoopState(cmd.Context(), state); err != nil {
			return err
		}
		fmt.Printf("agent %s marked stopped\n", args[0])
		return nil
	},
}

var loopListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		agents, err := config.LoadAllAgents(cfg.App.AgentsDir)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tASSET\tSTATUS\tSTRATEGY\tCAPITAL")
		for _, a := range agents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t$%.2f\n",
				a.Agent.ID, a.Agent.Asset, a.Agent.Status, a.Strategy.Type, a.Performance.AllocatedCapital)
		}
		return w.Flush()
	},
}

// selectAgents resolves the loop targets: the named agents, or every
// active agent when none are named.
func selectAgents(ids []string) ([]*config.AgentConfig, error) {
	if len(ids) > 0 {
		agents := make([]*config.AgentConfig, 0, len(ids))
		for _, id := range ids {
			agent, err := config.LoadAgentConfig(cfg.App.AgentsDir, id)
			if err != nil {
				return nil, err
			}
			agents = append(agents, agent)
		}
		return agents, nil
	}

	all, err := config.LoadAllAgents(cfg.App.AgentsDir)
	if err != nil {
		return nil, err
	}
	var active []*config.AgentConfig
	for _, a := range all {
		if a.Agent.Status == config.AgentStatusActive {
			active = append(active, a)
		}
	}
	return active, nil
}

func printLoopStates(states []*db.LoopState) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSTATUS\tCYCLES\tLAST CYCLE\tERROR")
	for _, s := range states {
		lastCycle := "-"
		if s.LastCycleAt != nil {
			lastCycle = s.LastCycleAt.Format(time.RFC3339)
		}
		lastErr := ""
		if s.LastError != nil {
			lastErr = *s.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.AgentID, s.Status, s.CyclesCompleted, lastCycle, lastErr)
	}
	_ = w.Flush()
}

func init() {
	loopStartCmd.Flags().DurationVar(&loopInterval, "interval", 0, "seconds between cycles (default from config)")
	loopStartCmd.Flags().IntVar(&loopMaxCycles, "max-cycles", 0, "stop each agent after N completed cycles (0 = unlimited)")
	loopStartCmd.Flags().BoolVar(&loopDryRun, "dry-run", false, "simulate order execution")

	loopCmd.AddCommand(loopStartCmd, loopStatusCmd, loopStopCmd, loopListCmd)
	rootCmd.AddCommand(loopCmd)
}
