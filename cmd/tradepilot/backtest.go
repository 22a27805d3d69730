package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/pkg/backtest"
)

var (
	btStart         string
	btEnd           string
	btTimeframe     string
	btCapital       float64
	btMinConfidence float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest <agent-id>",
	Short: "Replay stored bars through an agent's strategy",
	Long: `Runs the agent's decision pipeline against historical bars and
sentiment stored in the database, then saves the run and prints a
performance report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := config.LoadAgentConfig(cfg.App.AgentsDir, args[0])
		if err != nil {
			return err
		}

		from, err := time.Parse("2006-01-02", btStart)
		if err != nil {
			return fmt.Errorf("invalid --start date: %w", err)
		}
		to, err := time.Parse("2006-01-02", btEnd)
		if err != nil {
			return fmt.Errorf("invalid --end date: %w", err)
		}
		if !to.After(from) {
			return fmt.Errorf("--end must be after --start")
		}
		// Include the whole end day.
		to = to.Add(24*time.Hour - time.Second)

		timeframe := btTimeframe
		if timeframe == "" {
			timeframe = agent.Strategy.Timeframe
		}
		capital := btCapital
		if capital <= 0 {
			capital = agent.Performance.AllocatedCapital
		}
		minConfidence := btMinConfidence
		if minConfidence <= 0 {
			minConfidence = agent.Risk.MinConfidence
		}

		store, err := db.New(cmd.Context(), cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("database required for backtesting: %w", err)
		}
		defer store.Close()

		symbol := agent.Agent.Asset
		bars, err := store.GetBars(cmd.Context(), symbol, timeframe, from, to)
		if err != nil {
			return err
		}

		records, err := store.GetSentimentRange(cmd.Context(), symbol, from, to)
		if err != nil {
			return err
		}
		sentiments := backtest.SentimentFromRecords(records)

		svc := backtest.NewService(store)
		result, err := svc.RunAndStore(cmd.Context(), backtest.Config{
			Symbol:              symbol,
			Timeframe:           timeframe,
			InitialCapital:      capital,
			MinConfidence:       minConfidence,
			MaxPositionFraction: agent.Risk.MaxPositionSize,
			StopLossFraction:    agent.Risk.StopLossFraction,
		}, bars, sentiments)
		if err != nil {
			return err
		}

		fmt.Print(backtest.FormatReport(result))
		return nil
	},
}

func init() {
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTimeframe, "timeframe", "", "bar timeframe (default: agent strategy timeframe)")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", 0, "starting capital (default: agent allocated capital)")
	backtestCmd.Flags().Float64Var(&btMinConfidence, "min-confidence", 0, "confidence gate (default: agent risk setting)")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(backtestCmd)
}
