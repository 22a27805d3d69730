package backtest

import (
	"fmt"
	"strings"
)

// FormatReport renders a finished run as a human-readable summary for
// the CLI.
func FormatReport(result *Result) string {
	run := result.Run

	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s\n", run.ID)
	fmt.Fprintf(&b, "  Symbol:          %s (%s)\n", run.Symbol, run.Timeframe)
	fmt.Fprintf(&b, "  Period:          %s to %s\n",
		run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Initial capital: $%.2f\n", run.InitialCapital)
	fmt.Fprintf(&b, "  Final equity:    $%.2f\n", run.FinalEquity)
	fmt.Fprintf(&b, "  Total return:    %.2f%%\n", run.TotalReturnPct)
	fmt.Fprintf(&b, "  Max drawdown:    %.2f%%\n", run.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Sharpe ratio:    %.2f\n", run.SharpeRatio)
	fmt.Fprintf(&b, "  Trades:          %d (win rate %.0f%%, avg PnL $%.2f)\n",
		run.TotalTrades, run.WinRate*100, run.AvgTradePnL)

	if len(result.Trades) > 0 {
		b.WriteString("\n  Trade log:\n")
		for _, t := range result.Trades {
			line := fmt.Sprintf("    %s  %-4s %.4f @ $%.2f",
				t.Timestamp.Format("2006-01-02 15:04"), t.Side, t.Quantity, t.Price)
			if t.Side == "sell" {
				line += fmt.Sprintf("  pnl $%.2f", t.PnL)
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}
