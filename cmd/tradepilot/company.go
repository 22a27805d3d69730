package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/risk"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Report capital allocation across all agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		agents, err := config.LoadAllAgents(cfg.App.AgentsDir)
		if err != nil {
			return err
		}

		var total float64
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tASSET\tSTATUS\tALLOCATED")
		for _, a := range agents {
			total += a.Performance.AllocatedCapital
			fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\n",
				a.Agent.ID, a.Agent.Asset, a.Agent.Status, a.Performance.AllocatedCapital)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		maxDeployable := cfg.Company.MaxCapital * cfg.Company.MaxDeploymentPct
		fmt.Printf("\nTotal allocated: $%.2f\n", total)
		fmt.Printf("Max deployable:  $%.2f (%.0f%% of $%.2f)\n",
			maxDeployable, cfg.Company.MaxDeploymentPct*100, cfg.Company.MaxCapital)

		ok, reason := risk.ValidateCompanyCapital(agents, cfg.Company)
		if !ok {
			return fmt.Errorf("capital check failed: %s", reason)
		}
		fmt.Printf("Capital check:   OK (%s)\n", reason)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(companyCmd)
}
