package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/cost"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM token usage against the budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := cost.ReadState(cfg.Cost.PersistStatePath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if state == nil {
			fmt.Fprintln(out, "No LLM usage recorded")
			return nil
		}

		hourly := state.HourlyTokensUsed
		windowEnd := state.WindowStartTime.Add(cfg.Cost.ResetInterval)
		if time.Now().After(windowEnd) {
			hourly = 0
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Fprintf(out, "%s\n", cyan("LLM usage"))
		if cfg.Cost.MaxTokensPerHour > 0 {
			fmt.Fprintf(out, "  This window: %d / %d tokens\n", hourly, cfg.Cost.MaxTokensPerHour)
		} else {
			fmt.Fprintf(out, "  This window: %d tokens (unlimited)\n", hourly)
		}
		fmt.Fprintf(out, "  Total:       %d tokens, $%.4f over %d calls\n", state.TotalTokensUsed, state.TotalCostUsed, state.Calls)

		providers := make([]string, 0, len(state.ProviderTokensUsed))
		for p := range state.ProviderTokensUsed {
			providers = append(providers, p)
		}
		sort.Strings(providers)
		for _, p := range providers {
			fmt.Fprintf(out, "  %-12s %d tokens\n", p+":", state.ProviderTokensUsed[p])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
