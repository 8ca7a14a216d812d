package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/deduplication"
	"github.com/mudlet/bugbot/internal/labels"
	"github.com/mudlet/bugbot/internal/types"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords <text>",
	Short: "Show the search keywords extracted from text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("max")
		keywords := deduplication.ExtractKeywords(strings.Join(args, " "), limit)
		if len(keywords) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no keywords)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keywords, " "))
		return nil
	},
}

var similarityCmd = &cobra.Command{
	Use:   "similarity <a> <b>",
	Short: "Score how similar two issue titles are",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score := deduplication.Similarity(args[0], args[1])
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f open=%s closed=%s\n", score,
			cfg.Dedup.Tier(score, types.StateOpen), cfg.Dedup.Tier(score, types.StateClosed))
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels <text>",
	Short: "Detect labels for a conversation",
	Long: `Detect labels for a conversation using the label pattern table.

Examples:
  bugbot labels "the mapper crashes on Windows 11"

  # Keep only labels the repository defines
  bugbot labels --valid "mapper bug,OS:Windows" "the mapper crashes on Windows 11"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		valid, _ := cmd.Flags().GetStringSlice("valid")

		classifier, err := labels.LoadClassifier(cfg.LabelPatternsPath)
		if err != nil {
			return err
		}
		detected := classifier.Detect(strings.Join(args, " "))

		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("valid") {
			yellow := color.New(color.FgYellow).SprintFunc()
			for _, l := range labels.Dropped(detected, valid) {
				fmt.Fprintf(out, "%s dropping label not in repository: %s\n", yellow("!"), l)
			}
			detected = labels.ValidateLabels(detected, valid)
		}
		for _, l := range detected {
			fmt.Fprintln(out, l)
		}
		return nil
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Search GitHub for issues similar to a report",
	Long: `Search the configured repository for issues similar to a report title and steps.

Examples:
  bugbot duplicates --title "Mapper crashes when adding a room" \
    --step "Open the mapper" --step "Add a room"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		steps, _ := cmd.Flags().GetStringArray("step")
		limit, _ := cmd.Flags().GetInt("max")
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("--title is required")
		}

		client, err := newGitHubClient()
		if err != nil {
			return err
		}
		detector, err := deduplication.NewDetector(client, cfg.Dedup)
		if err != nil {
			return err
		}

		results, err := detector.FindDuplicates(context.Background(), title, steps, limit)
		if err != nil {
			return err
		}
		printDuplicates(cmd, results)
		return nil
	},
}

func printDuplicates(cmd *cobra.Command, results []types.DuplicateResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(out, "%s No similar issues found\n", green("✓"))
		return
	}

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, d := range results {
		tag := string(d.Confidence)
		switch d.Confidence {
		case types.ConfidenceHigh:
			tag = red(tag)
		case types.ConfidenceMedium:
			tag = yellow(tag)
		}
		fmt.Fprintf(out, "%-6s %s %s (%s)\n  %s\n", tag, cyan(fmt.Sprintf("#%d", d.Number)), d.Title, d.State, d.URL)
	}
}

func init() {
	keywordsCmd.Flags().Int("max", deduplication.DefaultMaxKeywords, "Maximum keywords to extract")
	labelsCmd.Flags().StringSlice("valid", nil, "Comma separated labels the repository defines")
	duplicatesCmd.Flags().String("title", "", "Report title")
	duplicatesCmd.Flags().StringArray("step", nil, "Reproduction step (repeatable)")
	duplicatesCmd.Flags().Int("max", 0, "Maximum candidates to request (0 uses BUGBOT_DEDUP_MAX_RESULTS)")

	rootCmd.AddCommand(keywordsCmd, similarityCmd, labelsCmd, duplicatesCmd)
}
