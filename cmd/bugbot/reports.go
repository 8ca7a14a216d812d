package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a bug report preview from a saved conversation",
	Long: `Extract a bug report preview from a conversation saved as JSON:

  [{"id": "1180", "author": "alice", "content": "the mapper crashes"}, ...]

The window is the last --count messages. When --link points at a message and the
messages carry an "id" field, the window starts at the linked message instead:
the linked message plus the next count-1 messages. Without ids the link is only
recorded on the issue.

The preview is stored as pending. File it with 'bugbot file <id>' or pass --file
to file it straight away.

Examples:
  bugbot extract --conversation chat.json
  bugbot extract --conversation chat.json --count 10 --file
  bugbot extract --conversation chat.json --link https://discord.com/channels/1/2/3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("conversation")
		count, _ := cmd.Flags().GetInt("count")
		fileNow, _ := cmd.Flags().GetBool("file")
		link, _ := cmd.Flags().GetString("link")

		messages, err := readConversation(path)
		if err != nil {
			return err
		}

		src := types.Source{ChannelID: "cli", UserID: userID, DiscordLink: link}
		if _, channel, messageID, ok := reporter.ParseMessageLink(link); ok {
			src.ChannelID = fmt.Sprint(channel)
			window, found, err := reporter.LinkedWindow(messages, messageID, count)
			if err != nil {
				return err
			}
			if found {
				messages = window
			}
		}

		ctx := context.Background()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		preview, err := a.service.Prepare(ctx, reporter.Request{
			Source:       src,
			Messages:     messages,
			MessageCount: count,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reporter.RenderPreview(preview))
		if len(preview.DroppedLabels) > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(out, "%s labels not in repository: %v\n", yellow("!"), preview.DroppedLabels)
		}
		if !fileNow {
			fmt.Fprintf(out, "Preview expires at %s. File with: bugbot file %s\n",
				preview.ExpiresAt.Local().Format(time.Kitchen), preview.Report.ID)
			return nil
		}
		return fileReport(ctx, cmd, a.service, preview.Report.ID, false)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List bug report previews awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		status := types.ReportPending
		if all {
			status = ""
		}
		reports, err := store.ListReports(ctx, status)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(reports) == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(out, "%s No reports\n", green("✓"))
			return nil
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, r := range reports {
			fmt.Fprintf(out, "%s  %-9s %s  %s\n", cyan(r.ID), r.Status, r.CreatedAt.Local().Format(time.DateTime), r.Title())
			if r.IssueURL != "" {
				fmt.Fprintf(out, "    %s\n", r.IssueURL)
			}
		}
		return nil
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <report-id>",
	Short: "File a pending bug report as a GitHub issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		ctx := context.Background()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return fileReport(ctx, cmd, a.service, args[0], confirm)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <report-id>",
	Short: "Discard a pending bug report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.service.Cancel(ctx, args[0], userID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Bug report cancelled.")
		return nil
	},
}

func fileReport(ctx context.Context, cmd *cobra.Command, svc *reporter.Service, id string, confirm bool) error {
	report, err := svc.File(ctx, id, userID, confirm)
	if errors.Is(err, reporter.ErrConfirmationRequired) {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v. Run: bugbot file %s --confirm\n", yellow("⚠"), err, id)
		return nil
	}
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintln(cmd.OutOrStdout(), green(reporter.RenderFiled(report)))
	return nil
}

func readConversation(path string) ([]types.Message, error) {
	if path == "" {
		return nil, fmt.Errorf("--conversation is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	var messages []types.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", path, err)
	}
	return messages, nil
}

func init() {
	extractCmd.Flags().String("conversation", "", "JSON file with the conversation, oldest message first")
	extractCmd.Flags().Int("count", 0, "Messages to analyze, from the end or from the linked message (default 20, max 100)")
	extractCmd.Flags().Bool("file", false, "File the issue immediately after extraction")
	extractCmd.Flags().String("link", "", "Discord message link; recorded on the issue and, when messages have ids, starts the window")
	pendingCmd.Flags().Bool("all", false, "Include filed, cancelled and expired reports")
	fileCmd.Flags().Bool("confirm", false, "File even though a high-confidence duplicate exists")

	rootCmd.AddCommand(extractCmd, pendingCmd, fileCmd, cancelCmd)
}
