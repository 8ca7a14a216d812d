package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive shell that plays the part of a chat channel",
	Long: `Start an interactive shell for trying the reporting flow without Discord.

Type conversation lines as 'author: message' (bare lines are yours), then
/bug to extract a preview and /file or /cancel to decide. Type /help in the
shell for all commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roles, _ := cmd.Flags().GetStringSlice("roles")
		ctx := context.Background()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := repl.New(&repl.Config{
			Reporter: a.service,
			User:     userID,
			Roles:    roles,
			Out:      cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		return r.Run(ctx)
	},
}

func init() {
	replCmd.Flags().StringSlice("roles", nil, "Roles presented to the BUG_COMMAND_ROLES check")
	rootCmd.AddCommand(replCmd)
}
