package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/types"
)

// cmdBug extracts a report from the last N collected messages
func (r *REPL) cmdBug(ctx context.Context, args []string) error {
	count := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid message count %q", args[0])
		}
		count = n
	}
	if r.preview != nil {
		return fmt.Errorf("report %s is still pending, /file or /cancel it first", r.preview.Report.ID)
	}

	preview, err := r.reporter.Prepare(ctx, reporter.Request{
		Source:       types.Source{ChannelID: ChannelID, UserID: r.user},
		Roles:        r.roles,
		Messages:     r.messages,
		MessageCount: count,
	})
	if err != nil {
		return err
	}

	r.preview = preview
	r.confirming = false
	fmt.Fprintln(r.out, reporter.RenderPreview(preview))
	fmt.Fprintln(r.out, "Use /file to create the issue or /cancel to discard it.")
	return nil
}

// cmdFile files the pending report. A second /file after a duplicate
// warning, or /file --confirm, confirms it.
func (r *REPL) cmdFile(ctx context.Context, args []string) error {
	if r.preview == nil {
		return fmt.Errorf("no pending report, run /bug first")
	}
	confirmed := r.confirming
	for _, a := range args {
		if a == "--confirm" {
			confirmed = true
		}
	}

	report, err := r.reporter.File(ctx, r.preview.Report.ID, r.user, confirmed)
	switch {
	case errors.Is(err, reporter.ErrConfirmationRequired):
		r.confirming = true
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "%s %v. Run /file again to confirm.\n", yellow("Warning:"), err)
		return nil
	case errors.Is(err, reporter.ErrPreviewExpired), errors.Is(err, reporter.ErrReportClosed):
		r.preview = nil
		r.confirming = false
		return err
	case err != nil:
		return err
	}

	r.preview = nil
	r.confirming = false
	r.messages = nil
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintln(r.out, green(reporter.RenderFiled(report)))
	return nil
}

func (r *REPL) cmdCancel(ctx context.Context, _ []string) error {
	if r.preview == nil {
		return fmt.Errorf("no pending report")
	}
	id := r.preview.Report.ID
	r.preview = nil
	r.confirming = false
	if _, err := r.reporter.Cancel(ctx, id, r.user); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Bug report cancelled.")
	return nil
}

func (r *REPL) cmdShow(context.Context, []string) error {
	if len(r.messages) == 0 {
		fmt.Fprintln(r.out, "No messages collected.")
		return nil
	}
	for i, m := range r.messages {
		fmt.Fprintf(r.out, "%3d  %s: %s\n", i+1, m.Author, m.Content)
	}
	return nil
}

func (r *REPL) cmdClear(context.Context, []string) error {
	r.messages = nil
	fmt.Fprintln(r.out, "Conversation cleared.")
	return nil
}

func (r *REPL) cmdHelp(context.Context, []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"/bug [N]", "Extract a report from the last N messages (default 20)"},
		{"/file [--confirm]", "File the pending report as a GitHub issue"},
		{"/cancel", "Discard the pending report"},
		{"/show", "List the collected conversation"},
		{"/clear", "Forget the collected conversation"},
		{"/help", "Show this help message"},
		{"/quit, /exit", "Exit the shell"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %-18s %s\n", green(c.name), c.desc)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Any other line is added to the conversation as 'author: message'.")
	return nil
}

func (r *REPL) cmdExit(context.Context, []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	return io.EOF
}
