// Package repl is an interactive shell that collects a conversation line by
// line and runs the bug report flow on it, standing in for a chat channel.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/types"
)

// ChannelID is the source channel recorded for reports filed from the shell
const ChannelID = "repl"

// Reporter is the part of reporter.Service the shell drives
type Reporter interface {
	Prepare(ctx context.Context, req reporter.Request) (*reporter.Preview, error)
	File(ctx context.Context, reportID, userID string, confirmed bool) (*types.BugReport, error)
	Cancel(ctx context.Context, reportID, userID string) (*types.BugReport, error)
}

// CommandHandler handles a specific command
type CommandHandler func(ctx context.Context, args []string) error

// Config holds REPL configuration
type Config struct {
	Reporter Reporter
	User     string   // Requesting user and default message author
	Roles    []string // Roles presented to the permission check
	Out      io.Writer
}

// REPL represents the interactive shell
type REPL struct {
	reporter Reporter
	user     string
	roles    []string
	out      io.Writer
	commands map[string]CommandHandler

	messages []types.Message
	preview  *reporter.Preview
	// Set once an unconfirmed /file hit a high-confidence duplicate
	confirming bool
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}

	user := cfg.User
	if user == "" {
		user = "user"
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		reporter: cfg.Reporter,
		user:     user,
		roles:    cfg.Roles,
		out:      out,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("bugbot> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := r.processInput(ctx, line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// ParseLine turns "author: content" into a message. Lines without an
// author prefix are attributed to defaultAuthor.
func ParseLine(line, defaultAuthor string) types.Message {
	line = strings.TrimSpace(line)
	if author, content, ok := strings.Cut(line, ":"); ok {
		author = strings.TrimSpace(author)
		if author != "" && !strings.ContainsAny(author, " \t") {
			return types.Message{Author: author, Content: strings.TrimSpace(content)}
		}
	}
	return types.Message{Author: defaultAuthor, Content: line}
}

// processInput handles one line: a slash command or a conversation message
func (r *REPL) processInput(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "/") {
		parts := strings.Fields(line)
		handler, ok := r.commands[parts[0]]
		if !ok {
			return fmt.Errorf("unknown command %s (try /help)", parts[0])
		}
		return handler(ctx, parts[1:])
	}

	msg := ParseLine(line, r.user)
	if msg.Content == "" {
		return nil
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *REPL) registerCommands() {
	r.commands["/bug"] = r.cmdBug
	r.commands["/file"] = r.cmdFile
	r.commands["/cancel"] = r.cmdCancel
	r.commands["/show"] = r.cmdShow
	r.commands["/clear"] = r.cmdClear
	r.commands["/help"] = r.cmdHelp
	r.commands["/quit"] = r.cmdExit
	r.commands["/exit"] = r.cmdExit
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("Mudlet bug bot"))
	fmt.Fprintln(r.out, "Type conversation lines as 'author: message', then /bug to extract a report.")
	fmt.Fprintln(r.out, "Type /help for available commands, /quit to exit")
	fmt.Fprintln(r.out)
}
