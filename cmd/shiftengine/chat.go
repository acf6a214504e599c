package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/shiftengine/internal/api"
	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/store"
)

var chatCommands = []string{":help", ":state", ":history", ":quit"}

func newChatCmd(root *rootFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run a session interactively in the terminal",
		Long:  "chat drives one session from the terminal. Pass --session to resume a stored session or to pick the id of a new one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, root)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, "chat")
			if err != nil {
				return err
			}
			defer a.Close()

			c := &chat{
				engine:  a.engine,
				resume:  resumePrompt(a.engine.Registry()),
				out:     cmd.OutOrStdout(),
				session: sessionID,
			}
			return c.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume or create (generated when empty)")
	return cmd
}

// chat is the terminal driver for one session.
type chat struct {
	engine  api.Engine
	resume  func(*models.SessionContext) string
	out     io.Writer
	session string
}

// resumePrompt renders the pending step of a stored session so the user
// sees what they are answering.
func resumePrompt(reg *flow.Registry) func(*models.SessionContext) string {
	return func(c *models.SessionContext) string {
		def, err := reg.Get(c.CurrentStep)
		if err != nil {
			slog.Warn("chat.resumePrompt: unknown step", "step", c.CurrentStep, "error", err)
			return ""
		}
		return def.Render(flow.Classify(c.UserResponses[c.CurrentStep]), c)
	}
}

func (c *chat) run(ctx context.Context) error {
	done, err := c.open(ctx)
	if err != nil || done {
		return err
	}

	completer := readline.NewPrefixCompleter()
	for _, name := range chatCommands {
		completer.Children = append(completer.Children, readline.PcItem(name))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		Stdout:          c.out,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintf(c.out, "Session %s saved. Resume with --session %s\n", c.session, c.session)
				return nil
			}
			return err
		}
		quit, err := c.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// open starts a new session or resumes a stored one and prints the opening
// message. done is true when the session is already complete.
func (c *chat) open(ctx context.Context) (done bool, err error) {
	if c.session != "" {
		snap, err := c.engine.Snapshot(ctx, c.session)
		switch {
		case err == nil:
			fmt.Fprintf(c.out, "Resuming session %s\n\n", c.session)
			if snap.Completed {
				fmt.Fprintln(c.out, "This session is already complete.")
				return true, nil
			}
			fmt.Fprintln(c.out, c.resume(snap))
			return false, nil
		case !errors.Is(err, store.ErrSessionNotFound):
			return false, fmt.Errorf("failed to load session %s: %w", c.session, err)
		}
	}

	res, err := c.engine.StartSession(ctx, c.session)
	if err != nil {
		return false, fmt.Errorf("failed to start session: %w", err)
	}
	c.session = res.SessionID
	fmt.Fprintf(c.out, "Session %s\n\n%s\n", res.SessionID, res.Message)
	return false, nil
}

// handle processes one input line. quit is true when the loop should end.
func (c *chat) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case ":quit", ":q", ":exit":
		fmt.Fprintf(c.out, "Session %s saved. Resume with --session %s\n", c.session, c.session)
		return true, nil
	case ":help":
		fmt.Fprintln(c.out, "Answer the prompt, or use :state, :history or :quit.")
		return false, nil
	case ":state":
		snap, err := c.engine.Snapshot(ctx, c.session)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "step=%s phase=%s work=%s method=%s depth=%d\n",
			snap.CurrentStep, snap.CurrentPhase, snap.WorkType, snap.SelectedMethod, snap.Metadata.Depth())
		return false, nil
	case ":history":
		history, err := c.engine.History(ctx, c.session)
		if err != nil {
			return false, err
		}
		for _, it := range history {
			fmt.Fprintf(c.out, "%s  %-28s %-10s %q\n", it.CreatedAt.Format("15:04:05"), it.StepID, it.Outcome, it.Input)
		}
		return false, nil
	}

	res, err := c.engine.ContinueSession(ctx, c.session, line)
	if err != nil {
		if flow.IsRetryable(err) {
			fmt.Fprintln(c.out, "That answer was not saved. Please send it again.")
			return false, nil
		}
		// The session is left as it was, so the user can answer again.
		var cfgErr *flow.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Warn("chat.handle: turn not applied", "session", c.session, "error", err)
			fmt.Fprintln(c.out, res.Message)
			return false, nil
		}
		if res.Message != "" {
			fmt.Fprintln(c.out, res.Message)
		}
		return false, err
	}
	fmt.Fprintf(c.out, "\n%s\n", res.Message)
	if !res.CanContinue {
		return true, nil
	}
	return false, nil
}
