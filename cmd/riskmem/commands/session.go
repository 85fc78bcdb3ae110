// ABOUTME: Session commands: start, close, show and pin analyst notes
// ABOUTME: Closing a session expires its short-term memory
package commands

import (
	"fmt"
	"strings"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// NewSessionCmd creates the session command group
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage assessment sessions",
		Long: `Start and close assessment sessions and pin analyst notes.

Examples:
  riskmem session start
  riskmem session pin sess_123 "Treat SSO as out of scope"
  riskmem session close sess_123`,
	}

	cmd.AddCommand(newSessionStartCmd(), newSessionCloseCmd(), newSessionShowCmd(), newSessionPinCmd())
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.svc.StartSession(cmd.Context())
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, sess)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), sess.SessionID)
			return nil
		},
	}
}

func newSessionCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a session and expire its short-term memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			expired, err := a.svc.CloseSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, map[string]any{"session_id": args[0], "expired": expired})
			}
			status(cmd, "✓ Closed %s (%d short-term entries expired)", args[0], expired)
			return nil
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its live short-term memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.svc.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := a.svc.Recall(cmd.Context(), models.ScopeShortTerm, models.RecallFilter{SessionID: sess.SessionID})
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, map[string]any{"session": sess, "memory": entries})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Session: %s\nState:   %s\nStarted: %s\n", sess.SessionID, sess.State, formatTime(sess.CreatedAt))
			if len(entries) > 0 {
				_, _ = fmt.Fprintln(out)
				printEntries(cmd, entries)
			}
			return nil
		},
	}
}

func newSessionPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <session-id> <note...>",
		Short: "Pin an analyst note to a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.svc.Pin(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, entry)
			}
			status(cmd, "✓ Pinned %s", entry.EntryID)
			return nil
		},
	}
}
