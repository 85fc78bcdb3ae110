// ABOUTME: Ask command runs a risk assessment within a session
// ABOUTME: Prints the proposed finding and the sections it drew on
package commands

import (
	"fmt"
	"strings"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <session-id> <question...>",
		Short: "Assess a security risk question",
		Long: `Retrieve relevant requirements, combine them with session and
long-term memory, and ask the reasoner for a risk finding.

Example:
  riskmem ask sess_123 "What risks does the password reset flow carry?"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			finding, err := a.svc.Ask(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, finding)
			}
			printFinding(cmd, finding)
			return nil
		},
	}
}

func printFinding(cmd *cobra.Command, f *models.RiskFinding) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Finding:    %s\n", f.FindingID)
	_, _ = fmt.Fprintf(out, "State:      %s\n", f.State)
	_, _ = fmt.Fprintf(out, "Severity:   %s\n", f.Severity)
	_, _ = fmt.Fprintf(out, "Confidence: %.2f\n", f.Confidence)
	if f.SupersedesID != "" {
		_, _ = fmt.Fprintf(out, "Supersedes: %s\n", f.SupersedesID)
	}
	if f.SupersededBy != "" {
		_, _ = fmt.Fprintf(out, "Superseded: %s\n", f.SupersededBy)
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", f.Description)
	if len(f.ContextRefs) > 0 {
		ids := make([]string, 0, len(f.ContextRefs))
		for _, r := range f.ContextRefs {
			ids = append(ids, r.SectionID)
		}
		_, _ = fmt.Fprintf(out, "\nSections: %s\n", strings.Join(ids, ", "))
	}
}
