// ABOUTME: Findings commands list and show risk findings
// ABOUTME: Listings filter by session and state
package commands

import (
	"fmt"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// findingDetail is a finding with the feedback recorded against it
type findingDetail struct {
	models.RiskFinding `yaml:",inline"`
	Feedback           []models.FeedbackRecord `json:"feedback" yaml:"feedback"`
}

// NewFindingsCmd creates the findings command group
func NewFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "List and inspect risk findings",
	}

	var (
		session string
		state   string
		limit   int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			findings, err := a.svc.ListFindings(cmd.Context(), models.FindingFilter{
				SessionID: session,
				State:     models.FindingState(state),
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, findings)
			}
			if len(findings) == 0 {
				status(cmd, "No findings")
				return nil
			}
			w := newTable(cmd)
			_, _ = fmt.Fprintf(w, "ID\tSTATE\tSEVERITY\tCONF\tCREATED\tDESCRIPTION\n")
			for _, f := range findings {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
					f.FindingID, f.State, f.Severity, f.Confidence, formatTime(f.CreatedAt), truncate(f.Description, 50))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			status(cmd, "\nTotal: %d finding(s)", len(findings))
			return nil
		},
	}
	list.Flags().StringVar(&session, "session", "", "Only findings from this session")
	list.Flags().StringVar(&state, "state", "", "proposed, confirmed, rejected or superseded")
	list.Flags().IntVar(&limit, "limit", 0, "Maximum findings to list (0 for all)")

	show := &cobra.Command{
		Use:   "show <finding-id>",
		Short: "Show one finding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := a.svc.GetFinding(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			history, err := a.svc.FindingFeedback(cmd.Context(), f.FindingID)
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, findingDetail{RiskFinding: *f, Feedback: history})
			}
			printFinding(cmd, f)
			printFeedbackHistory(cmd, history)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func printFeedbackHistory(cmd *cobra.Command, history []models.FeedbackRecord) {
	if len(history) == 0 {
		return
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nFeedback:")
	w := newTable(cmd)
	_, _ = fmt.Fprintln(w, "SEQ\tVERDICT\tAUTHOR\tWHEN\tRATIONALE")
	for _, r := range history {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Seq, r.Verdict, r.Author, formatTime(r.CreatedAt), truncate(r.Rationale, 50))
	}
	_ = w.Flush()
}
