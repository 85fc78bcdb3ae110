// ABOUTME: Feedback command records an expert verdict on a finding
// ABOUTME: Edits supersede the original finding with a confirmed replacement
package commands

import (
	"errors"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// NewFeedbackCmd creates the feedback command
func NewFeedbackCmd() *cobra.Command {
	var (
		verdict     string
		author      string
		rationale   string
		description string
		severity    string
	)

	cmd := &cobra.Command{
		Use:   "feedback <finding-id>",
		Short: "Accept, reject or edit a finding",
		Long: `Record an expert verdict on a proposed finding.

Examples:
  riskmem feedback find_123 --verdict accepted --author alice
  riskmem feedback find_123 --verdict rejected --author bob --rationale "covered by SEC-4"
  riskmem feedback find_123 --verdict edited --author carol --severity critical`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verdict == "" {
				return errors.New("--verdict is required")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.SubmitFeedback(cmd.Context(), models.FeedbackInput{
				FindingID:         args[0],
				Verdict:           models.Verdict(verdict),
				Author:            author,
				Rationale:         rationale,
				EditedDescription: description,
				EditedSeverity:    models.Severity(severity),
			})
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, res)
			}
			status(cmd, "✓ Recorded %s (%s): %s is now %s", res.Record.FeedbackID, res.Record.Verdict, res.Finding.FindingID, res.Finding.State)
			if res.NewFinding != nil {
				status(cmd, "  Replacement finding: %s", res.NewFinding.FindingID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&verdict, "verdict", "", "accepted, rejected or edited")
	cmd.Flags().StringVar(&author, "author", "", "Who is giving the feedback")
	cmd.Flags().StringVar(&rationale, "rationale", "", "Why")
	cmd.Flags().StringVar(&description, "description", "", "Edited description")
	cmd.Flags().StringVar(&severity, "severity", "", "Edited severity")

	return cmd
}
