// ABOUTME: Summarize command produces a security summary of a document
// ABOUTME: Summarizes a stored document by ID or a file inline, optionally saving the report
package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewSummarizeCmd creates the summarize command
func NewSummarizeCmd() *cobra.Command {
	var (
		file    string
		project string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "summarize [document-id]",
		Short: "Summarize the security posture of a document",
		Long: `Summarize a stored document, or a file that has not been ingested.

Examples:
  riskmem summarize doc_123
  riskmem summarize --file srs.md --project Payments
  riskmem summarize doc_123 --out summary_report.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return errors.New("give either a document ID or --file")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var summary string
			if file != "" {
				data, err := os.ReadFile(file) // #nosec G304
				if err != nil {
					return fmt.Errorf("reading file: %w", err)
				}
				summary, err = a.svc.SummarizeText(cmd.Context(), project, string(data))
				if err != nil {
					return err
				}
			} else {
				summary, err = a.svc.Summarize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			}

			if out != "" {
				if err := saveSummary(out, summary); err != nil {
					return err
				}
				status(cmd, "✓ Summary saved to %s", out)
			}

			if structured(cmd) {
				return printStructured(cmd, map[string]string{"summary": summary})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Summarize this file without ingesting it")
	cmd.Flags().StringVar(&project, "project", "", "Project name for --file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the summary report to this file")

	return cmd
}

// saveSummary writes a summary report for the analyst to review and edit
func saveSummary(path, summary string) error {
	if err := os.WriteFile(path, []byte(strings.TrimRight(summary, "\n")+"\n"), 0644); err != nil { // #nosec G306
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}
