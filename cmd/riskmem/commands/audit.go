// ABOUTME: Audit command exports the feedback history as of a point in time
// ABOUTME: Writes YAML by default, JSON with --format json, to stdout or a file
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewAuditCmd creates the audit command
func NewAuditCmd() *cobra.Command {
	var (
		asOf   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Export findings, feedback and long-term memory",
		Long: `Export the audit trail: every feedback record created at or before
--as-of, the findings those records touched, and long-term memory.

Examples:
  riskmem audit
  riskmem audit --as-of 2026-01-31T00:00:00Z --format json
  riskmem audit -o audit.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAsOf(asOf)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			export, err := a.svc.Export(cmd.Context(), at)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output) // #nosec G304
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if outputFormat == "json" {
				err = export.WriteJSON(w)
			} else {
				err = export.WriteYAML(w)
			}
			if err != nil {
				return err
			}
			if output != "" {
				status(cmd, "✓ Exported %d feedback record(s) to %s", len(export.Feedback), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC 3339 timestamp (default now)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}
