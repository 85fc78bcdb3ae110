// ABOUTME: Output helpers shared by commands: structured encoders and table formatting
// ABOUTME: auto picks table on a terminal and json otherwise; json and yaml print the underlying records
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// resolveFormat turns auto into table on a terminal and json when stdout is a pipe or file.
// Writers that are not files, such as test buffers, get table.
func resolveFormat(cmd *cobra.Command) string {
	if outputFormat != "auto" {
		return outputFormat
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			return "json"
		}
	}
	return "table"
}

// structured reports whether the resolved format is machine-readable
func structured(cmd *cobra.Command) bool {
	switch resolveFormat(cmd) {
	case "json", "yaml":
		return true
	}
	return false
}

// printStructured writes v to the command's output in the resolved machine-readable format
func printStructured(cmd *cobra.Command, v any) error {
	w := cmd.OutOrStdout()
	switch resolveFormat(cmd) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
}

// newTable returns a tabwriter over the command's output
func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}

// status prints an informational line unless --quiet is set
func status(cmd *cobra.Command, format string, args ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display relative to now
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// parseAsOf parses an RFC 3339 timestamp, defaulting to now when empty
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be RFC 3339, got %q", s)
	}
	return t, nil
}
