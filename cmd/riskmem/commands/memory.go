// ABOUTME: Memory commands: recall, remember, promote and expire entries
// ABOUTME: Recalling long-term entries refreshes their recency
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// NewMemoryCmd creates the memory command group
func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage short-term and long-term memory",
		Long: `Inspect and manage memory.

Examples:
  riskmem memory recall --scope long_term --query "session tokens"
  riskmem memory remember --scope long_term "Legacy API is being retired in Q3"
  riskmem memory remember --ttl 720h "Change freeze until the audit closes"
  riskmem memory promote mem_123
  riskmem memory expire mem_123`,
	}

	cmd.AddCommand(newMemoryRecallCmd(), newMemoryRememberCmd(), newMemoryPromoteCmd(), newMemoryExpireCmd())
	return cmd
}

func newMemoryRecallCmd() *cobra.Command {
	var (
		scope      string
		session    string
		query      string
		kinds      []string
		relevance  float64
		pinnedOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "recall",
		Short: "List live memory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.RecallFilter{
				SessionID:    session,
				Query:        query,
				MinRelevance: relevance,
				PinnedOnly:   pinnedOnly,
				Limit:        limit,
			}
			for _, k := range kinds {
				filter.Kinds = append(filter.Kinds, models.MemoryKind(k))
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.Recall(cmd.Context(), models.MemoryScope(scope), filter)
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, entries)
			}
			if len(entries) == 0 {
				status(cmd, "No memory entries")
				return nil
			}
			printEntries(cmd, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(models.ScopeLongTerm), "short_term or long_term")
	cmd.Flags().StringVar(&session, "session", "", "Session for short-term recall")
	cmd.Flags().StringVar(&query, "query", "", "Rank and filter by relevance to this text")
	cmd.Flags().StringSliceVar(&kinds, "kind", []string{}, "Only these kinds (turn, pinned, feedback, note)")
	cmd.Flags().Float64Var(&relevance, "min-relevance", 0, "Minimum keyword relevance to --query")
	cmd.Flags().BoolVar(&pinnedOnly, "pinned", false, "Only pinned entries")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (0 for all)")

	return cmd
}

func newMemoryRememberCmd() *cobra.Command {
	var (
		scope   string
		session string
		kind    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "remember <text...>",
		Short: "Write a memory entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl < 0 {
				return fmt.Errorf("--ttl must not be negative, got %s", ttl)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry := models.MemoryEntry{
				Scope:      models.MemoryScope(scope),
				Kind:       models.MemoryKind(kind),
				SessionID:  session,
				Content:    strings.Join(args, " "),
				Provenance: models.Provenance{SessionID: session},
			}
			if ttl > 0 {
				expires := time.Now().Add(ttl).UTC()
				entry.ExpiresAt = &expires
			}
			stored, err := a.svc.Remember(cmd.Context(), entry)
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, stored)
			}
			status(cmd, "✓ Remembered %s (%s)", stored.EntryID, stored.Scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(models.ScopeLongTerm), "short_term or long_term")
	cmd.Flags().StringVar(&session, "session", "", "Owning session (required for short_term)")
	cmd.Flags().StringVar(&kind, "kind", string(models.KindNote), "Entry kind")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Expire the entry after this long (e.g. 72h); 0 keeps it until expired or evicted")

	return cmd
}

func newMemoryPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <entry-id>",
		Short: "Promote a short-term entry to long-term memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.svc.Promote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, entry)
			}
			status(cmd, "✓ %s is long-term", entry.EntryID)
			return nil
		},
	}
}

func newMemoryExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <entry-id>",
		Short: "Expire a memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.svc.Expire(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, entry)
			}
			status(cmd, "✓ Expired %s", entry.EntryID)
			return nil
		},
	}
}

func printEntries(cmd *cobra.Command, entries []models.MemoryEntry) {
	w := newTable(cmd)
	_, _ = fmt.Fprintf(w, "ID\tSCOPE\tKIND\tCREATED\tCONTENT\n")
	for _, e := range entries {
		kind := string(e.Kind)
		if e.Pinned && e.Kind != models.KindPinned {
			kind += "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.EntryID, e.Scope, kind, formatTime(e.CreatedAt), truncate(strings.ReplaceAll(e.Content, "\n", " "), 60))
	}
	_ = w.Flush()
}
