// ABOUTME: Commands to ingest, list and delete requirements documents
// ABOUTME: Text comes from a file argument or stdin
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harper/riskmem/internal/models"
	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	var (
		id     string
		title  string
		source string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a requirements document",
		Long: `Segment, chunk and embed a requirements document.

Ingesting with an existing --id replaces that document.

Examples:
  riskmem ingest srs.md
  riskmem ingest --id login-srs --title "Login SRS" srs.md
  cat srs.txt | riskmem ingest --title "Payments"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
				if source == "" {
					source = args[0]
				}
				if title == "" {
					title = filepath.Base(args[0])
				}
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.SubmitDocument(cmd.Context(), string(data), models.DocumentMeta{
				ID:     id,
				Title:  title,
				Source: source,
			})
			if err != nil {
				return err
			}

			if structured(cmd) {
				return printStructured(cmd, res)
			}
			status(cmd, "✓ Ingested %s: %d section(s), %d chunk(s)", res.Document.ID, len(res.Sections), len(res.Chunks))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Document ID (replaces an existing document)")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&source, "source", "", "Where the document came from")

	return cmd
}

// NewDocsCmd creates the docs command group
func NewDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List or delete ingested documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.svc.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, docs)
			}
			if len(docs) == 0 {
				status(cmd, "No documents ingested")
				return nil
			}
			w := newTable(cmd)
			_, _ = fmt.Fprintf(w, "ID\tTITLE\tINGESTED\n")
			for _, d := range docs {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, truncate(d.Title, 40), formatTime(d.IngestedAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its sections, chunks and embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			status(cmd, "✓ Deleted %s", args[0])
			return nil
		},
	})

	return cmd
}
