// ABOUTME: Watch command ingests documents from a directory as they change
// ABOUTME: Existing files are ingested first unless --no-scan is given
package commands

import (
	"errors"

	"github.com/harper/riskmem/internal/watcher"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var (
		noScan     bool
		extensions []string
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest documents from a directory as they change",
		Long: `Watch a directory and ingest requirement files when they are created
or written. Removing a file deletes its document.

Examples:
  riskmem watch ./requirements
  riskmem watch --ext .md,.txt,.rst ./requirements`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no directory given and RISKMEM_WATCH_DIR is not set")
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			w := watcher.New(a.svc, dir, extensions)
			if !noScan {
				n, err := w.Scan(ctx)
				if err != nil {
					return err
				}
				status(cmd, "✓ Ingested %d existing file(s) from %s", n, dir)
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&noScan, "no-scan", false, "Skip ingesting files already in the directory")
	cmd.Flags().StringSliceVar(&extensions, "ext", []string{}, "File extensions to ingest (default .txt,.md)")

	return cmd
}
