// ABOUTME: Serve command runs the HTTP API, optionally watching a directory for documents
// ABOUTME: Shuts down gracefully on SIGINT or SIGTERM
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/api"
	"github.com/harper/riskmem/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var (
		addr     string
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Examples:
  riskmem serve
  riskmem serve --addr :9000 --watch ./requirements`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			if watchDir == "" {
				watchDir = a.cfg.WatchDir
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return api.NewServer(a.svc).ListenAndServe(gctx, addr)
			})
			if watchDir != "" {
				w := watcher.New(a.svc, watchDir, nil)
				g.Go(func() error {
					if _, err := w.Scan(gctx); err != nil {
						return err
					}
					return w.Run(gctx)
				})
			}

			log.Info("serving", "addr", addr)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default RISKMEM_HTTP_ADDR)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Also ingest documents from this directory")

	return cmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
