// ABOUTME: Sync commands mirror the audit trail to Charm cloud
// ABOUTME: Provides status, push, now, keys and wipe
package commands

import (
	"fmt"

	"github.com/harper/riskmem/internal/charm"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror findings, feedback and memory to Charm cloud",
		Long: `Mirror the audit trail to Charm cloud.

Charm authenticates with SSH keys. Pushed data is readable from every
device linked to the same Charm account.`,
	}

	cmd.AddCommand(newSyncStatusCmd(), newSyncPushCmd(), newSyncNowCmd(), newSyncKeysCmd(), newSyncWipeCmd())
	return cmd
}

func openCharm() (*charm.Client, *charm.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	ccfg := charm.ConfigFrom(cfg)
	client, err := charm.NewClient(ccfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Charm: %w", err)
	}
	return client, ccfg, nil
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection info and mirrored counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ccfg, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			id, err := client.ID()
			if err != nil {
				_, _ = fmt.Fprintln(out, "Status: Not connected")
				_, _ = fmt.Fprintln(out, "Run 'riskmem sync keys' to check your SSH keys")
				return nil
			}

			counts, err := charm.NewMirror(nil, client, false).Counts()
			if err != nil {
				return err
			}
			if structured(cmd) {
				return printStructured(cmd, map[string]any{"user_id": id, "host": ccfg.Host, "db": ccfg.DBName, "counts": counts})
			}
			_, _ = fmt.Fprintln(out, "Status: Connected")
			_, _ = fmt.Fprintf(out, "User ID: %s\n", id)
			_, _ = fmt.Fprintf(out, "Host: %s\n", ccfg.Host)
			_, _ = fmt.Fprintf(out, "Mirrored: %d finding(s), %d feedback record(s), %d memory entries\n",
				counts["finding"], counts["feedback"], counts["memory"])
			return nil
		},
	}
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Mirror the local audit trail and sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := charm.NewClient(charm.ConfigFrom(a.cfg))
			if err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}
			defer func() { _ = client.Close() }()

			stats, err := charm.NewMirror(a.store, client, true).Push(cmd.Context())
			if err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			if structured(cmd) {
				return printStructured(cmd, stats)
			}
			status(cmd, "✓ Pushed %d finding(s), %d feedback record(s), %d memory entries", stats.Findings, stats.Feedback, stats.Memory)
			return nil
		},
	}
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Force immediate sync with Charm cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			status(cmd, "Syncing...")
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			status(cmd, "Sync complete")
			return nil
		},
	}
}

func newSyncWipeCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Wipe the local Charm mirror",
		Long: `Completely wipe the locally cached Charm mirror.

Local SQLite data is untouched. Cloud data remains intact and is
re-synced on next access.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "This will wipe the local Charm mirror!")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run with --confirm to proceed")
				return nil
			}

			client, _, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Reset(); err != nil {
				return fmt.Errorf("failed to wipe data: %w", err)
			}
			status(cmd, "Local mirror wiped successfully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the wipe operation")
	return cmd
}

func newSyncKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List authorized SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			keys, err := client.GetAuthorizedKeys()
			if err != nil {
				return fmt.Errorf("failed to get authorized keys: %w", err)
			}
			if keys == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No authorized keys found")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Authorized SSH keys:")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), keys)
			return nil
		},
	}
}
