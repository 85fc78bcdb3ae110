// ABOUTME: Root command, global flags and command registration for the riskmem CLI
// ABOUTME: Global flags control log verbosity, output format and the database path
package commands

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	dbPath       string
)

const banner = `
██████╗ ██╗███████╗██╗  ██╗███╗   ███╗███████╗███╗   ███╗
██╔══██╗██║██╔════╝██║ ██╔╝████╗ ████║██╔════╝████╗ ████║
██████╔╝██║███████╗█████╔╝ ██╔████╔██║█████╗  ██╔████╔██║
██╔══██╗██║╚════██║██╔═██╗ ██║╚██╔╝██║██╔══╝  ██║╚██╔╝██║
██║  ██║██║███████║██║  ██╗██║ ╚═╝ ██║███████╗██║ ╚═╝ ██║
╚═╝  ╚═╝╚═╝╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝╚══════╝╚═╝     ╚═╝`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riskmem",
		Short: "Security risk assessment with retrieval and expert memory",
		Long: banner + `

riskmem ingests requirements documents, answers security risk questions
against them, and learns from expert feedback on its findings.

Configuration comes from RISKMEM_* environment variables, a .env file,
and an optional TOML file named by RISKMEM_CONFIG.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "table", "json", "yaml":
			default:
				return fmt.Errorf("--format must be auto, table, json or yaml, got %q", outputFormat)
			}
			switch {
			case verbose:
				log.SetLevel(log.DebugLevel)
			case quiet:
				log.SetLevel(log.ErrorLevel)
			default:
				log.SetLevel(log.WarnLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table, json or yaml")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides RISKMEM_DB)")

	cmd.AddCommand(
		NewIngestCmd(),
		NewDocsCmd(),
		NewSessionCmd(),
		NewAskCmd(),
		NewFeedbackCmd(),
		NewFindingsCmd(),
		NewMemoryCmd(),
		NewAuditCmd(),
		NewSummarizeCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewWatchCmd(),
		NewSyncCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
