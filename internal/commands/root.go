package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/buildinfo"
)

// globalFlags are shared by every command that opens a project.
type globalFlags struct {
	project         string
	branch          uint
	actor           string
	metricsTextfile string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	gf := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "branchledger",
		Short:   "Multi-branch double-entry ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&gf.project, "project", ".", "project directory")
	pf.UintVar(&gf.branch, "branch", 0, "branch id (default from config)")
	pf.StringVar(&gf.actor, "actor", "", "user recorded in the audit log (default $USER)")
	pf.StringVar(&gf.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		newInitCommand(gf),
		newGroupCommand(gf),
		newLedgerCommand(gf),
		newChartCommand(gf),
		newBookCommand(gf),
		newYearCommand(gf),
		newVoucherCommand(gf),
		newPropagateCommand(gf),
		newReportCommand(gf),
		newStatementCommand(gf),
		newAuditCommand(gf),
	)

	return rootCmd
}
