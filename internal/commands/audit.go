package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/auditlog"
)

func newAuditCommand(gf *globalFlags) *cobra.Command {
	var f auditlog.Filter

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the branch audit log as CSV",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			f.BranchID = p.branch
			entries, err := auditlog.List(ctx, p.db, f)
			if err != nil {
				return err
			}
			return auditlog.WriteCSV(cmd.OutOrStdout(), entries)
		}),
	}

	cmd.Flags().StringVar(&f.Action, "action", "", "only this action, e.g. voucher_posted")
	cmd.Flags().StringVar(&f.Actor, "by", "", "only entries by this actor")
	return cmd
}
