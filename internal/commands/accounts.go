package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/model"
)

func newGroupCommand(gf *globalFlags) *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage account groups",
	}
	groupCmd.AddCommand(newGroupAddCommand(gf), newGroupDeactivateCommand(gf))
	return groupCmd
}

func newGroupAddCommand(gf *globalFlags) *cobra.Command {
	var ng accounts.NewGroup
	var nature string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account group",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			if nature != "" {
				n, err := model.ParseNature(nature)
				if err != nil {
					return err
				}
				ng.Nature = n
			}
			ng.BranchID = p.branch
			ng.Actor = p.actor

			g, err := p.accounts.CreateGroup(ctx, ng)
			if err != nil {
				return err
			}
			st := NewStyles(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Created group %s %s (%s)\n", st.Code(g.Code), g.Name, g.Nature)
			return nil
		}),
	}

	cmd.Flags().StringVar(&ng.Name, "name", "", "group name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&ng.ParentCode, "parent", "", "parent group code (empty for a root group)")
	cmd.Flags().StringVar(&ng.Code, "code", "", "explicit code (allocated when empty)")
	cmd.Flags().StringVar(&nature, "nature", "", "nature of a root group; children inherit")
	cmd.Flags().StringVar(&ng.Type, "type", "", "type tag, e.g. SALES or PURCHASE")

	return cmd
}

func newGroupDeactivateCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <code>",
		Short: "Deactivate an empty account group",
		Args:  cobra.ExactArgs(1),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			g, err := p.accounts.GroupByCode(ctx, p.branch, args[0])
			if err != nil {
				return err
			}
			if err := p.accounts.Deactivate(ctx, g.ID, p.actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated group %s %s\n", g.Code, g.Name)
			return nil
		}),
	}
}

func newLedgerCommand(gf *globalFlags) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Manage ledgers",
	}
	ledgerCmd.AddCommand(newLedgerAddCommand(gf))
	return ledgerCmd
}

func newLedgerAddCommand(gf *globalFlags) *cobra.Command {
	var nl accounts.NewLedger
	var ledgerType, opening string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a ledger under a group",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			lt, err := model.ParseLedgerType(ledgerType)
			if err != nil {
				return err
			}
			ob, err := decimal.NewFromString(opening)
			if err != nil {
				return fmt.Errorf("parsing opening balance %q: %w", opening, err)
			}
			nl.Type = lt
			nl.OpeningBalance = ob
			nl.BranchID = p.branch
			nl.Actor = p.actor

			l, err := p.accounts.CreateLedger(ctx, nl)
			if err != nil {
				return err
			}
			st := NewStyles(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Created ledger %s %s (opening %s)\n",
				st.Code(l.Code), l.Name, st.Amount(l.OpeningBalance.StringFixed(2)))
			return nil
		}),
	}

	cmd.Flags().StringVar(&nl.Name, "name", "", "ledger name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&nl.GroupCode, "group", "", "account group code (required)")
	_ = cmd.MarkFlagRequired("group")
	cmd.Flags().StringVar(&nl.Code, "code", "", "explicit code (allocated when empty)")
	cmd.Flags().StringVar(&ledgerType, "type", "General", "Cash, Bank, Receivable, Payable or General")
	cmd.Flags().StringVar(&opening, "opening", "0", "opening balance")

	return cmd
}

func newChartCommand(gf *globalFlags) *cobra.Command {
	chartCmd := &cobra.Command{
		Use:   "chart",
		Short: "Import or export the chart of accounts",
	}
	chartCmd.AddCommand(newChartImportCommand(gf), newChartExportCommand(gf))
	return chartCmd
}

func newChartImportCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create groups and ledgers from a chart CSV",
		Args:  cobra.ExactArgs(1),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := accounts.ReadChart(f)
			if err != nil {
				return err
			}
			n, err := p.accounts.ImportChart(ctx, p.branch, rows, p.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts into branch %d\n", n, p.branch)
			return nil
		}),
	}
}

func newChartExportCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the chart of accounts as CSV (stdout when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			rows, err := p.accounts.ExportChart(ctx, p.branch)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if len(args) > 0 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return accounts.WriteChart(w, rows)
		}),
	}
}
