package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/books"
	"github.com/cleared-dev/branchledger/internal/journal"
	"github.com/cleared-dev/branchledger/internal/model"
)

func newBookCommand(gf *globalFlags) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Manage voucher books",
	}
	bookCmd.AddCommand(newBookAddCommand(gf), newBookListCommand(gf))
	return bookCmd
}

func newBookAddCommand(gf *globalFlags) *cobra.Command {
	var vtFlag, name, prefix string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Open a voucher book for a voucher type",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			vt, err := model.ParseVoucherType(vtFlag)
			if err != nil {
				return err
			}
			b, err := p.books.CreateVoucherBook(ctx, p.branch, vt, name, prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) for branch %d\n", b.Name, b.Type, b.BranchID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&vtFlag, "type", "", "voucher type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&name, "name", "", "book name")
	cmd.Flags().StringVar(&prefix, "prefix", "", "display prefix, e.g. PV")

	return cmd
}

func newBookListCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List voucher books of the branch",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			bs, err := p.books.VoucherBooks(ctx, p.branch)
			if err != nil {
				return err
			}
			st := NewStyles(cmd.OutOrStdout())
			for _, b := range bs {
				state := ""
				if !b.IsActive {
					state = st.Dim(" (inactive)")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-4s %s%s\n", b.Type, b.Prefix, b.Name, state)
			}
			return nil
		}),
	}
}

func newYearCommand(gf *globalFlags) *cobra.Command {
	yearCmd := &cobra.Command{
		Use:   "year",
		Short: "Manage financial years",
	}
	yearCmd.AddCommand(newYearAddCommand(gf))
	return yearCmd
}

func newYearAddCommand(gf *globalFlags) *cobra.Command {
	var startFlag, endFlag, containing string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Open a financial year and its journal book",
		Long: "Open a financial year. Give --start and --end, or --containing to use the\n" +
			"year around a date that begins on fiscal.year_start.",
		Args: cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			start, end, err := yearRange(p.cfg.Fiscal.YearStart, startFlag, endFlag, containing)
			if err != nil {
				return err
			}
			fy, err := p.books.CreateFinancialYear(ctx, p.branch, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened financial year %s to %s for branch %d\n",
				fy.StartDate.Format(journal.DateFormat), fy.EndDate.Format(journal.DateFormat), fy.BranchID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endFlag, "end", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&containing, "containing", "", "any date inside the year (YYYY-MM-DD)")
	cmd.MarkFlagsRequiredTogether("start", "end")
	cmd.MarkFlagsMutuallyExclusive("start", "containing")

	return cmd
}

func yearRange(yearStart, startFlag, endFlag, containing string) (time.Time, time.Time, error) {
	if containing != "" {
		d, err := parseDate(containing)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return books.YearBounds(yearStart, d)
	}
	if startFlag == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("either --start/--end or --containing is required")
	}
	start, err := parseDate(startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endFlag)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(journal.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}
