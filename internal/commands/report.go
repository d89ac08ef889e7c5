package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/journal"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/reports"
)

func newPropagateCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "propagate",
		Short: "Recompute every group balance of the branch from its children",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			before, err := p.balances.CheckGroups(ctx, p.branch)
			if err != nil {
				return err
			}

			err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := p.balances.WithTx(tx).RebuildBranch(ctx, p.branch); err != nil {
					return err
				}
				return auditlog.Append(tx, auditlog.Entry{
					BranchID: p.branch,
					Actor:    p.actor,
					Action:   auditlog.ActionBranchRebuilt,
					Details:  fmt.Sprintf("%d groups corrected", len(before)),
				})
			})
			if err != nil {
				return err
			}

			st := NewStyles(cmd.OutOrStdout())
			for _, m := range before {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %s -> %s\n", st.Warning("corrected"),
					st.Code(m.Code), m.Name, m.Stored.StringFixed(2), m.Calculated.StringFixed(2))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt branch %d (%d groups corrected)\n", p.branch, len(before))
			return nil
		}),
	}
}

func newReportCommand(gf *globalFlags) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}
	reportCmd.AddCommand(newTrialBalanceCommand(gf), newTradingCommand(gf))
	return reportCmd
}

func newTrialBalanceCommand(gf *globalFlags) *cobra.Command {
	var asJSON, strict bool

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "List every ledger on its natural side and check the books agree",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			r, err := p.reports.TrialBalance(ctx, p.branch)
			if err != nil {
				return err
			}
			v := r.BalanceValidation
			p.metrics.SetTrialBalance(p.branchLabel(), r.Totals.Difference,
				len(v.MismatchedLedgers)+len(v.MismatchedGroups))

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			} else {
				printTrialBalance(cmd.OutOrStdout(), r)
			}
			if strict {
				return r.Err()
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the trial balance does not agree")
	return cmd
}

func printTrialBalance(w io.Writer, r *reports.TrialBalanceReport) {
	st := NewStyles(w)
	fmt.Fprintf(w, "%s (branch %d)\n", st.Keyword("Trial Balance"), r.BranchID)
	fmt.Fprintf(w, "%-10s %-28s %14s %14s\n", "Code", "Ledger", "Debit", "Credit")

	for _, l := range r.Ledgers {
		debit, credit := "", ""
		if l.BalanceType == model.Debit {
			debit = l.BalanceAmount.StringFixed(2)
		} else {
			credit = l.BalanceAmount.StringFixed(2)
		}
		fmt.Fprintf(w, "%-10s %-28s %14s %14s\n", l.Code, l.Name, debit, credit)
	}
	fmt.Fprintf(w, "%-10s %-28s %14s %14s\n", "", "Total",
		r.Totals.TotalDebitBalance.StringFixed(2), r.Totals.TotalCreditBalance.StringFixed(2))

	if r.Totals.Difference.IsZero() {
		fmt.Fprintln(w, st.Success("Balanced"))
	} else {
		fmt.Fprintf(w, "%s difference %s\n", st.Error("Not balanced:"), r.Totals.Difference.StringFixed(2))
	}
	for _, m := range r.BalanceValidation.MismatchedLedgers {
		fmt.Fprintf(w, "%s ledger %s stored %s, journal gives %s\n", st.Warning("mismatch"),
			m.Name, m.Stored.StringFixed(2), m.Calculated.StringFixed(2))
	}
	for _, m := range r.BalanceValidation.MismatchedGroups {
		fmt.Fprintf(w, "%s group %s %s stored %s, children sum to %s\n", st.Warning("mismatch"),
			m.Code, m.Name, m.Stored.StringFixed(2), m.Calculated.StringFixed(2))
	}
}

func newTradingCommand(gf *globalFlags) *cobra.Command {
	var asJSON bool
	var openingStock, closingStock string

	cmd := &cobra.Command{
		Use:   "trading",
		Short: "Trading account with cost of goods sold and gross profit",
		Args:  cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			opening, err := decimal.NewFromString(openingStock)
			if err != nil {
				return fmt.Errorf("parsing opening stock %q: %w", openingStock, err)
			}
			closing, err := decimal.NewFromString(closingStock)
			if err != nil {
				return fmt.Errorf("parsing closing stock %q: %w", closingStock, err)
			}

			tc := p.cfg.Trading
			r, err := p.reports.TradingAccount(ctx, reports.TradingParams{
				BranchID:     p.branch,
				OpeningStock: opening,
				ClosingStock: closing,
				Sections: reports.TradingSections{
					Purchase:      tc.PurchaseType,
					Sales:         tc.SalesType,
					DirectIncome:  tc.DirectIncomeType,
					DirectExpense: tc.DirectExpenseType,
				},
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			printTrading(cmd.OutOrStdout(), r)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&openingStock, "opening-stock", "0", "opening stock value")
	cmd.Flags().StringVar(&closingStock, "closing-stock", "0", "closing stock value")
	return cmd
}

func printTrading(w io.Writer, r *reports.TradingAccountReport) {
	st := NewStyles(w)
	row := func(label string, amount decimal.Decimal) {
		fmt.Fprintf(w, "  %-32s %14s\n", label, amount.StringFixed(2))
	}
	items := func(list []reports.TradingItem) {
		for _, it := range list {
			row(it.Code+" "+it.Name, it.Amount)
		}
	}

	fmt.Fprintf(w, "%s (branch %d)\n", st.Keyword("Trading Account"), r.BranchID)
	fmt.Fprintln(w, st.Keyword("Dr"))
	row("Opening stock", r.DebitSide.OpeningStock)
	items(r.DebitSide.Purchases)
	items(r.DebitSide.DirectExpenses)
	if r.Summary.IsGrossProfit {
		row("Gross profit c/d", r.DebitSide.GrossProfit)
	}
	row("Total", r.DebitSide.Total)

	fmt.Fprintln(w, st.Keyword("Cr"))
	items(r.CreditSide.Sales)
	items(r.CreditSide.DirectIncomes)
	row("Closing stock", r.CreditSide.ClosingStock)
	if !r.Summary.IsGrossProfit {
		row("Gross loss c/d", r.CreditSide.GrossLoss)
	}
	row("Total", r.CreditSide.Total)

	fmt.Fprintf(w, "Cost of goods sold %s\n", st.Amount(r.Summary.CostOfGoodsSold.StringFixed(2)))
	if r.Summary.IsGrossProfit {
		fmt.Fprintf(w, "%s %s\n", st.Success("Gross profit"), r.Summary.GrossProfit.StringFixed(2))
	} else {
		fmt.Fprintf(w, "%s %s\n", st.Error("Gross loss"), r.Summary.GrossProfit.StringFixed(2))
	}
}

func newStatementCommand(gf *globalFlags) *cobra.Command {
	var fromFlag, toFlag string
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "statement <ledger-code>",
		Short: "List a ledger's journal entries with running balances",
		Args:  cobra.ExactArgs(1),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			l, err := p.accounts.LedgerByCode(ctx, p.branch, args[0])
			if err != nil {
				return err
			}
			from, err := parseDate(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseDate(toFlag)
			if err != nil {
				return err
			}

			s, err := p.journal.Statement(ctx, l.ID, from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asCSV {
				return journal.WriteStatementCSV(out, s.Lines)
			}

			st := NewStyles(out)
			fmt.Fprintf(out, "%s %s %s  %s to %s\n", st.Keyword("Statement"), st.Code(l.Code), l.Name,
				from.Format(journal.DateFormat), to.Format(journal.DateFormat))
			fmt.Fprintf(out, "%-10s %-8s %12s %12s %12s  %s\n", "Date", "Voucher", "Debit", "Credit", "Balance", "Narration")
			fmt.Fprintf(out, "%-10s %-8s %12s %12s %12s\n", "", "", "", "Opening", s.Opening.StringFixed(2))
			for _, line := range s.Lines {
				debit, credit := "", ""
				if line.Type == model.Debit {
					debit = line.Amount.StringFixed(2)
				} else {
					credit = line.Amount.StringFixed(2)
				}
				fmt.Fprintf(out, "%-10s %-8d %12s %12s %12s  %s\n", line.Date.Format(journal.DateFormat),
					line.VoucherID, debit, credit, line.PostBalance.StringFixed(2), line.Narration)
			}
			fmt.Fprintf(out, "%-10s %-8s %12s %12s %12s\n", "", "", "", "Closing", s.Closing.StringFixed(2))
			return nil
		}),
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "first date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&toFlag, "to", "", "last date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
