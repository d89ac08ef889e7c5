package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/importer"
	"github.com/cleared-dev/branchledger/internal/journal"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/posting"
)

func newVoucherCommand(gf *globalFlags) *cobra.Command {
	voucherCmd := &cobra.Command{
		Use:   "voucher",
		Short: "Post, import and inspect vouchers",
	}
	voucherCmd.AddCommand(
		newVoucherPostCommand(gf),
		newVoucherImportCommand(gf),
		newVoucherShowCommand(gf),
		newVoucherEditCommand(gf),
	)
	return voucherCmd
}

func newVoucherPostCommand(gf *globalFlags) *cobra.Command {
	var vtFlag, dateFlag, narration, reference string
	var lines []string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a voucher",
		Long: "Post a voucher. Each --line is PRIMARY:OPPOSITE:AMOUNT[:NARRATION] where\n" +
			"PRIMARY and OPPOSITE are ledger codes. The side of each leg follows from the\n" +
			"voucher type and the natures of the two ledgers.",
		Args: cobra.NoArgs,
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, _ []string) error {
			vt, err := model.ParseVoucherType(vtFlag)
			if err != nil {
				return err
			}
			date, err := parseDate(dateFlag)
			if err != nil {
				return err
			}

			req := posting.PostVoucherRequest{
				BranchID:  p.branch,
				Date:      date,
				Type:      vt,
				Narration: narration,
				Reference: reference,
			}
			for _, arg := range lines {
				line, err := parseLineFlag(ctx, p, arg)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
				req.TotalAmount = req.TotalAmount.Add(line.Amount)
			}

			v, err := p.engine.PostVoucher(ctx, p.actor, req)
			if err != nil {
				return err
			}
			return printPosted(ctx, p, cmd, v)
		}),
	}

	cmd.Flags().StringVar(&vtFlag, "type", "", "voucher type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&dateFlag, "date", "", "voucher date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "PRIMARY:OPPOSITE:AMOUNT[:NARRATION] (repeatable)")
	_ = cmd.MarkFlagRequired("line")
	cmd.Flags().StringVar(&narration, "narration", "", "voucher narration")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference")

	return cmd
}

func parseLineFlag(ctx context.Context, p *project, arg string) (posting.LineRequest, error) {
	parts := strings.SplitN(arg, ":", 4)
	if len(parts) < 3 {
		return posting.LineRequest{}, fmt.Errorf("line %q: want PRIMARY:OPPOSITE:AMOUNT[:NARRATION]", arg)
	}
	primary, err := p.accounts.LedgerByCode(ctx, p.branch, parts[0])
	if err != nil {
		return posting.LineRequest{}, err
	}
	opposite, err := p.accounts.LedgerByCode(ctx, p.branch, parts[1])
	if err != nil {
		return posting.LineRequest{}, err
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return posting.LineRequest{}, fmt.Errorf("line %q: parsing amount: %w", arg, err)
	}

	line := posting.LineRequest{
		LedgerID:        primary.ID,
		VoucherLedgerID: opposite.ID,
		Amount:          amount,
	}
	if len(parts) == 4 {
		line.Narration = parts[3]
	}
	return line, nil
}

func printPosted(ctx context.Context, p *project, cmd *cobra.Command, v *model.Voucher) error {
	book, err := p.books.ActiveVoucherBook(ctx, v.BranchID, v.Type)
	if err != nil {
		return err
	}
	st := NewStyles(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s dated %s for %s\n",
		st.Success("Posted"), v.Type, st.Keyword(book.Display(v.VoucherNumber)),
		v.Date.Format(journal.DateFormat), st.Amount(v.TotalAmount.StringFixed(2)))
	return nil
}

func newVoucherImportCommand(gf *globalFlags) *cobra.Command {
	var format string
	var opts importer.Options

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Post vouchers from CSV files",
		Long: "Post vouchers from CSV files. With no files, every CSV in <project>/import/ is\n" +
			"read and moved to import/processed/ once all of its vouchers have posted.",
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown import format %q", format)
			}

			scanned := len(args) == 0
			paths := args
			if scanned {
				files, err := importer.Scan(p.dir)
				if err != nil {
					return err
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}

			opts.BranchID = p.branch
			opts.Actor = p.actor
			im := importer.New(p.accounts, p.engine, p.lg.NewSystem("importer"))
			st := NewStyles(cmd.OutOrStdout())

			failed := 0
			for _, path := range paths {
				res, err := importFile(ctx, im, parser, path, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d posted, %d failed\n", filepath.Base(path), len(res.Posted), len(res.Failures))
				for _, f := range res.Failures {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s %s: %v\n", st.Error("failed"), f.Ref, f.Err)
				}
				failed += len(res.Failures)

				if scanned && len(res.Failures) == 0 {
					if err := importer.MarkProcessed(p.dir, filepath.Base(path)); err != nil {
						return err
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d vouchers failed to import", failed)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&format, "format", "vouchers", "input format: vouchers or chase")
	cmd.Flags().StringVar(&opts.ExpenseLedger, "expense-ledger", "", "ledger code for payments without one")
	cmd.Flags().StringVar(&opts.IncomeLedger, "income-ledger", "", "ledger code for receipts without one")
	cmd.Flags().StringVar(&opts.BankLedger, "bank-ledger", "", "opposite ledger code for rows without one")

	return cmd
}

func importFile(ctx context.Context, im *importer.Importer, parser importer.Parser, path string, opts importer.Options) (*importer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return im.Import(ctx, rows, opts), nil
}

func newVoucherShowCommand(gf *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <type> <number>",
		Short: "Show a posted voucher and its journal entries",
		Args:  cobra.ExactArgs(2),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			vt, err := model.ParseVoucherType(args[0])
			if err != nil {
				return err
			}
			v, err := p.engine.VoucherByNumber(ctx, p.branch, vt, args[1])
			if err != nil {
				return err
			}
			entries, err := p.journal.EntriesForVoucher(ctx, v.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					Voucher *model.Voucher       `json:"voucher"`
					Journal []model.JournalEntry `json:"journal"`
				}{v, entries})
			}

			st := NewStyles(out)
			fmt.Fprintf(out, "%s %s %s  %s\n", st.Keyword(string(v.Type)), v.VoucherNumber,
				v.Date.Format(journal.DateFormat), st.Amount(v.TotalAmount.StringFixed(2)))
			if v.Narration != "" {
				fmt.Fprintf(out, "  %s\n", v.Narration)
			}
			for _, e := range entries {
				l, err := p.accounts.GetLedger(ctx, e.LedgerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-6s %-10s %-24s %12s  %s\n", e.Type, st.Code(l.Code), l.Name,
					e.Amount.StringFixed(2), st.Dim("pre "+e.PreBalance.StringFixed(2)))
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newVoucherEditCommand(gf *globalFlags) *cobra.Command {
	var narration, reference string

	cmd := &cobra.Command{
		Use:   "edit <type> <number>",
		Short: "Change the narration and reference of a posted voucher",
		Args:  cobra.ExactArgs(2),
		RunE: withProject(gf, func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error {
			vt, err := model.ParseVoucherType(args[0])
			if err != nil {
				return err
			}
			v, err := p.engine.VoucherByNumber(ctx, p.branch, vt, args[1])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("narration") {
				narration = v.Narration
			}
			if !cmd.Flags().Changed("reference") {
				reference = v.Reference
			}

			v, err = p.engine.UpdateNarration(ctx, p.actor, v.ID, narration, reference)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s: %q\n", v.Type, v.VoucherNumber, v.Narration)
			return nil
		}),
	}

	cmd.Flags().StringVar(&narration, "narration", "", "new narration")
	cmd.Flags().StringVar(&reference, "reference", "", "new reference")
	return cmd
}
