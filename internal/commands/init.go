package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/books"
	"github.com/cleared-dev/branchledger/internal/config"
	"github.com/cleared-dev/branchledger/internal/model"
)

// bookPrefixes are the display prefixes of the books init creates.
var bookPrefixes = map[model.VoucherType]string{
	model.VoucherPayment:    "PV",
	model.VoucherReceipt:    "RV",
	model.VoucherJournal:    "JV",
	model.VoucherContra:     "CV",
	model.VoucherCreditNote: "CN",
	model.VoucherDebitNote:  "DN",
}

func newInitCommand(gf *globalFlags) *cobra.Command {
	var name string
	var yearStart, asOf string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			now := time.Now()
			if asOf != "" {
				if now, err = parseDate(asOf); err != nil {
					return err
				}
			}
			return runInit(cmd, gf, absDir, name, yearStart, now)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&yearStart, "year-start", "04-01", "first day of the financial year (MM-DD)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "open the financial year containing this date (default today)")

	return cmd
}

func runInit(cmd *cobra.Command, gf *globalFlags, dir, name, yearStart string, now time.Time) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	// Create directory structure.
	dirs := []string{
		"import",
		filepath.Join("import", "processed"),
		"exports",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write branchledger.yaml.
	cfg := config.Default(name)
	cfg.Fiscal.YearStart = yearStart
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "exports/\nledger.db\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	flags := *gf
	flags.project = dir
	p, err := openProject(&flags)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := seedBranch(cmd.Context(), p, now); err != nil {
		return err
	}

	st := NewStyles(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "%s ledger project at %s (branch %d)\n", st.Success("Initialized"), dir, p.branch)
	return nil
}

// seedBranch writes the default chart, one voucher book per type and the
// financial year containing now.
func seedBranch(ctx context.Context, p *project, now time.Time) error {
	if _, err := p.accounts.ImportChart(ctx, p.branch, accounts.DefaultChart(), p.actor); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	for _, vt := range model.VoucherTypes {
		if _, err := p.books.CreateVoucherBook(ctx, p.branch, vt, "", bookPrefixes[vt]); err != nil {
			return fmt.Errorf("creating %s book: %w", vt, err)
		}
	}

	start, end, err := books.YearBounds(p.cfg.Fiscal.YearStart, now)
	if err != nil {
		return err
	}
	if _, err := p.books.CreateFinancialYear(ctx, p.branch, start, end); err != nil {
		return fmt.Errorf("creating financial year: %w", err)
	}
	return nil
}
