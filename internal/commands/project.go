package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/balance"
	"github.com/cleared-dev/branchledger/internal/books"
	"github.com/cleared-dev/branchledger/internal/config"
	"github.com/cleared-dev/branchledger/internal/journal"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/metrics"
	"github.com/cleared-dev/branchledger/internal/posting"
	"github.com/cleared-dev/branchledger/internal/reports"
	"github.com/cleared-dev/branchledger/internal/store"
)

// project holds the open store and every service for one command run.
type project struct {
	dir    string
	cfg    *config.Config
	db     *gorm.DB
	lg     logging.Logger
	branch uint
	actor  string

	registry        *prometheus.Registry
	metrics         *metrics.Metrics
	metricsTextfile string

	accounts *accounts.Service
	books    *books.Service
	journal  *journal.Service
	balances *balance.Engine
	engine   *posting.Engine
	reports  *reports.Service
}

// openProject loads config from the project directory, sets up logging,
// connects to the store and builds the services.
func openProject(gf *globalFlags) (*project, error) {
	dir, err := filepath.Abs(gf.project)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.LoadProject(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logging.Setup(cfg.Logging.Level)
	lg := logging.New("branchledger")

	db, err := store.Connect(cfg.Database, lg.NewSystem("store"))
	if err != nil {
		return nil, err
	}

	branch := gf.branch
	if branch == 0 {
		branch = cfg.Business.DefaultBranch
	}
	actor := gf.actor
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor == "" {
		actor = "cli"
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	return &project{
		dir:             dir,
		cfg:             cfg,
		db:              db,
		lg:              lg,
		branch:          branch,
		actor:           actor,
		registry:        registry,
		metrics:         m,
		metricsTextfile: gf.metricsTextfile,
		accounts:        accounts.NewService(db, lg.NewSystem("accounts")),
		books:           books.NewService(db, lg.NewSystem("books")),
		journal:         journal.NewService(db, lg.NewSystem("journal")),
		balances:        balance.New(db, lg.NewSystem("balance")),
		engine:          posting.NewEngine(db, lg.NewSystem("posting"), m),
		reports:         reports.NewService(db, lg.NewSystem("reports")),
	}, nil
}

// Close flushes metrics and releases the store.
func (p *project) Close() error {
	if p.metricsTextfile != "" {
		if err := metrics.WriteTextfile(p.metricsTextfile, p.registry); err != nil {
			return err
		}
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withProject wraps a command body with openProject and Close.
func withProject(gf *globalFlags, fn func(ctx context.Context, p *project, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		p, err := openProject(gf)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := p.Close(); err == nil {
				err = cerr
			}
		}()
		ctx := logging.WithContext(cmd.Context(), p.lg)
		return fn(ctx, p, cmd, args)
	}
}

func (p *project) branchLabel() string {
	return strconv.FormatUint(uint64(p.branch), 10)
}
