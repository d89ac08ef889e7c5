// Package store opens the relational store and owns its schema.
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/config"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
)

// Models lists every table the engine persists, in dependency order.
func Models() []any {
	return []any{
		&model.AccountGroup{},
		&model.Ledger{},
		&model.VoucherBook{},
		&model.FinancialYear{},
		&model.JournalBook{},
		&model.Voucher{},
		&model.VoucherEntry{},
		&model.JournalEntry{},
		&auditlog.Entry{},
	}
}

// Connect opens the configured database and migrates the schema.
func Connect(cnf config.DatabaseConfig, lg logging.Logger) (*gorm.DB, error) {
	switch cnf.Driver {
	case "postgres":
		return connectToPostgres(cnf, lg)
	case "sqlite", "":
		return connectToSqlite(cnf, lg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

func connectToSqlite(cnf config.DatabaseConfig, lg logging.Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		lg.Info("connecting to sqlite", "path", cnf.Name)
		dsn = fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", cnf.Name)
	} else {
		lg.Info("connecting to in-memory sqlite")
		dsn = "file::memory:?cache=shared"
	}
	return OpenSqlite(dsn)
}

// OpenSqlite opens and migrates a sqlite database. SQLite allows a single
// writer, so the pool is limited to one connection and transactions queue.
func OpenSqlite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func connectToPostgres(cnf config.DatabaseConfig, lg logging.Logger) (*gorm.DB, error) {
	lg.Info("connecting to postgres", "host", cnf.Host, "database", cnf.Name)

	if cnf.Schema != "" {
		if err := ensurePostgresSchema(cnf); err != nil {
			return nil, fmt.Errorf("ensuring postgres schema: %w", err)
		}
	}
	return OpenPostgres(PostgresDSN(cnf))
}

// OpenPostgres opens and migrates a postgres database.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// PostgresDSN renders a key/value connection string.
func PostgresDSN(cnf config.DatabaseConfig) string {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn
}

func ensurePostgresSchema(cnf config.DatabaseConfig) error {
	base := cnf
	base.Schema = ""
	db, err := gorm.Open(postgres.Open(PostgresDSN(base)), gormConfig())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cnf.Schema)).Error
}
