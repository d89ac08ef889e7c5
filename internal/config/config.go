package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = "branchledger.yaml"

// Config represents the top-level branchledger.yaml configuration.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Fiscal   FiscalConfig   `yaml:"fiscal"`
	Trading  TradingConfig  `yaml:"trading"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name          string `yaml:"name"`
	DefaultBranch uint   `yaml:"default_branch"`
}

// DatabaseConfig selects the relational store.
//
// For sqlite only Name is used (empty means in-memory). Postgres needs the
// connection fields. Every field can be overridden from the environment.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"BRANCHLEDGER_DATABASE_DRIVER"`
	Name     string `yaml:"name" env:"BRANCHLEDGER_DATABASE_NAME"`
	Host     string `yaml:"host,omitempty" env:"BRANCHLEDGER_DATABASE_HOST"`
	Port     string `yaml:"port,omitempty" env:"BRANCHLEDGER_DATABASE_PORT"`
	Username string `yaml:"username,omitempty" env:"BRANCHLEDGER_DATABASE_USERNAME"`
	Password string `yaml:"password,omitempty" env:"BRANCHLEDGER_DATABASE_PASSWORD"`
	Schema   string `yaml:"schema,omitempty" env:"BRANCHLEDGER_DATABASE_SCHEMA"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" env:"BRANCHLEDGER_LOG_LEVEL"`
}

// FiscalConfig defines the fiscal year boundaries.
type FiscalConfig struct {
	YearStart string `yaml:"year_start"` // "MM-DD" format, e.g. "04-01"
}

// TradingConfig maps account group type tags to trading account sections.
type TradingConfig struct {
	PurchaseType      string `yaml:"purchase_type"`
	SalesType         string `yaml:"sales_type"`
	DirectIncomeType  string `yaml:"direct_income_type"`
	DirectExpenseType string `yaml:"direct_expense_type"`
}

// Load reads a branchledger.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadProject reads <dir>/branchledger.yaml, then applies <dir>/.env and
// BRANCHLEDGER_* environment overrides. A missing .env is not an error.
func LoadProject(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if dbURL := os.Getenv("BRANCHLEDGER_DATABASE_URL"); dbURL != "" {
		dbConf, err := ParseConnectionString(dbURL)
		if err != nil {
			return nil, err
		}
		cfg.Database = dbConf
	} else if err := cleanenv.ReadEnv(&cfg.Database); err != nil {
		return nil, fmt.Errorf("reading database env: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("reading logging env: %w", err)
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.Name != "" && !filepath.IsAbs(cfg.Database.Name) {
		cfg.Database.Name = filepath.Join(dir, cfg.Database.Name)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:          businessName,
			DefaultBranch: 1,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Name:   "ledger.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Fiscal: FiscalConfig{
			YearStart: "04-01",
		},
		Trading: TradingConfig{
			PurchaseType:      "PURCHASE",
			SalesType:         "SALES",
			DirectIncomeType:  "DIRECT_INCOME",
			DirectExpenseType: "DIRECT_EXPENSE",
		},
	}
}

// ParseConnectionString turns "file:<path>" into a sqlite config and a
// postgres:// URI into a postgres config.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		name := strings.SplitN(connStr[len("file:"):], "?", 2)[0]
		return DatabaseConfig{Driver: "sqlite", Name: name}, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	var username, password string
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Name:     strings.TrimPrefix(u.Path, "/"),
		Host:     u.Hostname(),
		Port:     port,
		Username: username,
		Password: password,
		Schema:   u.Query().Get("search_path"),
	}, nil
}
