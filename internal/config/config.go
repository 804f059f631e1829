package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "payoffcheck.yaml"

// Config represents the top-level payoffcheck.yaml configuration.
type Config struct {
	Store    StoreConfig  `yaml:"store"`
	Checks   ChecksConfig `yaml:"checks"`
	Git      GitConfig    `yaml:"git"`
	LogLevel string       `yaml:"log_level"`
}

// StoreConfig selects where contract records persist between runs.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // csv, xlsx, sqlite, s3, redis, memory
	Dir     string      `yaml:"dir"`     // csv and xlsx
	SQLite  SQLiteStore `yaml:"sqlite,omitempty"`
	S3      S3Store     `yaml:"s3,omitempty"`
	Redis   RedisStore  `yaml:"redis,omitempty"`
}

// SQLiteStore configures the sqlite backend.
type SQLiteStore struct {
	Path string `yaml:"path"`
}

// S3Store configures the s3 backend. Credentials come from the environment
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) when not set here.
type S3Store struct {
	Endpoint     string `yaml:"endpoint,omitempty"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// RedisStore configures the redis backend.
type RedisStore struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// ChecksConfig controls how expected and displayed values are compared.
type ChecksConfig struct {
	Tolerance float64 `yaml:"tolerance"` // absolute, in dollars
}

// GitConfig controls committing the records directory after a run.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a payoffcheck.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Default returns a Config that keeps CSV records under ./records.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "csv",
			Dir:     "records",
			SQLite:  SQLiteStore{Path: "records/payoffcheck.db"},
			S3:      S3Store{Region: "us-east-1", Prefix: "contracts/"},
			Redis:   RedisStore{Addr: "localhost:6379", Prefix: "payoffcheck:contract:"},
		},
		Checks: ChecksConfig{
			Tolerance: 0.01,
		},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "Payoff Check",
			AuthorEmail: "qa@cleared.dev",
		},
		LogLevel: "info",
	}
}

// Validate checks values Load cannot coerce.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "csv", "xlsx", "sqlite", "s3", "redis", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Checks.Tolerance < 0 {
		return fmt.Errorf("checks.tolerance must not be negative, got %v", c.Checks.Tolerance)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}
