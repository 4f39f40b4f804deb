package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Processor kinds.
const (
	ProcessorNoop    = "noop"
	ProcessorCommand = "command"
)

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Store selects the relational backend holding the inbox table.
type Store struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// Workers contains worker pool sizing and orchestrator timing.
type Workers struct {
	Count             int `toml:"count"`
	PollIntervalMs    int `toml:"poll_interval_ms"`
	CleanupIntervalMs int `toml:"cleanup_interval_ms"`
}

// Ingest contains batching settings for the BatchWriter.
type Ingest struct {
	BatchSize    int    `toml:"batch_size"`
	BatchDelayMs int    `toml:"batch_delay_ms"`
	Priority     string `toml:"priority"`
}

// Processor selects how claimed values are processed.
type Processor struct {
	Kind    string   `toml:"kind"`
	Command []string `toml:"command"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for inboxq.
//
// Configuration sections by subsystem:
//   - Paths: state directory (SQLite database, lock, pid, logs)
//   - Store: driver (sqlite/postgres), DSN, pool size
//   - Workers: worker count, poll and cleanup intervals
//   - Ingest: batch size, flush delay, default enqueue priority
//   - Processor: processor kind and command line
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Store     Store     `toml:"store"`
	Workers   Workers   `toml:"workers"`
	Ingest    Ingest    `toml:"ingest"`
	Processor Processor `toml:"processor"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inboxq/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inboxq.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory holding per-run daemon logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// CurrentLogPath returns the pointer to the most recent daemon run log.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.LogDir(), "inboxqd.log")
}

// SQLitePath returns the database file used by the sqlite driver.
func (c *Config) SQLitePath() string {
	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.DSN) != "" {
		return c.Store.DSN
	}
	return filepath.Join(c.Paths.StateDir, "inbox.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "inboxqd.lock")
}

// PollInterval returns workers.poll_interval_ms as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workers.PollIntervalMs) * time.Millisecond
}

// CleanupInterval returns workers.cleanup_interval_ms as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Workers.CleanupIntervalMs) * time.Millisecond
}

// BatchDelay returns ingest.batch_delay_ms as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Ingest.BatchDelayMs) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
