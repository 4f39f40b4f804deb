package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeProcessor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3":
		c.Store.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Store.Driver = DriverPostgres
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("INBOXQ_DSN"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN != "" {
		var err error
		if c.Store.DSN, err = expandPath(c.Store.DSN); err != nil {
			return fmt.Errorf("store.dsn: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeIngest() {
	c.Ingest.Priority = strings.ToLower(strings.TrimSpace(c.Ingest.Priority))
	if c.Ingest.Priority == "" {
		c.Ingest.Priority = defaultIngestPriority
	}
}

func (c *Config) normalizeProcessor() {
	c.Processor.Kind = strings.ToLower(strings.TrimSpace(c.Processor.Kind))
	if c.Processor.Kind == "" {
		c.Processor.Kind = defaultProcessorKind
	}
	args := make([]string, 0, len(c.Processor.Command))
	for _, arg := range c.Processor.Command {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		args = append(args, arg)
	}
	c.Processor.Command = args
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
