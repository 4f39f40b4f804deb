package config

import (
	"errors"
	"fmt"
)

var ingestPriorities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateProcessor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is postgres (or set INBOXQ_DSN)")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (use sqlite or postgres)", c.Store.Driver)
	}
	if c.Store.MaxOpenConns < 0 {
		return errors.New("store.max_open_conns must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < MinWorkerCount || c.Workers.Count > MaxWorkerCount {
		return fmt.Errorf("workers.count must be between %d and %d", MinWorkerCount, MaxWorkerCount)
	}
	return ensurePositiveMap(map[string]int{
		"workers.poll_interval_ms":    c.Workers.PollIntervalMs,
		"workers.cleanup_interval_ms": c.Workers.CleanupIntervalMs,
	})
}

func (c *Config) validateIngest() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.batch_size":     c.Ingest.BatchSize,
		"ingest.batch_delay_ms": c.Ingest.BatchDelayMs,
	}); err != nil {
		return err
	}
	if _, ok := ingestPriorities[c.Ingest.Priority]; !ok {
		return fmt.Errorf("ingest.priority: unsupported value %q (use low, medium, or high)", c.Ingest.Priority)
	}
	return nil
}

func (c *Config) validateProcessor() error {
	switch c.Processor.Kind {
	case ProcessorNoop:
		return nil
	case ProcessorCommand:
		if len(c.Processor.Command) == 0 {
			return errors.New("processor.command must be set when processor.kind is command")
		}
		return nil
	default:
		return fmt.Errorf("processor.kind: unsupported value %q (use noop or command)", c.Processor.Kind)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
