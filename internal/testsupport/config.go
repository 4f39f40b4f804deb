package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"inboxq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test,
// using the SQLite store and fast timers. Options are applied in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Store.Driver = config.DriverSQLite
	cfgVal.Store.DSN = ""
	cfgVal.Workers.Count = 2
	cfgVal.Workers.PollIntervalMs = 20
	cfgVal.Workers.CleanupIntervalMs = 50
	cfgVal.Ingest.BatchSize = 100
	cfgVal.Ingest.BatchDelayMs = 20

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWorkers sets the worker pool size.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = count
	}
}

// WithIntervals overrides the poll and cleanup intervals in milliseconds.
func WithIntervals(pollMs, cleanupMs int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.PollIntervalMs = pollMs
		b.cfg.Workers.CleanupIntervalMs = cleanupMs
	}
}

// WithPostgres points the store at dsn.
func WithPostgres(dsn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Driver = config.DriverPostgres
		b.cfg.Store.DSN = dsn
	}
}

// WithStubbedCommand writes an executable shell script named name with body
// and configures the command processor to run it.
func WithStubbedCommand(name, body string) ConfigOption {
	return func(b *configBuilder) {
		path := WriteScript(b.t, filepath.Join(b.baseDir, "bin"), name, body)
		b.cfg.Processor.Kind = config.ProcessorCommand
		b.cfg.Processor.Command = []string{path}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// PostgresDSN returns INBOXQ_TEST_POSTGRES_DSN or skips the test.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv("INBOXQ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INBOXQ_TEST_POSTGRES_DSN not set")
	}
	return dsn
}
