package config

const (
	defaultStateDir          = "~/.local/share/inboxq"
	defaultStoreDriver       = DriverSQLite
	defaultWorkerCount       = 10
	defaultPollIntervalMs    = 2_500
	defaultCleanupIntervalMs = 120_000
	defaultBatchSize         = 5_000
	defaultBatchDelayMs      = 1_000
	defaultIngestPriority    = "low"
	defaultProcessorKind     = ProcessorNoop
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30

	// MinWorkerCount and MaxWorkerCount bound workers.count.
	MinWorkerCount = 1
	MaxWorkerCount = 1_000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Workers: Workers{
			Count:             defaultWorkerCount,
			PollIntervalMs:    defaultPollIntervalMs,
			CleanupIntervalMs: defaultCleanupIntervalMs,
		},
		Ingest: Ingest{
			BatchSize:    defaultBatchSize,
			BatchDelayMs: defaultBatchDelayMs,
			Priority:     defaultIngestPriority,
		},
		Processor: Processor{
			Kind: defaultProcessorKind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
