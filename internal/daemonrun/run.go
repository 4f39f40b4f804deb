package daemonrun

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"inboxq/internal/config"
	"inboxq/internal/daemon"
	"inboxq/internal/ingest"
	"inboxq/internal/logging"
	"inboxq/internal/preflight"
	"inboxq/internal/processor"
	"inboxq/internal/queue"
	"inboxq/internal/services"
	"inboxq/internal/workflow"
)

const maxFeedLine = 1 << 20

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
	// Feed, when set, is read line by line and each non-blank line is enqueued.
	Feed io.Reader
	// Quiet drops the stdout log sink; the per-run log file is still written.
	Quiet bool
}

// Run starts the inboxq daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logDir := cfg.LogDir()
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(logDir, fmt.Sprintf("inboxqd-%s.log", runID))

	var sessionID, debugLogPath string
	if opts.Diagnostic {
		sessionID = uuid.NewString()
		debugDir := filepath.Join(logDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("inboxqd-%s.log", runID))
	}

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout", logPath}
	errorOutputs := []string{"stderr", logPath}
	if opts.Quiet {
		outputs = []string{logPath}
		errorOutputs = []string{logPath}
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
			SessionID:        sessionID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(filepath.Join(logDir, "debug"), debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/inboxqd.log link: %v\n", err)
			}
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	if err := ensureCurrentLogPointer(logDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update inboxqd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: logDir, Pattern: "inboxqd-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(logDir, "debug"), Pattern: "inboxqd-*.log", Exclude: []string{debugLogPath}},
	)

	pidPath := filepath.Join(cfg.Paths.StateDir, "inboxqd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store.driver and store.dsn"),
		)
		return err
	}
	defer store.Close()

	proc, err := processor.New(cfg)
	if err != nil {
		return fmt.Errorf("build processor: %w", err)
	}

	logPreflightSnapshot(signalCtx, logger, cfg, store, proc)

	priority, err := queue.ParsePriority(cfg.Ingest.Priority)
	if err != nil {
		return fmt.Errorf("ingest priority: %w", err)
	}
	writer := ingest.NewBatchWriter(store, logger,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithFlushDelay(cfg.BatchDelay()),
		ingest.WithPriority(priority),
	)
	manager := workflow.NewManager(cfg, store, proc, logger)

	d, err := daemon.New(cfg, store, manager, writer, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Every item log line of this run carries the run id as correlation_id.
	if err := d.Start(services.WithRequestID(signalCtx, runID)); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file and queue database access"),
		)
		return err
	}

	if opts.Feed != nil {
		go feed(signalCtx, logger, opts.Feed, d)
	}

	<-signalCtx.Done()
	logger.Info("inboxq daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// feed enqueues each non-blank line of r until EOF or ctx is done.
func feed(ctx context.Context, logger *slog.Logger, r io.Reader, d *daemon.Daemon) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFeedLine)
	count := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.Enqueue(line)
		count++
	}
	if err := scanner.Err(); err != nil {
		logging.WarnWithContext(logger, "input feed stopped", "feed_failed",
			logging.Error(err),
			logging.Int("lines", count),
			logging.String(logging.FieldImpact, "remaining input was not enqueued"),
		)
		return
	}
	logger.Info("input feed finished",
		logging.String(logging.FieldEventType, "feed_finished"),
		logging.Int("lines", count),
	)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "inboxqd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, store *queue.Store, proc processor.Processor) {
	results := preflight.RunAll(ctx, cfg, store, proc)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "preflight_snapshot"),
		logging.String("store_driver", store.Driver()),
		logging.String("store_location", store.Location()),
		logging.Int("workers", cfg.Workers.Count),
		logging.String("processor", cfg.Processor.Kind),
	}
	for _, r := range results {
		attrs = append(attrs, logging.Bool(strings.ToLower(strings.ReplaceAll(r.Name, " ", "_"))+"_ok", r.Passed))
		if !r.Passed {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldImpact, "daemon may not process queue items"),
			)
		}
	}
	logger.Info("preflight snapshot", logging.Args(attrs...)...)
}
