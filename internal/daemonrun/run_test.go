package daemonrun_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inboxq/internal/daemonrun"
	"inboxq/internal/testsupport"
)

func TestRunProcessesFeedUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1), testsupport.WithIntervals(10, 50))
	record := filepath.Join(testsupport.BaseDir(cfg), "processed.txt")
	cfg.Processor.Kind = "command"
	cfg.Processor.Command = []string{
		testsupport.WriteScript(t, filepath.Join(testsupport.BaseDir(cfg), "bin"), "record.sh", `echo "$1" >> "`+record+`"`),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			LogLevel: "debug",
			Feed:     strings.NewReader("first\n\n  second  \n"),
			Quiet:    true,
		})
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		data, _ := os.ReadFile(record)
		lines := strings.Fields(string(data))
		if len(lines) >= 2 {
			if strings.Join(lines, ",") != "first,second" {
				t.Fatalf("unexpected processed values %v", lines)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("feed not processed, got %q", data)
		}
		time.Sleep(10 * time.Millisecond)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "inboxqd.pid")
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("expected pid file while running: %v", err)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.LogDir(), "inboxqd.log")); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
