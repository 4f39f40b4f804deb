package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inboxq/internal/ingest"
	"inboxq/internal/logging"
	"inboxq/internal/queue"
)

const maxStdinLine = 1 << 20

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var priorityFlag string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "enqueue [values...]",
		Short: "Add values to the queue",
		Long: "Add values to the queue. Values already pending are escalated when the\n" +
			"new priority is higher, finished values are queued again, and values\n" +
			"currently being processed are left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw := priorityFlag
			if strings.TrimSpace(raw) == "" {
				raw = cfg.Ingest.Priority
			}
			priority, err := queue.ParsePriority(raw)
			if err != nil {
				return err
			}
			if len(args) == 0 && !fromStdin {
				return fmt.Errorf("no values given; pass values as arguments or use --stdin")
			}

			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(args) > 0 {
					changed, err := store.AddOrUpdate(cmd.Context(), args, priority)
					if err != nil {
						return fmt.Errorf("enqueue: %w", err)
					}
					fmt.Fprintf(out, "Enqueued %d values at %s priority (%d rows changed)\n", len(args), priority, changed)
				}
				if !fromStdin {
					return nil
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}
				writer := ingest.NewBatchWriter(store, logging.NewComponentLogger(logger, "enqueue"),
					ingest.WithBatchSize(cfg.Ingest.BatchSize),
					ingest.WithFlushDelay(cfg.BatchDelay()),
					ingest.WithPriority(priority),
				)
				if err := writer.Start(cmd.Context()); err != nil {
					return err
				}
				scanner := bufio.NewScanner(cmd.InOrStdin())
				scanner.Buffer(make([]byte, 0, 64*1024), maxStdinLine)
				for scanner.Scan() {
					if line := strings.TrimSpace(scanner.Text()); line != "" {
						writer.Enqueue(line)
					}
				}
				scanErr := scanner.Err()
				if err := writer.Close(cmd.Context()); err != nil {
					return fmt.Errorf("flush stdin values: %w", err)
				}
				stats := writer.Stats()
				fmt.Fprintf(out, "Read %d lines from stdin: %d flushed in %d batches", stats.Enqueued, stats.Flushed, stats.Batches)
				if stats.Merged > 0 {
					fmt.Fprintf(out, ", %d repeats merged", stats.Merged)
				}
				if stats.FailedBatches > 0 {
					fmt.Fprintf(out, ", %d batches failed (%d values dropped)", stats.FailedBatches, stats.Dropped)
				}
				fmt.Fprintln(out)
				if scanErr != nil {
					return fmt.Errorf("read stdin: %w", scanErr)
				}
				if stats.FailedBatches > 0 {
					return fmt.Errorf("%d batches failed to flush", stats.FailedBatches)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&priorityFlag, "priority", "p", "", "Priority: low, medium, or high (default from ingest.priority)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read one value per line from stdin")
	return cmd
}
