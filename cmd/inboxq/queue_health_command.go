package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"inboxq/internal/preflight"
	"inboxq/internal/processor"
	"inboxq/internal/queue"
)

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health and daemon readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				version, versionErr := store.SchemaVersion(cmd.Context())
				if versionErr != nil {
					version = "unknown"
				}

				var checks []preflight.Result
				proc, procErr := processor.New(cfg)
				if procErr != nil {
					checks = preflight.RunAll(cmd.Context(), cfg, store, nil)
					checks = append(checks, preflight.Result{Name: "Processor", Detail: procErr.Error()})
				} else {
					checks = preflight.RunAll(cmd.Context(), cfg, store, proc)
				}

				if asJSON {
					return writeJSON(cmd, struct {
						Database      queue.DatabaseHealth `json:"database"`
						SchemaVersion string               `json:"schema_version"`
						Checks        []preflight.Result   `json:"checks"`
					}{health, version, checks})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Driver: %s\n", health.Driver)
				fmt.Fprintf(out, "Database: %s\n", health.Location)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", version)
				fmt.Fprintf(out, "inbox_items table present: %s\n", yesNo(health.TableExists))
				if len(health.ColumnsPresent) > 0 {
					cols := append([]string(nil), health.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(health.MissingColumns) > 0 {
					missing := append([]string(nil), health.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", health.IntegrityCheck)
				fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}

				rows := make([][]string, 0, len(checks))
				for _, check := range checks {
					state := "OK"
					if !check.Passed {
						state = "FAIL"
					}
					rows = append(rows, []string{check.Name, state, check.Detail})
				}
				fmt.Fprint(out, renderTable(out, []string{"Check", "State", "Detail"}, rows, nil))
				if !preflight.AllPassed(checks) {
					return fmt.Errorf("one or more health checks failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the report as JSON")
	return cmd
}
