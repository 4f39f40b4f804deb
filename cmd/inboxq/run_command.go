package main

import (
	"github.com/spf13/cobra"

	"inboxq/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var diagnostic bool
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:   logLevel,
				Diagnostic: diagnostic,
			}
			if fromStdin {
				opts.Feed = cmd.InOrStdin()
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a JSON debug log with a session id")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Enqueue one value per stdin line while running")
	return cmd
}
