// Command inboxqd runs the inboxq daemon in the foreground.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inboxq/internal/config"
	"inboxq/internal/daemonrun"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newDaemonCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inboxqd: %v\n", err)
		os.Exit(1)
	}
}

func newDaemonCommand() *cobra.Command {
	var configPath string
	var logLevel string
	var diagnostic bool

	cmd := &cobra.Command{
		Use:           "inboxqd",
		Short:         "Run the inboxq daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				Diagnostic: diagnostic,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a JSON debug log with a session id")
	return cmd
}
