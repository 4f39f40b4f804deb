package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"inboxq/internal/services"
)

// EnvValue carries the claimed value to command processors.
const EnvValue = "INBOXQ_VALUE"

const (
	maxOutputDetail = 512
	waitDelay       = 2 * time.Second
)

// Command runs an external program per value. The value is appended as the
// final argument and exported as INBOXQ_VALUE. Exit status 0 is success; any
// other exit status is a processing failure.
type Command struct {
	argv []string
}

// NewCommand validates argv and returns a command processor.
func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "processor", "new command",
			"processor.command must name a program", nil)
	}
	return &Command{argv: append([]string(nil), argv...)}, nil
}

// Argv returns the configured command line without the value argument.
func (c *Command) Argv() []string {
	return append([]string(nil), c.argv...)
}

func (c *Command) Process(ctx context.Context, value string) (bool, error) {
	args := append(append([]string(nil), c.argv[1:]...), value)
	cmd := exec.CommandContext(ctx, c.argv[0], args...) //nolint:gosec
	cmd.Env = append(os.Environ(), EnvValue+"="+value)
	cmd.WaitDelay = waitDelay

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return false, nil
	}
	return false, services.Wrap(services.ErrProcessor, "processor", "run command",
		fmt.Sprintf("%s: %s", c.argv[0], trimOutput(output.String())), err)
}

func (c *Command) HealthCheck(context.Context) Health {
	path, err := exec.LookPath(c.argv[0])
	if err != nil {
		return Unhealthy("command", fmt.Sprintf("%s not executable: %v", c.argv[0], err))
	}
	return Health{Name: "command", Ready: true, Detail: path}
}

// trimOutput keeps the tail of out, at most maxOutputDetail bytes, starting on
// a rune boundary.
func trimOutput(out string) string {
	out = strings.TrimSpace(out)
	if len(out) > maxOutputDetail {
		start := len(out) - maxOutputDetail
		for start < len(out) && !utf8.RuneStart(out[start]) {
			start++
		}
		return out[start:]
	}
	if out == "" {
		return "no output"
	}
	return out
}
