// Package processor defines the callback workers invoke for each claimed value.
package processor

import (
	"context"
	"fmt"

	"inboxq/internal/config"
	"inboxq/internal/services"
)

// Processor handles one claimed value. Returning true marks the item Done.
// Returning false, an error, or panicking releases the item back to Pending at
// its pre-claim priority.
type Processor interface {
	Process(ctx context.Context, value string) (bool, error)
	HealthCheck(ctx context.Context) Health
}

// New builds the processor selected by processor.kind.
func New(cfg *config.Config) (Processor, error) {
	if cfg == nil {
		return Noop{}, nil
	}
	switch cfg.Processor.Kind {
	case "", config.ProcessorNoop:
		return Noop{}, nil
	case config.ProcessorCommand:
		return NewCommand(cfg.Processor.Command)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "processor", "new",
			fmt.Sprintf("unknown processor kind %q", cfg.Processor.Kind), nil)
	}
}

// Noop accepts every value.
type Noop struct{}

func (Noop) Process(context.Context, string) (bool, error) { return true, nil }

func (Noop) HealthCheck(context.Context) Health { return Healthy("noop") }

// Func adapts a plain function to Processor.
type Func func(ctx context.Context, value string) (bool, error)

func (f Func) Process(ctx context.Context, value string) (bool, error) {
	if f == nil {
		return false, services.Wrap(services.ErrProcessor, "processor", "process", "nil func processor", nil)
	}
	return f(ctx, value)
}

func (f Func) HealthCheck(context.Context) Health {
	if f == nil {
		return Unhealthy("func", "function not set")
	}
	return Healthy("func")
}
