package notifier

import (
	"context"

	"github.com/newthinker/reversion/internal/journal"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Params map[string]any `mapstructure:"params" yaml:"params"`
}

// Notifier delivers trade decisions to an outside channel
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single decision
	Send(ctx context.Context, d journal.Decision) error

	// SendBatch delivers the decisions of one cycle together
	SendBatch(ctx context.Context, ds []journal.Decision) error
}

// Actionable keeps buy and sell decisions, dropping ignored ones
func Actionable(ds []journal.Decision) []journal.Decision {
	var out []journal.Decision
	for _, d := range ds {
		if d.Decision != journal.DecisionIgnored {
			out = append(out, d)
		}
	}
	return out
}
