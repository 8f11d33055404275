// Package journal persists trade and decision logs.
package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/quality"
)

// Decision values besides a trade side
const (
	DecisionIgnored = "ignored"
)

// TradeRecord is one closed (or simulated) trade
type TradeRecord struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       core.Side        `json:"side"`
	EntryTime  time.Time        `json:"entry_time"`
	EntryPrice float64          `json:"entry_price"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
	Size       float64          `json:"size"`
	Outcome    core.Outcome     `json:"outcome"`
	Profit     float64          `json:"profit"`
	ExitTime   time.Time        `json:"exit_time"`
	ExitPrice  float64          `json:"exit_price"`
	ExitReason string           `json:"exit_reason"`
	Features   *features.Vector `json:"features,omitempty"` // nil when history was too short
}

// Validate checks the record carries what the log needs
func (r TradeRecord) Validate() error {
	if r.Symbol == "" {
		return core.Errorf(core.ErrInvalidArgument, "trade record without symbol")
	}
	if !r.Side.Valid() {
		return core.Errorf(core.ErrInvalidArgument, "trade record side %q", r.Side)
	}
	if r.Outcome != core.OutcomeProfit && r.Outcome != core.OutcomeLoss {
		return core.Errorf(core.ErrInvalidArgument, "trade record outcome %q", r.Outcome)
	}
	if r.Features != nil {
		return r.Features.Validate()
	}
	return nil
}

// Decision is one evaluated bar: a trade side or DecisionIgnored with why
type Decision struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"time"`
	Decision string    `json:"decision"`
	Reason   string    `json:"reason"`
	Detail   string    `json:"detail"`
}

// Validate checks the decision is attributable
func (d Decision) Validate() error {
	if d.Symbol == "" || d.Decision == "" {
		return core.Errorf(core.ErrInvalidArgument, "decision requires symbol and decision")
	}
	return nil
}

// Recorder appends trades and decisions and reads trades back for training
type Recorder interface {
	RecordTrade(ctx context.Context, r TradeRecord) error
	RecordDecision(ctx context.Context, d Decision) error
	Trades(ctx context.Context) ([]TradeRecord, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config selects a journal backend
type Config struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is a directory for csv and a database file for sqlite.
	Path string `mapstructure:"path" yaml:"path"`
}

// Open creates the configured recorder
func Open(cfg Config, log *zap.Logger) (Recorder, error) {
	switch cfg.Backend {
	case BackendNone:
		return NewNop(), nil
	case "", BackendCSV:
		dir := cfg.Path
		if dir == "" {
			dir = "data"
		}
		return NewCSV(dir, log)
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "journal.db")
		}
		return NewSQLite(path, log)
	default:
		return nil, fmt.Errorf("journal: unknown backend %q", cfg.Backend)
	}
}

// Samples converts records that carry features into training samples.
// Records sharing symbol, side and entry time describe the same trade, as
// happens when a backtest is journaled more than once; only the first counts.
func Samples(records []TradeRecord) []quality.Sample {
	type key struct {
		symbol string
		side   core.Side
		entry  int64
	}
	seen := make(map[key]struct{}, len(records))
	out := make([]quality.Sample, 0, len(records))
	for _, r := range records {
		if r.Features == nil {
			continue
		}
		k := key{r.Symbol, r.Side, r.EntryTime.UnixNano()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, quality.Sample{Features: *r.Features, Outcome: r.Outcome})
	}
	return out
}
