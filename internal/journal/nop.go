package journal

import "context"

// Nop discards everything. Used when no journal is configured.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (n *Nop) RecordTrade(context.Context, TradeRecord) error { return nil }
func (n *Nop) RecordDecision(context.Context, Decision) error { return nil }
func (n *Nop) Trades(context.Context) ([]TradeRecord, error) { return nil, nil }
func (n *Nop) Close() error { return nil }
