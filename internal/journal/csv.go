package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/logger"
)

const (
	tradesFile    = "trades.csv"
	decisionsFile = "decisions.csv"
)

var tradeHeader = append([]string{
	"id", "symbol", "side", "entry_time", "entry_price", "stop_loss", "take_profit",
	"size", "outcome", "profit", "exit_time", "exit_price", "exit_reason",
}, features.Names[:]...)

var decisionHeader = []string{"symbol", "time", "decision", "reason", "detail"}

// CSV appends records to trades.csv and decisions.csv in a directory. Each
// file gets its header once, when it is created.
type CSV struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewCSV creates the directory if needed
func NewCSV(dir string, log *zap.Logger) (*CSV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}
	c := &CSV{dir: dir, logger: logger.Component(log, "journal", zap.String("backend", BackendCSV))}
	c.logger.Info("csv journal opened", zap.String("dir", dir))
	return c, nil
}

func (c *CSV) RecordTrade(ctx context.Context, r TradeRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return c.appendRow(tradesFile, tradeHeader, encodeTrade(r))
}

func (c *CSV) RecordDecision(ctx context.Context, d Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return c.appendRow(decisionsFile, decisionHeader, []string{
		d.Symbol, formatTime(d.Time), d.Decision, d.Reason, d.Detail,
	})
}

func (c *CSV) appendRow(name string, header, row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return core.WrapError(core.ErrStorageFailed, err)
		}
	}
	if err := w.Write(row); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// Trades reads every trade back; a missing file yields no trades
func (c *CSV) Trades(ctx context.Context) ([]TradeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(filepath.Join(c.dir, tradesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = len(tradeHeader)

	var out []TradeRecord
	for line := 0; ; line++ {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		if line == 0 {
			continue
		}
		r, err := decodeTrade(row)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s line %d: %w", tradesFile, line+1, err))
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *CSV) Close() error { return nil }

func encodeTrade(r TradeRecord) []string {
	row := []string{
		r.ID,
		r.Symbol,
		string(r.Side),
		formatTime(r.EntryTime),
		formatFloat(r.EntryPrice),
		formatFloat(r.StopLoss),
		formatFloat(r.TakeProfit),
		formatFloat(r.Size),
		string(r.Outcome),
		formatFloat(r.Profit),
		formatTime(r.ExitTime),
		formatFloat(r.ExitPrice),
		r.ExitReason,
	}
	if r.Features == nil {
		return append(row, make([]string, features.Len)...)
	}
	for _, v := range r.Features.Slice() {
		row = append(row, formatFloat(v))
	}
	return row
}

func decodeTrade(row []string) (TradeRecord, error) {
	var (
		r    TradeRecord
		errs []error
	)
	float := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	when := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			errs = append(errs, err)
		}
		return t
	}

	r.ID = row[0]
	r.Symbol = row[1]
	r.Side = core.Side(row[2])
	r.EntryTime = when(row[3])
	r.EntryPrice = float(row[4])
	r.StopLoss = float(row[5])
	r.TakeProfit = float(row[6])
	r.Size = float(row[7])
	r.Outcome = core.Outcome(row[8])
	r.Profit = float(row[9])
	r.ExitTime = when(row[10])
	r.ExitPrice = float(row[11])
	r.ExitReason = row[12]

	if raw := row[13:]; raw[0] != "" {
		values := make([]float64, len(raw))
		for i, s := range raw {
			values[i] = float(s)
		}
		if len(errs) == 0 {
			v, err := features.FromSlice(values)
			if err != nil {
				return TradeRecord{}, err
			}
			r.Features = &v
		}
	}
	if len(errs) > 0 {
		return TradeRecord{}, errors.Join(errs...)
	}
	return r, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
