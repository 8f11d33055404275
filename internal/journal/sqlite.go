package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/logger"
)

// SQLite persists trades and decisions to a SQLite database.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLite opens (or creates) the database and runs migrations.
func NewSQLite(dbPath string, log *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets reports read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db, logger: logger.Component(log, "journal", zap.String("backend", BackendSQLite))}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("sqlite journal opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			side        TEXT NOT NULL,
			entry_time  INTEGER NOT NULL,
			entry_price REAL,
			stop_loss   REAL,
			take_profit REAL,
			size        REAL,
			outcome     TEXT NOT NULL,
			profit      REAL,
			exit_time   INTEGER,
			exit_price  REAL,
			exit_reason TEXT,
			features    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_entry ON trades(entry_time)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			decision  TEXT NOT NULL,
			reason    TEXT,
			detail    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLite) RecordTrade(ctx context.Context, r TradeRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	var feats sql.NullString
	if r.Features != nil {
		data, err := json.Marshal(r.Features)
		if err != nil {
			return fmt.Errorf("encoding features: %w", err)
		}
		feats = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO trades
		(id, symbol, side, entry_time, entry_price, stop_loss, take_profit, size,
		 outcome, profit, exit_time, exit_price, exit_reason, features)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Symbol, string(r.Side), r.EntryTime.UnixNano(), r.EntryPrice, r.StopLoss, r.TakeProfit, r.Size,
		string(r.Outcome), r.Profit, r.ExitTime.UnixNano(), r.ExitPrice, r.ExitReason, feats,
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (s *SQLite) RecordDecision(ctx context.Context, d Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO decisions
		(symbol, timestamp, decision, reason, detail)
		VALUES (?,?,?,?,?)`,
		d.Symbol, d.Time.UnixNano(), d.Decision, d.Reason, d.Detail,
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// Trades returns every trade ordered by entry time
func (s *SQLite) Trades(ctx context.Context) ([]TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, symbol, side, entry_time, entry_price, stop_loss, take_profit, size,
		outcome, profit, exit_time, exit_price, exit_reason, features
		FROM trades ORDER BY entry_time, id`)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			r               TradeRecord
			side, outcome   string
			entryNs, exitNs int64
			feats           sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &side, &entryNs, &r.EntryPrice, &r.StopLoss, &r.TakeProfit, &r.Size,
			&outcome, &r.Profit, &exitNs, &r.ExitPrice, &r.ExitReason, &feats); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		r.Side = core.Side(side)
		r.Outcome = core.Outcome(outcome)
		r.EntryTime = time.Unix(0, entryNs).UTC()
		r.ExitTime = time.Unix(0, exitNs).UTC()
		if feats.Valid {
			v, err := decodeFeatures(feats.String)
			if err != nil {
				return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("trade %s: %w", r.ID, err))
			}
			r.Features = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return out, nil
}

// decodeFeatures parses a stored vector. Every field must be present and valid.
func decodeFeatures(raw string) (features.Vector, error) {
	var fields map[string]float64
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return features.Vector{}, err
	}
	values := make([]float64, features.Len)
	for i, name := range features.Names {
		f, ok := fields[name]
		if !ok {
			return features.Vector{}, core.Errorf(core.ErrInvalidArgument, "feature %s missing", name)
		}
		values[i] = f
	}
	return features.FromSlice(values)
}

// Decisions returns the most recent decisions, newest first
func (s *SQLite) Decisions(ctx context.Context, limit int) ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, timestamp, decision, reason, detail
		FROM decisions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d  Decision
			ts int64
		)
		if err := rows.Scan(&d.Symbol, &ts, &d.Decision, &d.Reason, &d.Detail); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		d.Time = time.Unix(0, ts).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
