// Package csvfeed reads historical bars from per-symbol CSV files.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/reversion/internal/core"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04",
	"2006-01-02",
}

// Feed serves <dir>/<SYMBOL>.csv files with a time,open,high,low,close[,volume] header
type Feed struct {
	dir string
}

// New creates a feed rooted at dir
func New(dir string) *Feed {
	return &Feed{dir: dir}
}

func (f *Feed) Name() string {
	return "csv"
}

// Path returns the file backing symbol
func (f *Feed) Path(symbol string) string {
	return filepath.Join(f.dir, strings.ToUpper(symbol)+".csv")
}

// FetchHistory loads bars for symbol within [start, end]. Zero bounds are open.
func (f *Feed) FetchHistory(symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if symbol == "" {
		return nil, core.Errorf(core.ErrInvalidArgument, "symbol cannot be empty")
	}
	file, err := os.Open(f.Path(symbol))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.Errorf(core.ErrNoData, "no history file for %s", symbol)
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer file.Close()

	bars, err := Parse(file, symbol, interval)
	if err != nil {
		return nil, err
	}

	out := bars[:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no bars for %s in range", symbol)
	}
	return out, nil
}

// Parse decodes CSV bars and returns them sorted ascending by time
func Parse(r io.Reader, symbol, interval string) ([]core.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, core.Errorf(core.ErrNoData, "reading header: %v", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, core.Errorf(core.ErrInvalidArgument, "missing column %q", required)
		}
	}
	volCol, hasVolume := cols["volume"]

	var bars []core.OHLCV
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTime(rec[cols["time"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := core.OHLCV{Symbol: symbol, Interval: interval, Time: ts}
		fields := []struct {
			col string
			dst *float64
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close},
		}
		for _, fld := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[fld.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing %s: %w", line, fld.col, err)
			}
			*fld.dst = v
		}
		if hasVolume && volCol < len(rec) && strings.TrimSpace(rec[volCol]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[volCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing volume: %w", line, err)
			}
			bar.Volume = int64(v)
		}
		if !bar.IsValid() {
			return nil, core.Errorf(core.ErrInvalidArgument, "line %d: invalid bar", line)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Write encodes bars in the format Parse reads
func Write(w io.Writer, bars []core.OHLCV) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
