package collector

import (
	"time"

	"github.com/newthinker/reversion/internal/core"
)

// Provider supplies historical bars ordered ascending by time
type Provider interface {
	Name() string
	FetchHistory(symbol string, start, end time.Time, interval string) ([]core.OHLCV, error)
}
