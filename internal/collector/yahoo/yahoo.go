package yahoo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/reversion/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches FX pairs like EURUSD and quoted forms like EURUSD=X or GC=F
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9.^]{1,12}(=[A-Za-z]{1,2})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches historical bars from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo provider
func New() *Yahoo {
	return NewWithClient(defaultBaseURL, &http.Client{
		Timeout: 10 * time.Second,
	})
}

// NewWithClient creates a provider against a custom endpoint
func NewWithClient(baseURL string, client *http.Client) *Yahoo {
	if client == nil {
		client = http.DefaultClient
	}
	return &Yahoo{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts a six-letter FX pair to Yahoo's quote form
func toYahooSymbol(symbol string) string {
	if strings.Contains(symbol, "=") || strings.Contains(symbol, ".") {
		return symbol
	}
	if len(symbol) == 6 && strings.ToUpper(symbol) == symbol {
		return symbol + "=X"
	}
	return symbol
}

// FetchHistory fetches historical OHLCV data
func (y *Yahoo) FetchHistory(symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrInvalidArgument, err)
	}
	yahooInterval, err := toYahooInterval(interval)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidArgument, err)
	}

	url := fmt.Sprintf("%s/%s?interval=%s&period1=%d&period2=%d",
		y.baseURL, toYahooSymbol(symbol), yahooInterval, start.Unix(), end.Unix())

	resp, err := y.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no data for symbol: %s", symbol)
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if !quotes.complete(i) {
			continue // Skip missing data
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     *quotes.Open[i],
			High:     *quotes.High[i],
			Low:      *quotes.Low[i],
			Close:    *quotes.Close[i],
			Volume:   volume,
			Time:     time.Unix(ts, 0).UTC(),
		})
	}
	if len(data) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no complete bars for symbol: %s", symbol)
	}

	return data, nil
}

// toYahooInterval maps broker timeframes onto chart API intervals
func toYahooInterval(interval string) (string, error) {
	switch strings.ToUpper(interval) {
	case "M1", "1M":
		return "1m", nil
	case "M5", "5M":
		return "5m", nil
	case "M15", "15M":
		return "15m", nil
	case "M30", "30M":
		return "30m", nil
	case "H1", "1H":
		return "1h", nil
	case "D1", "1D", "":
		return "1d", nil
	case "W1", "1WK":
		return "1wk", nil
	default:
		return "", fmt.Errorf("unsupported interval: %s", interval)
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

func (q quoteIndicator) complete(i int) bool {
	for _, col := range [][]*float64{q.Open, q.High, q.Low, q.Close} {
		if i >= len(col) || col[i] == nil {
			return false
		}
	}
	return true
}
