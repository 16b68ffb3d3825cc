package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol       string `json:"symbol"`
				Currency     string `json:"currency"`
				Timezone     string `json:"exchangeTimezoneName"`
				GMTOffset    int    `json:"gmtoffset"`
				FirstTradeTS int64  `json:"firstTradeDate"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return math.NaN()
	}
	return *values[i]
}

// FetchDailyBars downloads daily bars for [start, end). When Yahoo has nothing
// in that range but knows the symbol, the full history is fetched instead.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.RawFrame, error) {
	if start.IsZero() && end.IsZero() {
		return f.fetchChart(ctx, symbol, url.Values{"range": {"max"}})
	}
	if end.IsZero() {
		end = time.Now()
	}
	q := url.Values{
		"period1": {fmt.Sprint(start.Unix())},
		"period2": {fmt.Sprint(end.Unix())},
	}
	frame, err := f.fetchChart(ctx, symbol, q)
	if !errors.Is(err, errRangeEmpty) {
		return frame, err
	}
	log.Info().Str("symbol", symbol).
		Str("start", start.Format(time.DateOnly)).
		Str("end", end.Format(time.DateOnly)).
		Msg("range empty; fetching full history")
	frame, err = f.fetchChart(ctx, symbol, url.Values{"range": {"max"}})
	if errors.Is(err, errRangeEmpty) {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, model.ErrNoData)
	}
	return frame, err
}

// errRangeEmpty marks a known symbol without bars in the requested window.
var errRangeEmpty = errors.New("yahoo: no data in range")

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, q url.Values) (*model.RawFrame, error) {
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div|split")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	// Errors come back as a chart.error object, with or without a non-200 status.
	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)
	if decodeErr == nil && chart.Chart.Error != nil {
		switch {
		case chart.Chart.Error.Code == "Not Found":
			return nil, fmt.Errorf("yahoo %s: %w", symbol, model.ErrNoData)
		case strings.Contains(chart.Chart.Error.Description, "doesn't exist"):
			return nil, errRangeEmpty
		default:
			return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, model.ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w", decodeErr)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, model.ErrNoData)
	}
	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, errRangeEmpty
	}

	loc := time.UTC
	if result.Meta.GMTOffset != 0 {
		loc = time.FixedZone(result.Meta.Timezone, result.Meta.GMTOffset)
	}

	quote := result.Indicators.Quote[0]
	columns := [][]*float64{quote.Open, quote.High, quote.Low, quote.Close}
	names := []string{FieldOpen, FieldHigh, FieldLow, FieldClose}
	if len(result.Indicators.AdjClose) > 0 {
		columns = append(columns, result.Indicators.AdjClose[0].AdjClose)
		names = append(names, FieldAdjClose)
	}
	columns = append(columns, quote.Volume)
	names = append(names, FieldVolume)

	// Same shape as a grouped-by-column yfinance download: {field, ticker}.
	frame := &model.RawFrame{Symbol: symbol}
	for _, name := range names {
		frame.Columns = append(frame.Columns, model.ColumnKey{name, symbol})
	}

	order := make([]int, len(result.Timestamp))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return result.Timestamp[order[a]] < result.Timestamp[order[b]] })

	for _, i := range order {
		row := make([]float64, len(columns))
		for j, col := range columns {
			row[j] = toFloat(col, i)
		}
		frame.Index = append(frame.Index, time.Unix(result.Timestamp[i], 0).In(loc))
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}
