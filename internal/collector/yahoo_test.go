package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"HiLoBacktester/internal/model"
)

const chartJSON = `{"chart":{"result":[{"meta":{"symbol":"SOL-AUD","currency":"AUD","exchangeTimezoneName":"Australia/Sydney","gmtoffset":36000},
"timestamp":[1704204000,1704117600,1704290400],
"indicators":{"quote":[{"open":[2,1,3],"high":[12,11,null],"low":[10,9,11],"close":[11,10,12],"volume":[200,100,300]}],
"adjclose":[{"adjclose":[11,10,12]}]}}],"error":null}}`

const emptyRangeJSON = `{"chart":{"result":[{"meta":{"symbol":"SOL-AUD"},"indicators":{"quote":[{}],"adjclose":[{}]}}],"error":null}}`

const notFoundJSON = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestYahoo(url string) *YahooFetcher {
	f := NewYahooFetcher("")
	f.BaseURL = url
	return f
}

func TestYahooFetcher_FetchDailyBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/v8/finance/chart/SOL-AUD" || q.Get("interval") != "1d" || q.Get("period1") == "" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame, err := newTestYahoo(srv.URL).FetchDailyBars(context.Background(), "SOL-AUD", start, start.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.Index) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(frame.Index))
	}
	if !frame.Index[0].Before(frame.Index[1]) {
		t.Error("expected rows sorted by timestamp")
	}

	series, err := Normalize(frame)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected the null-high row to be dropped, got %d bars", series.Len())
	}
	// 2024-01-01T14:00Z is midnight on the 2nd in Sydney.
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !series.Bars[0].Date.Equal(want) {
		t.Errorf("expected first date %s, got %s", want, series.Bars[0].Date)
	}
	if series.Bars[0].AdjClose != 10 || series.Bars[0].High != 11 {
		t.Errorf("unexpected first bar %+v", series.Bars[0])
	}
}

func TestYahooFetcher_FallsBackToFullHistory(t *testing.T) {
	var ranged, full int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") == "max" {
			full++
			w.Write([]byte(chartJSON))
			return
		}
		ranged++
		w.Write([]byte(emptyRangeJSON))
	}))
	defer srv.Close()

	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	frame, err := newTestYahoo(srv.URL).FetchDailyBars(context.Background(), "SOL-AUD", start, start.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranged != 1 || full != 1 {
		t.Errorf("expected one ranged and one full request, got %d and %d", ranged, full)
	}
	if frame.Empty() {
		t.Error("expected bars from the full history")
	}
}

func TestYahooFetcher_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(notFoundJSON))
	}))
	defer srv.Close()

	_, err := newTestYahoo(srv.URL).FetchDailyBars(context.Background(), "NOPE", time.Time{}, time.Time{})
	if !errors.Is(err, model.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestYahooFetcher_SymbolMap(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	if _, err := newTestYahoo(srv.URL).FetchDailyBars(context.Background(), "SPX500", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/v8/finance/chart/^GSPC" {
		t.Errorf("expected mapped ticker in path, got %s", path)
	}
}
