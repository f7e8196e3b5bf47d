package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func chartPayload(ts []int64, closes []any, adj []any) map[string]any {
	indicators := map[string]any{
		"quote": []any{map[string]any{"close": closes}},
	}
	if adj != nil {
		indicators["adjclose"] = []any{map[string]any{"adjclose": adj}}
	}
	return map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":       map[string]any{"symbol": "^FCHI", "currency": "EUR", "gmtoffset": 3600},
				"timestamp":  ts,
				"indicators": indicators,
			}},
			"error": nil,
		},
	}
}

func testYahoo(url string) *Yahoo {
	return NewYahoo(YahooOptions{
		BaseURL:        url,
		Timeout:        time.Second,
		UserAgent:      "test",
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxElapsed:     time.Second,
	}, noopLogger())
}

var (
	jan2 = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC).Unix()
	jan3 = time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC).Unix()
	jan4 = time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC).Unix()
)

func TestYahooFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/^FCHI" {
			t.Errorf("路径不正确: %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("interval 应为 1d")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chartPayload(
			[]int64{jan2, jan3, jan4},
			[]any{100.0, 101.0, nil},
			[]any{99.0, nil, 102.0},
		))
	}))
	defer srv.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	points, err := testYahoo(srv.URL).Fetch(context.Background(), "^FCHI", start, end)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("期望 3 个点, 实际 %d", len(points))
	}
	if points[0].Close != 99 {
		t.Fatalf("应优先使用 adjclose, 实际 %v", points[0].Close)
	}
	if !math.IsNaN(points[1].Close) {
		t.Fatalf("缺失值应为 NaN")
	}
	if !points[2].Date.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("日期应截断到天, 实际 %s", points[2].Date)
	}
}

func TestYahooFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(chartPayload([]int64{jan2, jan3}, []any{1.0, 2.0}, nil))
	}))
	defer srv.Close()

	points, err := testYahoo(srv.URL).Fetch(context.Background(), "X", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("重试后应成功: %v", err)
	}
	if len(points) != 2 || points[1].Close != 2 {
		t.Fatalf("应回退到 quote.close: %+v", points)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("期望 3 次请求, 实际 %d", calls)
	}
}

func TestYahooFetchNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart": map[string]any{"result": nil, "error": map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"}},
		})
	}))
	defer srv.Close()

	_, err := testYahoo(srv.URL).Fetch(context.Background(), "NOPE", time.Time{}, time.Time{})
	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("应返回 DataSourceError, 实际 %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("404 不应重试, 实际 %d 次", calls)
	}
}

func TestYahooFetchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"chart": map[string]any{"result": []any{}, "error": nil}})
	}))
	defer srv.Close()

	_, err := testYahoo(srv.URL).Fetch(context.Background(), "EMPTY", time.Time{}, time.Time{})
	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("空数据应返回 DataSourceError, 实际 %v", err)
	}
}

func TestYahooFetchMissingCloseColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chartPayload([]int64{1704700800, 1704787200}, []any{}, []any{}))
	}))
	defer srv.Close()

	_, err := testYahoo(srv.URL).Fetch(context.Background(), "^FCHI", time.Time{}, time.Time{})
	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("缺少收盘价列应返回 DataSourceError, 实际 %v", err)
	}
	if !strings.Contains(dsErr.Reason, "close column not found") {
		t.Fatalf("unexpected reason: %s", dsErr.Reason)
	}
}

func TestYahooFetchMissingTicker(t *testing.T) {
	if _, err := testYahoo("http://127.0.0.1:0").Fetch(context.Background(), " ", time.Time{}, time.Time{}); err == nil {
		t.Fatal("缺少 ticker 时应返回错误")
	}
}

func TestResolveTicker(t *testing.T) {
	if got := ResolveTicker("CAC40"); got != "^FCHI" {
		t.Fatalf("preset 解析错误: %s", got)
	}
	if got := ResolveTicker(" AAPL "); got != "AAPL" {
		t.Fatalf("非 preset 应原样返回: %s", got)
	}
}

func TestPresetsIsACopy(t *testing.T) {
	p := Presets()
	if len(p) != 5 || p["lvmh"] != "MC.PA" {
		t.Fatalf("unexpected presets: %v", p)
	}
	p["lvmh"] = "X"
	if ResolveTicker("lvmh") != "MC.PA" {
		t.Fatal("Presets must not expose the internal map")
	}
}
