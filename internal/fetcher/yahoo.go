package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"riskwatch/internal/series"
)

const (
	yahooSource     = "yahoo"
	yahooChartPath  = "/v8/finance/chart/"
	defaultYahooURL = "https://query1.finance.yahoo.com"
)

// YahooOptions parameterise the Yahoo chart API source.
type YahooOptions struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxElapsed     time.Duration
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64
}

// Yahoo downloads adjusted daily closes from the Yahoo Finance chart API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewYahoo constructs a Yahoo source.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: limiter,
	}
}

// Fetch downloads closes for ticker in [start, end), retrying transient failures.
func (y *Yahoo) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]series.PricePoint, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: "ticker is required"}
	}

	var payload []byte
	attempt := 0
	op := func() error {
		attempt++
		if err := y.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		body, err := y.request(ctx, ticker, start, end)
		if err != nil {
			y.logger.Warn().Err(err).Str("ticker", ticker).Int("attempt", attempt).Msg("chart request failed")
			return err
		}
		payload = body
		return nil
	}

	if err := backoff.Retry(op, y.retryPolicy(ctx)); err != nil {
		var dsErr *DataSourceError
		if errors.As(err, &dsErr) {
			return nil, dsErr
		}
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: "request failed", Err: err}
	}

	points, err := parseChart(ticker, payload)
	if err != nil {
		return nil, err
	}

	filtered := points[:0]
	for _, p := range points {
		if inRange(p.Date, start, end) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: "no data returned, check the ticker"}
	}

	y.logger.Debug().Str("ticker", ticker).Int("points", len(filtered)).Int("attempts", attempt).Msg("prices fetched")
	return filtered, nil
}

func (y *Yahoo) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if y.opts.InitialBackoff > 0 {
		exp.InitialInterval = y.opts.InitialBackoff
	}
	exp.MaxElapsedTime = 2 * time.Minute
	if y.opts.MaxElapsed > 0 {
		exp.MaxElapsedTime = y.opts.MaxElapsed
	}

	var policy backoff.BackOff = exp
	if y.opts.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, y.opts.MaxRetries)
	}
	return backoff.WithContext(policy, ctx)
}

func (y *Yahoo) request(ctx context.Context, ticker string, start, end time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("includeAdjustedClose", "true")
	if end.IsZero() {
		end = time.Now().UTC()
	}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))

	endpoint := y.baseURL + yahooChartPath + url.PathEscape(ticker) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "riskwatch/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, parseHTTPError(ticker, resp.StatusCode, body)
	default:
		return nil, backoff.Permanent(parseHTTPError(ticker, resp.StatusCode, body))
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func parseChart(ticker string, payload []byte) ([]series.PricePoint, error) {
	var res chartResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: "malformed chart payload", Err: err}
	}
	if res.Chart.Error != nil {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: fmt.Sprintf("%s: %s", res.Chart.Error.Code, res.Chart.Error.Description)}
	}
	if len(res.Chart.Result) == 0 || len(res.Chart.Result[0].Timestamp) == 0 {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: "no data returned, check the ticker"}
	}

	result := res.Chart.Result[0]
	closes, err := closeColumn(result)
	if err != nil {
		return nil, &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: err.Error()}
	}

	offset := time.Duration(result.Meta.GMTOffset) * time.Second
	points := make([]series.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		v := math.NaN()
		if i < len(closes) && closes[i] != nil {
			v = *closes[i]
		}
		points = append(points, series.PricePoint{
			Date:  series.Day(time.Unix(ts, 0).UTC().Add(offset)),
			Close: v,
		})
	}
	return points, nil
}

// closeColumn prefers adjusted closes, matching auto-adjusted downloads.
func closeColumn(r chartResult) ([]*float64, error) {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0 {
		return r.Indicators.AdjClose[0].AdjClose, nil
	}
	if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Close) > 0 {
		return r.Indicators.Quote[0].Close, nil
	}
	return nil, errors.New("close column not found in chart payload (available: quote, adjclose empty)")
}

func parseHTTPError(ticker string, status int, payload []byte) error {
	var res chartResponse
	if err := json.Unmarshal(payload, &res); err == nil && res.Chart.Error != nil {
		return &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: fmt.Sprintf("http %d: %s", status, res.Chart.Error.Description)}
	}
	if len(payload) > 0 {
		return &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(payload)))}
	}
	return &DataSourceError{Source: yahooSource, Ticker: ticker, Reason: fmt.Sprintf("http %d", status)}
}

var _ PriceSeriesSource = (*Yahoo)(nil)
