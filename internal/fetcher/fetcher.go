package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskwatch/internal/series"
)

// PriceSeriesSource retrieves a dated daily close series for one ticker in [start, end).
type PriceSeriesSource interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) ([]series.PricePoint, error)
}

// DataSourceError wraps failures at the market data boundary.
type DataSourceError struct {
	Source string
	Ticker string
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Source, e.Ticker, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

var presets = map[string]string{
	"cac40":         "^FCHI",
	"lvmh":          "MC.PA",
	"totalenergies": "TTE.PA",
	"airliquide":    "AI.PA",
	"bnp":           "BNP.PA",
}

// ResolveTicker maps a preset name to its ticker; other values pass through.
func ResolveTicker(v string) string {
	if t, ok := presets[strings.ToLower(strings.TrimSpace(v))]; ok {
		return t
	}
	return strings.TrimSpace(v)
}

// Presets returns the preset names and tickers.
func Presets() map[string]string {
	out := make(map[string]string, len(presets))
	for k, v := range presets {
		out[k] = v
	}
	return out
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}
