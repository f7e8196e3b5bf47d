package series

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical day format used across inputs and exports.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseTable converts a tabular price dump (header plus records) into price points.
// It needs a date column and a close column; "adj close" wins over "close" when both exist.
// Non-numeric closes become NaN and are dropped later by BuildReturns.
func ParseTable(header []string, records [][]string) ([]PricePoint, error) {
	dateIdx, closeIdx := -1, -1
	adjIdx := -1
	for i, name := range header {
		switch normalizeColumn(name) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		case "adj close", "adj_close", "adjclose":
			adjIdx = i
		}
	}
	if adjIdx >= 0 {
		closeIdx = adjIdx
	}

	var missing []string
	if dateIdx < 0 {
		missing = append(missing, "date")
	}
	if closeIdx < 0 {
		missing = append(missing, "close")
	}
	if len(missing) > 0 {
		return nil, invalidf("missing columns %v, available %v", missing, header)
	}

	points := make([]PricePoint, 0, len(records))
	for n, rec := range records {
		if dateIdx >= len(rec) {
			return nil, invalidf("row %d: no date value", n+1)
		}
		date, err := ParseDate(rec[dateIdx])
		if err != nil {
			return nil, invalidf("row %d: unparseable date %q", n+1, rec[dateIdx])
		}

		closeVal := math.NaN()
		if closeIdx < len(rec) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64); err == nil {
				closeVal = v
			}
		}
		points = append(points, PricePoint{Date: date, Close: closeVal})
	}
	return points, nil
}

// ParseDate accepts the day formats commonly found in price dumps and truncates to the day.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return Day(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
