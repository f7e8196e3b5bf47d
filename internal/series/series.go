package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is one daily close. A NaN close marks a missing value.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// ReturnPoint is the log return between a close and the previous one.
type ReturnPoint struct {
	Date      time.Time
	Close     float64
	LogReturn float64
	Loss      float64
}

// InvalidInputError reports malformed or insufficient raw price input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// BuildReturns sorts prices by date, drops missing closes and derives log returns.
// The first valid price has no return and is dropped.
func BuildReturns(prices []PricePoint) ([]ReturnPoint, error) {
	clean := make([]PricePoint, 0, len(prices))
	for _, p := range prices {
		if !validClose(p.Close) {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) < 2 {
		return nil, invalidf("need at least 2 valid price points, got %d (of %d)", len(clean), len(prices))
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})

	out := make([]ReturnPoint, 0, len(clean)-1)
	for i := 1; i < len(clean); i++ {
		r := math.Log(clean[i].Close / clean[i-1].Close)
		out = append(out, ReturnPoint{
			Date:      clean[i].Date,
			Close:     clean[i].Close,
			LogReturn: r,
			Loss:      -r,
		})
	}
	return out, nil
}

// LogReturns extracts the log return column.
func LogReturns(points []ReturnPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.LogReturn
	}
	return out
}

func validClose(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
