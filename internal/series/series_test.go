package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildReturns(t *testing.T) {
	prices := []PricePoint{
		{Date: day("2024-01-01"), Close: 100},
		{Date: day("2024-01-02"), Close: 101},
		{Date: day("2024-01-03"), Close: 102},
	}

	out, err := BuildReturns(prices)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.InDelta(t, math.Log(101.0/100.0), out[0].LogReturn, 1e-12)
	assert.InDelta(t, math.Log(102.0/101.0), out[1].LogReturn, 1e-12)
	for _, p := range out {
		assert.Equal(t, -p.LogReturn, p.Loss)
	}
	assert.Equal(t, day("2024-01-02"), out[0].Date)
	assert.Equal(t, 102.0, out[1].Close)
}

func TestBuildReturnsSortsAndDropsMissing(t *testing.T) {
	prices := []PricePoint{
		{Date: day("2024-01-04"), Close: 110},
		{Date: day("2024-01-02"), Close: math.NaN()},
		{Date: day("2024-01-01"), Close: 100},
		{Date: day("2024-01-03"), Close: 105},
	}

	out, err := BuildReturns(prices)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, day("2024-01-03"), out[0].Date)
	assert.InDelta(t, math.Log(105.0/100.0), out[0].LogReturn, 1e-12)
	assert.InDelta(t, math.Log(110.0/105.0), out[1].LogReturn, 1e-12)
}

func TestBuildReturnsLengthIsInputMinusOne(t *testing.T) {
	for n := 2; n <= 30; n++ {
		prices := make([]PricePoint, n)
		start := day("2023-06-01")
		for i := range prices {
			prices[i] = PricePoint{Date: start.AddDate(0, 0, i), Close: 50 + float64(i%7) + float64(i)/3}
		}
		out, err := BuildReturns(prices)
		require.NoError(t, err)
		assert.Len(t, out, n-1)
		for _, p := range out {
			assert.Equal(t, -p.LogReturn, p.Loss)
		}
	}
}

func TestBuildReturnsTooFewPoints(t *testing.T) {
	cases := map[string][]PricePoint{
		"empty":        nil,
		"single":       {{Date: day("2024-01-01"), Close: 1}},
		"all missing":  {{Date: day("2024-01-01"), Close: math.NaN()}, {Date: day("2024-01-02"), Close: math.NaN()}},
		"non positive": {{Date: day("2024-01-01"), Close: 0}, {Date: day("2024-01-02"), Close: 3}},
	}
	for name, prices := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildReturns(prices)
			var inv *InvalidInputError
			require.True(t, errors.As(err, &inv), "expected InvalidInputError, got %v", err)
		})
	}
}

func TestParseTable(t *testing.T) {
	header := []string{"Date", "Open", "Close"}
	records := [][]string{
		{"2024-01-01", "1", "100"},
		{"2024-01-02", "1", "n/a"},
		{"2024-01-03", "1", "102.5"},
	}

	points, err := ParseTable(header, records)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 100.0, points[0].Close)
	assert.True(t, math.IsNaN(points[1].Close))
	assert.Equal(t, day("2024-01-03"), points[2].Date)

	out, err := BuildReturns(points)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, math.Log(102.5/100), out[0].LogReturn, 1e-12)
}

func TestParseTablePrefersAdjustedClose(t *testing.T) {
	points, err := ParseTable([]string{"date", "close", "Adj Close"}, [][]string{{"2024-01-01T00:00:00Z", "10", "9.5"}})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 9.5, points[0].Close)
}

func TestParseTableErrors(t *testing.T) {
	_, err := ParseTable([]string{"day", "close"}, nil)
	var inv *InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "date")

	_, err = ParseTable([]string{"date", "open"}, nil)
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "close")

	_, err = ParseTable([]string{"date", "close"}, [][]string{{"yesterday", "1"}})
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "row 1")
}
