package storage

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"riskwatch/internal/series"
)

// PriceRecord is a persisted daily close for one ticker.
type PriceRecord struct {
	Ticker    string
	Day       time.Time
	Close     decimal.Decimal
	Source    string
	UpdatedAt time.Time
}

// NewPriceRecord converts a price point. Missing closes are reported with ok=false.
func NewPriceRecord(ticker, source string, p series.PricePoint) (PriceRecord, bool) {
	if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
		return PriceRecord{}, false
	}
	return PriceRecord{
		Ticker: ticker,
		Day:    series.Day(p.Date),
		Close:  decimal.NewFromFloat(p.Close),
		Source: source,
	}, true
}

// PricePoint converts the record back into the core type.
func (r PriceRecord) PricePoint() series.PricePoint {
	return series.PricePoint{Date: r.Day, Close: r.Close.InexactFloat64()}
}
