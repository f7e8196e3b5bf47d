package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"riskwatch/internal/series"
	"riskwatch/internal/storage"
)

const storedSource = "postgres"

// Stored serves prices previously ingested into the database.
type Stored struct {
	store  storage.PriceStore
	logger zerolog.Logger
}

// NewStored constructs a database-backed source.
func NewStored(store storage.PriceStore, logger zerolog.Logger) *Stored {
	return &Stored{store: store, logger: logger.With().Str("component", "stored_fetcher").Logger()}
}

// Fetch lists stored closes in [start, end).
func (s *Stored) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]series.PricePoint, error) {
	if s.store == nil {
		return nil, &DataSourceError{Source: storedSource, Ticker: ticker, Reason: "database not configured"}
	}

	records, err := s.store.ListPrices(ctx, ticker, start, end)
	if err != nil {
		return nil, &DataSourceError{Source: storedSource, Ticker: ticker, Reason: "list prices", Err: err}
	}
	if len(records) == 0 {
		return nil, &DataSourceError{Source: storedSource, Ticker: ticker, Reason: "no stored prices, run ingest first"}
	}

	points := make([]series.PricePoint, len(records))
	for i, rec := range records {
		points[i] = rec.PricePoint()
	}
	return points, nil
}

var _ PriceSeriesSource = (*Stored)(nil)
