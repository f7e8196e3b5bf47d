package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"riskwatch/internal/series"
)

const csvSource = "csv"

// CSVFile serves prices from a local CSV export with date and close columns.
// The ticker is informational only.
type CSVFile struct {
	path   string
	logger zerolog.Logger
}

// NewCSVFile constructs a file-backed source.
func NewCSVFile(path string, logger zerolog.Logger) *CSVFile {
	return &CSVFile{path: path, logger: logger.With().Str("component", "csv_fetcher").Logger()}
}

// Fetch reads the file and keeps rows in [start, end).
func (c *CSVFile) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]series.PricePoint, error) {
	if c.path == "" {
		return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "csv path not configured"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(c.path)
	if err != nil {
		return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "open " + c.path, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "parse " + c.path, Err: err}
	}
	if len(records) < 2 {
		return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "no data rows in " + c.path}
	}

	points, err := series.ParseTable(records[0], records[1:])
	if err != nil {
		var inv *series.InvalidInputError
		if errors.As(err, &inv) {
			return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "malformed price file", Err: err}
		}
		return nil, err
	}

	out := make([]series.PricePoint, 0, len(points))
	for _, p := range points {
		if inRange(p.Date, start, end) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, &DataSourceError{Source: csvSource, Ticker: ticker, Reason: "no rows within requested range"}
	}

	c.logger.Debug().Str("path", c.path).Int("points", len(out)).Msg("prices loaded")
	return out, nil
}

var _ PriceSeriesSource = (*CSVFile)(nil)
