package app

import (
	"context"
	"errors"

	"riskwatch/internal/config"
	"riskwatch/internal/fetcher"
	"riskwatch/internal/storage"
)

// Ingest downloads daily closes and upserts them into the price cache.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	if !opts.From.Before(opts.To) {
		return errors.New("ingest range is empty, check --from/--to")
	}

	tickers := opts.Tickers
	if len(tickers) == 0 {
		tickers = []string{a.Config.Source.Ticker}
	}

	var store storage.PriceStore
	if opts.DryRun {
		a.Logger.Warn().Msg("ingest dry-run: nothing will be written")
	} else {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("database.dsn not configured; cannot ingest")
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = s
	}

	yahoo := a.newYahoo()

	stored := 0
	failed := 0
	for _, raw := range tickers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ticker := fetcher.ResolveTicker(raw)
		n, err := a.ingestTicker(ctx, yahoo, store, ticker, opts)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("ticker", ticker).Msg("ingest failed")
			continue
		}
		stored += n
	}

	a.Logger.Info().Int("tickers", len(tickers)).Int("stored", stored).Int("failed", failed).Msg("ingest complete")
	if failed > 0 {
		return errors.New("some tickers failed to ingest, check the logs")
	}
	return nil
}

func (a *App) ingestTicker(ctx context.Context, source fetcher.PriceSeriesSource, store storage.PriceStore, ticker string, opts IngestOptions) (int, error) {
	points, err := source.Fetch(ctx, ticker, opts.From, opts.To)
	if err != nil {
		return 0, err
	}

	records := make([]storage.PriceRecord, 0, len(points))
	skipped := 0
	for _, p := range points {
		rec, ok := storage.NewPriceRecord(ticker, config.SourceYahoo, p)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	logger := a.Logger.With().Str("ticker", ticker).Logger()
	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("missing closes skipped")
	}
	if store == nil {
		logger.Info().Int("records", len(records)).Msg("dry-run: fetched prices")
		return 0, nil
	}

	n, err := store.UpsertPrices(ctx, records)
	if err != nil {
		return 0, err
	}
	logger.Info().Int("records", n).Msg("prices stored")
	return n, nil
}
