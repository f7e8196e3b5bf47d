package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"riskwatch/internal/fetcher"
)

// Show prints the most recent stored closes for a ticker.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show prices")
	}
	if closeStore != nil {
		defer closeStore()
	}

	ticker := opts.Ticker
	if ticker == "" {
		ticker = a.Config.Source.Ticker
	}
	ticker = fetcher.ResolveTicker(ticker)

	total, err := store.CountPrices(ctx, ticker)
	if err != nil {
		return err
	}

	records, err := store.ListRecentPrices(ctx, ticker, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(a.Out, "no prices stored for %s\n", ticker)
		return nil
	}

	fmt.Fprintf(a.Out, "%s: %d stored closes, showing %d\n", ticker, total, len(records))
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tClose\tSource\tUpdated (UTC)")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			rec.Day.Format("2006-01-02"),
			rec.Close.StringFixed(4),
			rec.Source,
			rec.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}
