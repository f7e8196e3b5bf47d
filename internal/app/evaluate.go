package app

import (
	"context"
	"fmt"
	"time"

	"riskwatch/internal/config"
	"riskwatch/internal/fetcher"
	"riskwatch/internal/report"
	"riskwatch/internal/risk"
	"riskwatch/internal/series"
	"riskwatch/internal/service"
	"riskwatch/internal/storage"
)

// Evaluate runs the pipeline once, prints the tables and writes any requested exports.
func (a *App) Evaluate(ctx context.Context, opts EvaluateOptions) (*service.Result, error) {
	kind := opts.Source
	if kind == "" {
		kind = a.Config.Source.Kind
	}

	var priceStore storage.PriceStore
	if kind == config.SourcePostgres {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if closeStore != nil {
			defer closeStore()
		}
		if store != nil {
			priceStore = store
		}
	}

	source, err := a.newSource(kind, opts.CSVFile, priceStore)
	if err != nil {
		return nil, err
	}

	ticker := opts.Ticker
	if ticker == "" {
		ticker = a.Config.Source.Ticker
	}

	to := series.Day(time.Now().UTC()).AddDate(0, 0, 1)
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := a.Config.StartDate(to)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("from must be before to")
	}

	svc := service.New(a.Config, source, nil, nil, a.Logger)
	res, err := svc.Run(ctx, service.Request{
		Ticker: fetcher.ResolveTicker(ticker),
		Start:  from,
		End:    to,
		Params: mergeParams(svc.Params(), opts.Params),
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.Out, "Run %s  %s  %d prices, %d test days\n\n", res.RunID, res.Ticker, res.Prices, len(res.Estimates))
	if err := report.Render(a.Out, res.Workbook, res.VaR); err != nil {
		return nil, err
	}

	if err := a.writeExports(res, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// mergeParams overlays the non-zero fields of override onto base.
func mergeParams(base, override risk.Params) risk.Params {
	if override.WindowDays > 0 {
		base.WindowDays = override.WindowDays
	}
	if override.TestDays > 0 {
		base.TestDays = override.TestDays
	}
	if override.AlphaVaR != 0 {
		base.AlphaVaR = override.AlphaVaR
	}
	if override.AlphaES != 0 {
		base.AlphaES = override.AlphaES
	}
	return base
}
