package service

import (
	"context"

	"riskwatch/internal/backtest"
	"riskwatch/internal/report"
	"riskwatch/internal/risk"
	"riskwatch/internal/series"
)

// Evaluation is the output of one pass over a price series.
type Evaluation struct {
	Params    risk.Params
	Labels    risk.Labels
	Returns   []series.ReturnPoint
	Estimates []risk.Estimate
	VaR       []backtest.VaRRecord
	ES        []backtest.ESRecord
	Workbook  report.Workbook
}

// InvalidRows counts estimates with a non-finite field.
func (e *Evaluation) InvalidRows() int {
	n := 0
	for _, row := range e.Estimates {
		if !row.Valid() {
			n++
		}
	}
	return n
}

// Evaluate runs returns, rolling estimation, both VaR backtests and the ES
// backtest, then lays the results out as tables. It has no side effects.
func Evaluate(ctx context.Context, prices []series.PricePoint, params risk.Params) (*Evaluation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	returns, err := series.BuildReturns(prices)
	if err != nil {
		return nil, err
	}

	rows, err := risk.EstimateRolling(ctx, returns, params)
	if err != nil {
		return nil, err
	}

	labels := params.Labels()
	vars := make([]backtest.VaRRecord, 0, 2)
	for _, col := range labels.VaRColumns() {
		vars = append(vars, backtest.VaR(rows, col, params.AlphaVaR))
	}
	ess := []backtest.ESRecord{backtest.ES(rows, labels.HistoricalESColumn(), params.AlphaES)}

	return &Evaluation{
		Params:    params,
		Labels:    labels,
		Returns:   returns,
		Estimates: rows,
		VaR:       vars,
		ES:        ess,
		Workbook:  report.Assemble(labels, rows, vars, ess),
	}, nil
}
