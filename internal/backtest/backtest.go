package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"riskwatch/internal/risk"
)

// ESNote is attached to every ES record.
const ESNote = "Simple ES backtest: mean of the worst realized losses compared with the mean ES estimate. Heuristic diagnostic, not a formal hypothesis test."

// VaRRecord summarises the coverage test for one VaR method.
type VaRRecord struct {
	Method        string
	N             int
	Exceptions    int
	ExceptionRate float64
	LR            float64
	PValue        float64
}

// Rejected reports whether H0 (correct coverage) is rejected at significance.
func (r VaRRecord) Rejected(significance float64) bool {
	return !math.IsNaN(r.PValue) && r.PValue < significance
}

// ESRecord summarises the simple ES comparison for one ES method.
type ESRecord struct {
	Method        string
	MeanLoss      float64
	MeanWorstLoss float64
	MeanES        float64
	Note          string
}

// Exceedances flags the days where the realized loss is above the estimate.
// NaN estimates never count as exceeded.
func Exceedances(rows []risk.Estimate, col risk.Column) []bool {
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = row.RealizedLoss > col.Value(row)
	}
	return out
}

// VaR backtests one VaR column with the Kupiec test.
func VaR(rows []risk.Estimate, col risk.Column, alpha float64) VaRRecord {
	res := Kupiec(Exceedances(rows, col), alpha)
	return VaRRecord{
		Method:        col.Name,
		N:             res.N,
		Exceptions:    res.Exceptions,
		ExceptionRate: res.ExceptionRate,
		LR:            res.LR,
		PValue:        res.PValue,
	}
}

// ES compares the mean of the worst realized losses, those at or above the
// (1-alphaES) quantile with ties included, to the mean ES estimate.
func ES(rows []risk.Estimate, col risk.Column, alphaES float64) ESRecord {
	losses := make([]float64, len(rows))
	estimates := make([]float64, len(rows))
	for i, row := range rows {
		losses[i] = row.RealizedLoss
		estimates[i] = col.Value(row)
	}

	threshold := risk.Quantile(losses, 1-alphaES)
	var worst []float64
	for _, l := range losses {
		if l >= threshold {
			worst = append(worst, l)
		}
	}

	return ESRecord{
		Method:        col.Name,
		MeanLoss:      stat.Mean(losses, nil),
		MeanWorstLoss: stat.Mean(worst, nil),
		MeanES:        stat.Mean(estimates, nil),
		Note:          ESNote,
	}
}
