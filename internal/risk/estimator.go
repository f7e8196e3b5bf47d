package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"riskwatch/internal/series"
)

// Params controls the rolling estimation.
type Params struct {
	WindowDays int
	TestDays   int
	AlphaVaR   float64
	AlphaES    float64
}

// DefaultParams is roughly two trading years of window, one of test, VaR 99% and ES 97.5%.
func DefaultParams() Params {
	return Params{WindowDays: 504, TestDays: 252, AlphaVaR: 0.01, AlphaES: 0.025}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.WindowDays <= 0 {
		return &series.InvalidInputError{Reason: fmt.Sprintf("window_days must be positive, got %d", p.WindowDays)}
	}
	if p.TestDays <= 0 {
		return &series.InvalidInputError{Reason: fmt.Sprintf("test_days must be positive, got %d", p.TestDays)}
	}
	if !(p.AlphaVaR > 0 && p.AlphaVaR < 1) {
		return &series.InvalidInputError{Reason: fmt.Sprintf("alpha_var must be in (0,1), got %v", p.AlphaVaR)}
	}
	if !(p.AlphaES > 0 && p.AlphaES < 1) {
		return &series.InvalidInputError{Reason: fmt.Sprintf("alpha_es must be in (0,1), got %v", p.AlphaES)}
	}
	return nil
}

// Labels returns the column names for these parameters.
func (p Params) Labels() Labels {
	return NewLabels(p.AlphaVaR, p.AlphaES)
}

// Estimate is one test-period day: the realized outcome and the loss
// estimates built from the preceding window.
type Estimate struct {
	Date           time.Time
	RealizedReturn float64
	RealizedLoss   float64
	NormalVaR      float64
	HistoricalVaR  float64
	HistoricalES   float64
}

// Valid reports whether every numeric field is finite.
func (e Estimate) Valid() bool {
	for _, v := range [...]float64{e.RealizedReturn, e.RealizedLoss, e.NormalVaR, e.HistoricalVaR, e.HistoricalES} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// InsufficientDataError reports a history too short for window plus test period.
type InsufficientDataError struct {
	Have       int
	Need       int
	WindowDays int
	TestDays   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d returns, need more than window(%d) + test(%d) = at least %d",
		e.Have, e.WindowDays, e.TestDays, e.Need)
}

// EstimateRolling slides a WindowDays window over returns and reports the last
// TestDays days. Each day only sees returns strictly before it.
// ctx is checked once per window.
func EstimateRolling(ctx context.Context, returns []series.ReturnPoint, p Params) ([]Estimate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(returns) <= p.WindowDays+p.TestDays {
		return nil, &InsufficientDataError{
			Have:       len(returns),
			Need:       p.WindowDays + p.TestDays + 1,
			WindowDays: p.WindowDays,
			TestDays:   p.TestDays,
		}
	}

	r := series.LogReturns(returns)
	z := distuv.UnitNormal.Quantile(p.AlphaVaR)

	// rows before len-TestDays would be discarded; windows are independent so skip them.
	start := len(r) - p.TestDays
	out := make([]Estimate, 0, p.TestDays)
	sorted := make([]float64, p.WindowDays)

	for i := start; i < len(r); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := r[i-p.WindowDays : i]
		mu, sigma := stat.MeanStdDev(w, nil)

		copy(sorted, w)
		sort.Float64s(sorted)

		out = append(out, Estimate{
			Date:           returns[i].Date,
			RealizedReturn: r[i],
			RealizedLoss:   -r[i],
			NormalVaR:      -(mu + sigma*z),
			HistoricalVaR:  -quantileSorted(sorted, p.AlphaVaR),
			HistoricalES:   -tailMean(sorted, quantileSorted(sorted, p.AlphaES)),
		})
	}
	return out, nil
}

// tailMean averages the sorted values at or below threshold; NaN when none qualify.
func tailMean(sorted []float64, threshold float64) float64 {
	k := sort.Search(len(sorted), func(i int) bool { return sorted[i] > threshold })
	if k == 0 {
		return math.NaN()
	}
	return stat.Mean(sorted[:k], nil)
}
