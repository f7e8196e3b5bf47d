package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const clipEps = 1e-12

// KupiecResult is the outcome of the unconditional coverage test.
type KupiecResult struct {
	N             int
	Exceptions    int
	ExceptionRate float64
	LR            float64
	PValue        float64
}

// Kupiec runs the unconditional coverage likelihood-ratio test of
// H0: P(exceedance) = alpha. Both alpha and the observed rate are clipped to
// [1e-12, 1-1e-12] before taking logs. Empty input yields NaN rate, LR and p-value.
func Kupiec(exceed []bool, alpha float64) KupiecResult {
	n := len(exceed)
	x := 0
	for _, e := range exceed {
		if e {
			x++
		}
	}

	phat := math.NaN()
	if n > 0 {
		phat = float64(x) / float64(n)
	}

	a := clip(alpha)
	p := clip(phat)
	nf, xf := float64(n), float64(x)

	lr := -2 * ((nf-xf)*math.Log(1-a) + xf*math.Log(a) -
		((nf-xf)*math.Log(1-p) + xf*math.Log(p)))

	return KupiecResult{
		N:             n,
		Exceptions:    x,
		ExceptionRate: phat,
		LR:            lr,
		PValue:        chiSquaredSurvival(lr),
	}
}

// clip keeps NaN as NaN.
func clip(v float64) float64 {
	return math.Min(math.Max(v, clipEps), 1-clipEps)
}

// chiSquaredSurvival is P(X > lr) for X ~ chi-squared with one degree of freedom.
func chiSquaredSurvival(lr float64) float64 {
	if math.IsNaN(lr) {
		return math.NaN()
	}
	if lr <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: 1}.Survival(lr)
}
