package risk

import (
	"math"
	"strconv"
	"strings"
)

// Labels names the per-method columns. Names are derived from the confidence
// levels so the default parameters yield VaR99_norm_loss / ES97_5_hist_loss.
type Labels struct {
	NormalVaR     string
	HistoricalVaR string
	HistoricalES  string
	WorstTail     string
}

// NewLabels derives column names from the VaR and ES tail probabilities.
func NewLabels(alphaVaR, alphaES float64) Labels {
	varTag := confidenceTag(alphaVaR)
	esTag := confidenceTag(alphaES)
	return Labels{
		NormalVaR:     "VaR" + varTag + "_norm_loss",
		HistoricalVaR: "VaR" + varTag + "_hist_loss",
		HistoricalES:  "ES" + esTag + "_hist_loss",
		WorstTail:     "mean_loss_worst_(top_" + percent(alphaES) + "%)",
	}
}

// Column selects one estimate field under its exported name.
type Column struct {
	Name  string
	Value func(Estimate) float64
}

// NormalVaRColumn selects the parametric normal VaR loss.
func (l Labels) NormalVaRColumn() Column {
	return Column{Name: l.NormalVaR, Value: func(e Estimate) float64 { return e.NormalVaR }}
}

// HistoricalVaRColumn selects the historical VaR loss.
func (l Labels) HistoricalVaRColumn() Column {
	return Column{Name: l.HistoricalVaR, Value: func(e Estimate) float64 { return e.HistoricalVaR }}
}

// HistoricalESColumn selects the historical ES loss.
func (l Labels) HistoricalESColumn() Column {
	return Column{Name: l.HistoricalES, Value: func(e Estimate) float64 { return e.HistoricalES }}
}

// VaRColumns lists the VaR methods in evaluation order.
func (l Labels) VaRColumns() []Column {
	return []Column{l.NormalVaRColumn(), l.HistoricalVaRColumn()}
}

// confidenceTag renders (1-alpha) in percent with "." replaced by "_": 0.025 -> "97_5".
func confidenceTag(alpha float64) string {
	return strings.ReplaceAll(percent(1-alpha), ".", "_")
}

func percent(p float64) string {
	v := math.Round(p*100*1e6) / 1e6
	return strconv.FormatFloat(v, 'f', -1, 64)
}
