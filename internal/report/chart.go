package report

import (
	"errors"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"riskwatch/internal/risk"
)

// ChartOptions sizes the PNG chart.
type ChartOptions struct {
	Width  int
	Height int
	Title  string
}

// WriteChart renders realized losses against both VaR series as PNG.
func WriteChart(w io.Writer, labels risk.Labels, rows []risk.Estimate, opts ChartOptions) error {
	if len(rows) < 2 {
		return errors.New("chart needs at least two rows")
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}

	x := make([]time.Time, len(rows))
	loss := make([]float64, len(rows))
	normal := make([]float64, len(rows))
	hist := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Date
		loss[i] = r.RealizedLoss
		normal[i] = r.NormalVaR
		hist[i] = r.HistoricalVaR
	}

	lossFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Loss (-log return)",
			ValueFormatter: lossFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Loss", XValues: x, YValues: loss},
			chart.TimeSeries{Name: labels.NormalVaR, XValues: x, YValues: normal},
			chart.TimeSeries{Name: labels.HistoricalVaR, XValues: x, YValues: hist},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
