package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/alerting"
	"riskwatch/internal/config"
	"riskwatch/internal/fetcher"
	"riskwatch/internal/risk"
	"riskwatch/internal/series"
)

type fakeSource struct {
	prices []series.PricePoint
	err    error
	calls  int
}

func (f *fakeSource) Fetch(_ context.Context, _ string, _, _ time.Time) ([]series.PricePoint, error) {
	f.calls++
	return f.prices, f.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return nil
}

type fakeLocker struct {
	acquired bool
	released int
}

func (f *fakeLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if !f.acquired {
		return nil, false, nil
	}
	return func() { f.released++ }, true, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{Ticker: "cac40", Lookback: 60},
		Risk: config.RiskConfig{
			WindowDays:   10,
			TestDays:     5,
			AlphaVaR:     0.01,
			AlphaES:      0.025,
			Significance: 0.05,
		},
		Alerting:  config.AlertingConfig{Enabled: true, Channels: []string{"telegram"}},
		Scheduler: config.SchedulerConfig{AdvisoryLockKey: 42},
	}
}

func pricesFromReturns(rets []float64) []series.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	level := 100.0
	out := []series.PricePoint{{Date: start, Close: level}}
	for i, r := range rets {
		level *= math.Exp(r)
		out = append(out, series.PricePoint{Date: start.AddDate(0, 0, i+1), Close: level})
	}
	return out
}

// calm window followed by losses larger than anything seen before
func stressedPrices() []series.PricePoint {
	rets := make([]float64, 0, 16)
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			rets = append(rets, 0.001)
		} else {
			rets = append(rets, -0.001)
		}
	}
	rets = append(rets, -0.02, -0.04, -0.06, -0.08, -0.10)
	return pricesFromReturns(rets)
}

func quietPrices() []series.PricePoint {
	rets := make([]float64, 0, 16)
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			rets = append(rets, 0.002)
		} else {
			rets = append(rets, -0.003)
		}
	}
	for i := 0; i < 5; i++ {
		rets = append(rets, 0.001)
	}
	return pricesFromReturns(rets)
}

func TestEvaluateBundle(t *testing.T) {
	params := ParamsFromConfig(testConfig().Risk)
	eval, err := Evaluate(context.Background(), stressedPrices(), params)
	require.NoError(t, err)

	assert.Len(t, eval.Returns, 16)
	assert.Len(t, eval.Estimates, 5)
	require.Len(t, eval.VaR, 2)
	assert.Equal(t, "VaR99_norm_loss", eval.VaR[0].Method)
	assert.Equal(t, "VaR99_hist_loss", eval.VaR[1].Method)
	require.Len(t, eval.ES, 1)
	assert.Equal(t, "ES97_5_hist_loss", eval.ES[0].Method)
	assert.Len(t, eval.Workbook.Daily.Rows, 5)
	assert.Zero(t, eval.InvalidRows())
}

func TestEvaluateIdempotent(t *testing.T) {
	params := ParamsFromConfig(testConfig().Risk)
	prices := stressedPrices()

	first, err := Evaluate(context.Background(), prices, params)
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), prices, params)
	require.NoError(t, err)

	assert.Equal(t, first.Estimates, second.Estimates)
	assert.Equal(t, first.VaR, second.VaR)
	assert.Equal(t, first.ES, second.ES)
}

func TestEvaluateInsufficientData(t *testing.T) {
	params := ParamsFromConfig(testConfig().Risk)
	_, err := Evaluate(context.Background(), stressedPrices()[:12], params)

	var insufficient *risk.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 11, insufficient.Have)
	assert.Equal(t, 16, insufficient.Need)
}

func TestEvaluateInvalidParams(t *testing.T) {
	params := ParamsFromConfig(testConfig().Risk)
	params.AlphaVaR = 1.5
	_, err := Evaluate(context.Background(), stressedPrices(), params)

	var invalid *series.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestRunAlertsOnRejection(t *testing.T) {
	source := &fakeSource{prices: stressedPrices()}
	notifier := &recordingNotifier{}
	svc := New(testConfig(), source, notifier, nil, zerolog.Nop())

	res, err := svc.Run(context.Background(), Request{Ticker: "^FCHI"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "^FCHI", res.Ticker)
	assert.Equal(t, 17, res.Prices)
	assert.ElementsMatch(t, []string{"VaR99_norm_loss", "VaR99_hist_loss"}, res.Rejected)

	require.Len(t, notifier.notes, 2)
	for _, note := range notifier.notes {
		assert.Equal(t, res.RunID, note.RunID)
		assert.Equal(t, "^FCHI", note.Ticker)
		assert.Less(t, note.PValue, 0.05)
		assert.Equal(t, []string{"telegram"}, note.Channels)
		assert.Equal(t, res.Estimates[4].Date, note.AsOf)
	}
	assert.Equal(t, 5, notifier.notes[1].Exceptions)
}

func TestRunQuietSeriesDoesNotAlert(t *testing.T) {
	source := &fakeSource{prices: quietPrices()}
	notifier := &recordingNotifier{}
	svc := New(testConfig(), source, notifier, nil, zerolog.Nop())

	res, err := svc.Run(context.Background(), Request{Ticker: "^FCHI"})
	require.NoError(t, err)

	assert.Empty(t, res.Rejected)
	assert.Empty(t, notifier.notes)
	for _, rec := range res.VaR {
		assert.Zero(t, rec.Exceptions)
	}
}

func TestRunAlertingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Enabled = false
	notifier := &recordingNotifier{}
	svc := New(cfg, &fakeSource{prices: stressedPrices()}, notifier, nil, zerolog.Nop())

	res, err := svc.Run(context.Background(), Request{Ticker: "^FCHI"})
	require.NoError(t, err)
	assert.Len(t, res.Rejected, 2)
	assert.Empty(t, notifier.notes)
}

func TestRunPropagatesSourceError(t *testing.T) {
	srcErr := &fetcher.DataSourceError{Source: "yahoo", Ticker: "^FCHI", Reason: "empty response"}
	svc := New(testConfig(), &fakeSource{err: srcErr}, nil, nil, zerolog.Nop())

	_, err := svc.Run(context.Background(), Request{Ticker: "^FCHI"})
	var dsErr *fetcher.DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "yahoo", dsErr.Source)
}

func TestRunWithoutSource(t *testing.T) {
	svc := New(testConfig(), nil, nil, nil, zerolog.Nop())
	_, err := svc.Run(context.Background(), Request{Ticker: "^FCHI"})
	assert.Error(t, err)
}

func TestRunScheduledRespectsLock(t *testing.T) {
	source := &fakeSource{prices: quietPrices()}
	locker := &fakeLocker{}
	svc := New(testConfig(), source, nil, locker, zerolog.Nop())

	asOf := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunScheduled(context.Background(), asOf))
	assert.Zero(t, source.calls)

	locker.acquired = true
	require.NoError(t, svc.RunScheduled(context.Background(), asOf))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, locker.released)
}

func TestRunScheduledSurfacesErrors(t *testing.T) {
	svc := New(testConfig(), &fakeSource{err: errors.New("boom")}, nil, nil, zerolog.Nop())
	err := svc.RunScheduled(context.Background(), time.Now())
	assert.ErrorContains(t, err, "boom")
}
