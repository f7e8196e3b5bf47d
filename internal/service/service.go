package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"riskwatch/internal/alerting"
	"riskwatch/internal/config"
	"riskwatch/internal/fetcher"
	"riskwatch/internal/risk"
	"riskwatch/internal/series"
	"riskwatch/internal/storage"
)

// Request describes one evaluation run.
type Request struct {
	Ticker string
	Start  time.Time
	End    time.Time
	Params risk.Params
}

// Result is the immutable bundle handed back to the caller.
type Result struct {
	*Evaluation
	RunID    string
	Ticker   string
	Start    time.Time
	End      time.Time
	Prices   int
	Rejected []string
}

// Service orchestrates fetching, estimation, backtesting and alerting.
type Service struct {
	source   fetcher.PriceSeriesSource
	notifier alerting.Notifier
	logger   zerolog.Logger

	cfg          *config.Config
	params       risk.Params
	significance float64
	channels     []string
	alertsOn     bool
	locker       storage.AdvisoryLocker
	lockKey      int64
}

// New constructs the evaluation service. notifier and locker may be nil.
func New(cfg *config.Config, source fetcher.PriceSeriesSource, notifier alerting.Notifier, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		source:       source,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		cfg:          cfg,
		params:       ParamsFromConfig(cfg.Risk),
		significance: cfg.Risk.Significance,
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
	}
}

// ParamsFromConfig maps the risk section onto estimator parameters.
func ParamsFromConfig(c config.RiskConfig) risk.Params {
	return risk.Params{
		WindowDays: c.WindowDays,
		TestDays:   c.TestDays,
		AlphaVaR:   c.AlphaVaR,
		AlphaES:    c.AlphaES,
	}
}

// Params returns the configured defaults.
func (s *Service) Params() risk.Params {
	return s.params
}

// Run fetches prices and evaluates them. Either a complete Result or an error is returned.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if s.source == nil {
		return nil, errors.New("price source not configured")
	}
	if req.Params == (risk.Params{}) {
		req.Params = s.params
	}

	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Str("ticker", req.Ticker).Logger()

	prices, err := s.source.Fetch(ctx, req.Ticker, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	logger.Debug().Int("prices", len(prices)).Msg("prices fetched")

	eval, err := Evaluate(ctx, prices, req.Params)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Evaluation: eval,
		RunID:      runID,
		Ticker:     req.Ticker,
		Start:      req.Start,
		End:        req.End,
		Prices:     len(prices),
	}

	if invalid := eval.InvalidRows(); invalid > 0 {
		logger.Warn().Int("rows", invalid).Msg("estimates contain non-finite values")
	}

	for _, rec := range eval.VaR {
		event := logger.Info()
		if rec.Rejected(s.significance) {
			res.Rejected = append(res.Rejected, rec.Method)
			event = logger.Warn()
		}
		event.Str("method", rec.Method).
			Int("n", rec.N).
			Int("exceptions", rec.Exceptions).
			Float64("lr_uc", rec.LR).
			Float64("p_value", rec.PValue).
			Msg("var backtest")
	}

	s.dispatchAlerts(ctx, logger, res)
	return res, nil
}

// RunScheduled evaluates the configured ticker for the slot ending at asOf.
// It skips silently when another instance holds the advisory lock.
func (s *Service) RunScheduled(ctx context.Context, asOf time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("as_of", asOf).Msg("skip slot because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	end := series.Day(asOf).AddDate(0, 0, 1)
	req := Request{
		Ticker: fetcher.ResolveTicker(s.cfg.Source.Ticker),
		Start:  s.cfg.StartDate(end),
		End:    end,
		Params: s.params,
	}

	res, err := s.Run(ctx, req)
	if err != nil {
		return err
	}

	s.logger.Info().Str("run_id", res.RunID).
		Str("ticker", res.Ticker).
		Int("rows", len(res.Estimates)).
		Str("rejected", strings.Join(res.Rejected, ",")).
		Msg("scheduled evaluation complete")
	return nil
}

func (s *Service) dispatchAlerts(ctx context.Context, logger zerolog.Logger, res *Result) {
	if !s.alertsOn || s.notifier == nil || len(res.Rejected) == 0 {
		return
	}

	var asOf time.Time
	if n := len(res.Estimates); n > 0 {
		asOf = res.Estimates[n-1].Date
	}

	for _, rec := range res.VaR {
		if !rec.Rejected(s.significance) {
			continue
		}
		note := alerting.Notification{
			RunID:         res.RunID,
			Ticker:        res.Ticker,
			AsOf:          asOf,
			Method:        rec.Method,
			N:             rec.N,
			Exceptions:    rec.Exceptions,
			ExceptionRate: rec.ExceptionRate,
			Alpha:         res.Params.AlphaVaR,
			LR:            rec.LR,
			PValue:        rec.PValue,
			Significance:  s.significance,
			Channels:      s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			logger.Error().Err(err).Str("method", rec.Method).Msg("failed to dispatch alert")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
