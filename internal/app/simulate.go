package app

import (
	"context"
	"errors"
	"time"

	"riskwatch/internal/alerting"
	"riskwatch/internal/backtest"
)

// SimulateAlertOptions describe a synthetic backtest outcome.
type SimulateAlertOptions struct {
	Ticker     string
	Method     string
	N          int
	Exceptions int
}

// SimulateAlert 通过给定的例外次数模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateAlertOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	if opts.N <= 0 || opts.Exceptions < 0 || opts.Exceptions > opts.N {
		return errors.New("exceptions must be within [0, n] and n positive")
	}

	flags := make([]bool, opts.N)
	for i := 0; i < opts.Exceptions; i++ {
		flags[i] = true
	}
	alpha := a.Config.Risk.AlphaVaR
	k := backtest.Kupiec(flags, alpha)

	ticker := opts.Ticker
	if ticker == "" {
		ticker = a.Config.Source.Ticker
	}

	return notifier.Notify(ctx, alerting.Notification{
		RunID:         "simulated",
		Ticker:        ticker,
		AsOf:          time.Now().UTC(),
		Method:        opts.Method,
		N:             k.N,
		Exceptions:    k.Exceptions,
		ExceptionRate: k.ExceptionRate,
		Alpha:         alpha,
		LR:            k.LR,
		PValue:        k.PValue,
		Significance:  a.Config.Risk.Significance,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "simulated alert",
	})
}
