package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"riskwatch/internal/alerting"
	"riskwatch/internal/config"
	"riskwatch/internal/fetcher"
	"riskwatch/internal/risk"
	"riskwatch/internal/scheduler"
	"riskwatch/internal/service"
	"riskwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newYahoo() *fetcher.Yahoo {
	y := a.Config.Source.Yahoo
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:           y.BaseURL,
		Timeout:           y.RequestTimeout,
		UserAgent:         y.UserAgent,
		MaxRetries:        y.MaxRetries,
		InitialBackoff:    y.InitialBackoff,
		MaxElapsed:        y.MaxElapsed,
		RequestsPerSecond: y.RequestsPerSecond,
	}, a.Logger)
}

// newSource picks the price source. store is only consulted for the postgres kind.
func (a *App) newSource(kind, csvPath string, store storage.PriceStore) (fetcher.PriceSeriesSource, error) {
	switch kind {
	case "", config.SourceYahoo:
		return a.newYahoo(), nil
	case config.SourceCSV:
		if csvPath == "" {
			csvPath = a.Config.Source.CSVPath
		}
		if csvPath == "" {
			return nil, errors.New("csv source requires --csv-file or source.csv_path")
		}
		return fetcher.NewCSVFile(csvPath, a.Logger), nil
	case config.SourcePostgres:
		if store == nil {
			return nil, errors.New("postgres source requires database.dsn")
		}
		return fetcher.NewStored(store, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; advisory lock disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)
	if err != nil {
		return err
	}

	var priceStore storage.PriceStore
	var locker storage.AdvisoryLocker
	if store != nil {
		priceStore = store
		locker = store
	}

	source, err := a.newSource(a.Config.Source.Kind, "", priceStore)
	if err != nil {
		return err
	}

	svc := service.New(a.Config, source, a.newNotifier(), locker, a.Logger)

	a.Logger.Info().Str("ticker", a.Config.Source.Ticker).Dur("interval", a.Config.Scheduler.Interval).Msg("starting evaluation service")
	err = sched.Run(ctx, svc.RunScheduled)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("evaluation service stopped")
	return nil
}

// EvaluateOptions configure a single evaluation.
type EvaluateOptions struct {
	Ticker  string
	From    *time.Time
	To      *time.Time
	Source  string
	CSVFile string
	Params  risk.Params

	XLSXPath string
	CSVDir   string
	PNGPath  string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Ticker string
	Limit  int
}

// IngestOptions configure the price download job.
type IngestOptions struct {
	Tickers []string
	From    time.Time
	To      time.Time
	DryRun  bool
}
