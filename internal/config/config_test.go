package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/risk"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "riskwatch", cfg.App.Name)
	assert.Equal(t, SourceYahoo, cfg.Source.Kind)
	assert.Equal(t, 504, cfg.Risk.WindowDays)
	assert.Equal(t, 252, cfg.Risk.TestDays)
	assert.Equal(t, 0.01, cfg.Risk.AlphaVaR)
	assert.Equal(t, 0.025, cfg.Risk.AlphaES)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 15*time.Second, cfg.Source.Yahoo.RequestTimeout)
	assert.Equal(t, []string{"telegram"}, cfg.Alerting.Channels)
}

func TestLoadRiskDefaultsMatchEstimator(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	want := risk.DefaultParams()
	got := risk.Params{
		WindowDays: cfg.Risk.WindowDays,
		TestDays:   cfg.Risk.TestDays,
		AlphaVaR:   cfg.Risk.AlphaVaR,
		AlphaES:    cfg.Risk.AlphaES,
	}
	assert.Equal(t, want, got)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	// an explicit path must exist; only the implicit ./config.yaml is optional
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
source:
  kind: csv
  csv_path: prices.csv
  start: "2020-01-02"
risk:
  window_days: 250
  alpha_var: 0.05
scheduler:
  interval: 12h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("RISKWATCH_RISK_TEST_DAYS", "100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, cfg.Source.Kind)
	assert.Equal(t, 250, cfg.Risk.WindowDays)
	assert.Equal(t, 100, cfg.Risk.TestDays)
	assert.Equal(t, 0.05, cfg.Risk.AlphaVaR)
	assert.Equal(t, 12*time.Hour, cfg.Scheduler.Interval)

	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), cfg.StartDate(end))
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Source:    SourceConfig{Kind: SourceYahoo},
			Risk:      RiskConfig{WindowDays: 10, TestDays: 5, AlphaVaR: 0.01, AlphaES: 0.025, Significance: 0.05},
			Scheduler: SchedulerConfig{Interval: time.Hour},
		}
	}

	ok := base()
	require.NoError(t, ok.Validate())

	cases := map[string]func(*Config){
		"unknown source":   func(c *Config) { c.Source.Kind = "ftp" },
		"csv without path": func(c *Config) { c.Source.Kind = SourceCSV },
		"postgres no dsn":  func(c *Config) { c.Source.Kind = SourcePostgres },
		"bad start":        func(c *Config) { c.Source.Start = "01/02/2020" },
		"zero window":      func(c *Config) { c.Risk.WindowDays = 0 },
		"zero test":        func(c *Config) { c.Risk.TestDays = 0 },
		"alpha var":        func(c *Config) { c.Risk.AlphaVaR = 1 },
		"alpha es":         func(c *Config) { c.Risk.AlphaES = 0 },
		"significance":     func(c *Config) { c.Risk.Significance = 0 },
		"interval":         func(c *Config) { c.Scheduler.Interval = 0 },
		"telegram token":   func(c *Config) { c.Alerting.Telegram.Enabled = true; c.Alerting.Telegram.ChatID = "1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStartDateLookback(t *testing.T) {
	cfg := Config{Source: SourceConfig{Lookback: 10}}
	end := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate(end))
}
