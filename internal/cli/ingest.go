package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
	"riskwatch/internal/series"
)

var (
	ingestTickers []string
	ingestFrom    string
	ingestTo      string
	ingestDryRun  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download daily closes into the price cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestFrom == "" {
			return fmt.Errorf("--from must be provided")
		}

		from, err := parseDay("from", ingestFrom)
		if err != nil {
			return err
		}

		to := series.Day(time.Now().UTC()).AddDate(0, 0, 1)
		if ingestTo != "" {
			to, err = parseDay("to", ingestTo)
			if err != nil {
				return err
			}
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.IngestOptions{
			Tickers: ingestTickers,
			From:    from,
			To:      to,
			DryRun:  ingestDryRun,
		}

		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTickers, "ticker", nil, tickerHelp("Tickers to download, defaults to source.ticker"))
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "First day (YYYY-MM-DD, inclusive)")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "Last day (YYYY-MM-DD, exclusive, defaults to tomorrow)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Fetch without writing to storage")
}
