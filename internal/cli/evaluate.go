package cli

import (
	"github.com/spf13/cobra"

	"riskwatch/internal/app"
	"riskwatch/internal/risk"
)

var (
	evalTicker   string
	evalFrom     string
	evalTo       string
	evalSource   string
	evalCSVFile  string
	evalWindow   int
	evalTest     int
	evalAlphaVaR float64
	evalAlphaES  float64
	evalXLSX     string
	evalCSVDir   string
	evalPNG      string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Estimate rolling VaR/ES and backtest them once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.EvaluateOptions{
			Ticker:  evalTicker,
			Source:  evalSource,
			CSVFile: evalCSVFile,
			Params: risk.Params{
				WindowDays: evalWindow,
				TestDays:   evalTest,
				AlphaVaR:   evalAlphaVaR,
				AlphaES:    evalAlphaES,
			},
			XLSXPath: evalXLSX,
			CSVDir:   evalCSVDir,
			PNGPath:  evalPNG,
		}

		if evalFrom != "" {
			from, err := parseDay("from", evalFrom)
			if err != nil {
				return err
			}
			opts.From = &from
		}

		if evalTo != "" {
			to, err := parseDay("to", evalTo)
			if err != nil {
				return err
			}
			opts.To = &to
		}

		_, err := getApp().Evaluate(cmd.Context(), opts)
		return err
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTicker, "ticker", "", tickerHelp("Ticker or preset"))
	evaluateCmd.Flags().StringVar(&evalFrom, "from", "", "First day of history (YYYY-MM-DD, inclusive)")
	evaluateCmd.Flags().StringVar(&evalTo, "to", "", "Last day of history (YYYY-MM-DD, exclusive)")
	evaluateCmd.Flags().StringVar(&evalSource, "source", "", "Price source: yahoo, csv or postgres (defaults to config)")
	evaluateCmd.Flags().StringVar(&evalCSVFile, "csv-file", "", "Price file for the csv source")
	evaluateCmd.Flags().IntVar(&evalWindow, "window", 0, "Estimation window in trading days (defaults to config)")
	evaluateCmd.Flags().IntVar(&evalTest, "test", 0, "Backtest period in trading days (defaults to config)")
	evaluateCmd.Flags().Float64Var(&evalAlphaVaR, "alpha-var", 0, "VaR tail probability (defaults to config)")
	evaluateCmd.Flags().Float64Var(&evalAlphaES, "alpha-es", 0, "ES tail probability (defaults to config)")
	evaluateCmd.Flags().StringVar(&evalXLSX, "xlsx", "", "Path to write the xlsx workbook")
	evaluateCmd.Flags().StringVar(&evalCSVDir, "csv-dir", "", "Directory to write one CSV per table")
	evaluateCmd.Flags().StringVar(&evalPNG, "png", "", "Path to write the loss vs VaR chart")
}
