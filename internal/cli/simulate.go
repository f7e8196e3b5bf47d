package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
)

var (
	simulateTicker     string
	simulateMethod     string
	simulateN          int
	simulateExceptions int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次 VaR 回测失败并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateN <= 0 {
			return errors.New("--n 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateAlertOptions{
			Ticker:     simulateTicker,
			Method:     simulateMethod,
			N:          simulateN,
			Exceptions: simulateExceptions,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTicker, "ticker", "", "Ticker shown in the alert")
	simulateCmd.Flags().StringVar(&simulateMethod, "method", "VaR99_hist_loss", "VaR column name shown in the alert")
	simulateCmd.Flags().IntVar(&simulateN, "n", 252, "Backtest observations")
	simulateCmd.Flags().IntVar(&simulateExceptions, "exceptions", 8, "VaR exceptions")
}
