package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"riskwatch/internal/backtest"
)

// Render prints every table with a tabwriter, then the exception-rate summary.
func Render(w io.Writer, wb Workbook, vars []backtest.VaRRecord) error {
	for _, table := range wb.Tables() {
		if err := renderTable(w, table); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(vars) > 0 {
		fmt.Fprintln(w, "Exception rates")
		for _, r := range vars {
			fmt.Fprintf(w, "  %s: %s%% (%d/%d)\n", r.Method, strconv.FormatFloat(r.ExceptionRate*100, 'f', 2, 64), r.Exceptions, r.N)
		}
	}
	return nil
}

func renderTable(w io.Writer, table Table) error {
	fmt.Fprintf(w, "== %s ==\n", table.Name)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns, "\t"))

	cells := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = displayCell(row[i])
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func displayCell(v any) string {
	if f, ok := v.(float64); ok {
		s := formatCell(f)
		if s == "" {
			return "NaN"
		}
		return strconv.FormatFloat(f, 'f', 6, 64)
	}
	return formatCell(v)
}
