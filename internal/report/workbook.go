package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"riskwatch/internal/backtest"
	"riskwatch/internal/risk"
	"riskwatch/internal/series"
)

// Sheet names of the exported workbook.
const (
	SheetDaily     = "daily_results"
	SheetVaR       = "backtest_VaR"
	SheetES        = "backtest_ES"
	ColumnDate     = "date"
	ColumnMethod   = "method"
	ColumnNote     = "note"
	ColumnN        = "n"
	ColumnExcepts  = "exceptions"
	ColumnRealized = "r_real"
	ColumnLoss     = "loss_real"
)

// Table is an ordered, named grid. Cells hold string, int, float64 or time.Time.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Workbook bundles the three result tables in export order.
type Workbook struct {
	Daily Table
	VaR   Table
	ES    Table
}

// Tables lists the sheets in export order.
func (w Workbook) Tables() []Table {
	return []Table{w.Daily, w.VaR, w.ES}
}

// Assemble lays out estimates and backtest records as tables. Column and row
// order follow the inputs exactly.
func Assemble(labels risk.Labels, rows []risk.Estimate, vars []backtest.VaRRecord, ess []backtest.ESRecord) Workbook {
	daily := Table{
		Name:    SheetDaily,
		Columns: []string{ColumnDate, ColumnRealized, ColumnLoss, labels.NormalVaR, labels.HistoricalVaR, labels.HistoricalES},
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		daily.Rows = append(daily.Rows, []any{r.Date, r.RealizedReturn, r.RealizedLoss, r.NormalVaR, r.HistoricalVaR, r.HistoricalES})
	}

	varTable := Table{
		Name:    SheetVaR,
		Columns: []string{ColumnMethod, ColumnN, ColumnExcepts, "exception_rate", "LR_uc", "p_value"},
		Rows:    make([][]any, 0, len(vars)),
	}
	for _, r := range vars {
		varTable.Rows = append(varTable.Rows, []any{r.Method, r.N, r.Exceptions, r.ExceptionRate, r.LR, r.PValue})
	}

	esTable := Table{
		Name:    SheetES,
		Columns: []string{ColumnMethod, "mean_loss", labels.WorstTail, "mean_ES", ColumnNote},
		Rows:    make([][]any, 0, len(ess)),
	}
	for _, r := range ess {
		esTable.Rows = append(esTable.Rows, []any{r.Method, r.MeanLoss, r.MeanWorstLoss, r.MeanES, r.Note})
	}

	return Workbook{Daily: daily, VaR: varTable, ES: esTable}
}

type cellKind int

const (
	kindFloat cellKind = iota
	kindInt
	kindString
	kindDate
)

// kindOf maps a column name to its cell type when reading exports back.
func kindOf(column string) cellKind {
	switch column {
	case ColumnDate:
		return kindDate
	case ColumnMethod, ColumnNote:
		return kindString
	case ColumnN, ColumnExcepts:
		return kindInt
	default:
		return kindFloat
	}
}

// formatCell renders a cell for text exports; non-finite floats become "".
func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return ""
		}
		return strconv.FormatFloat(c, 'g', -1, 64)
	case time.Time:
		return c.Format(series.DateLayout)
	default:
		return ""
	}
}

// parseCell is the inverse of formatCell for the given column.
func parseCell(column, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kindOf(column) {
	case kindDate:
		return series.ParseDate(raw)
	case kindString:
		return raw, nil
	case kindInt:
		return strconv.Atoi(raw)
	default:
		if raw == "" {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(raw, 64)
	}
}
