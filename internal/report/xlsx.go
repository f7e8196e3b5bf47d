package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"riskwatch/internal/series"
)

const defaultSheet = "Sheet1"

// EncodeXLSX writes the workbook as an .xlsx document with one sheet per table.
// Non-finite numbers are left as empty cells.
func EncodeXLSX(wb Workbook) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for _, table := range wb.Tables() {
		if _, err := f.NewSheet(table.Name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", table.Name, err)
		}
		if err := writeSheet(f, table); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetDaily); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX encodes the workbook into w.
func WriteXLSX(w io.Writer, wb Workbook) error {
	data, err := EncodeXLSX(wb)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}

func writeSheet(f *excelize.File, table Table) error {
	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(table.Name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", table.Name, err)
	}

	for i, row := range table.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = xlsxValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.Name, cell, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", table.Name, i+1, err)
		}
	}
	return nil
}

func xlsxValue(v any) any {
	switch c := v.(type) {
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil
		}
		return c
	case time.Time:
		return c.Format(series.DateLayout)
	default:
		return v
	}
}

// DecodeXLSX reads a workbook produced by EncodeXLSX.
func DecodeXLSX(r io.Reader) (Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var wb Workbook
	targets := []struct {
		name string
		dst  *Table
	}{
		{SheetDaily, &wb.Daily},
		{SheetVaR, &wb.VaR},
		{SheetES, &wb.ES},
	}
	for _, t := range targets {
		table, err := readSheet(f, t.name)
		if err != nil {
			return Workbook{}, err
		}
		*t.dst = table
	}
	return wb, nil
}

func readSheet(f *excelize.File, name string) (Table, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("sheet %s has no header", name)
	}

	table := Table{Name: name, Columns: rows[0], Rows: make([][]any, 0, len(rows)-1)}
	for i, raw := range rows[1:] {
		row := make([]any, len(table.Columns))
		for j, column := range table.Columns {
			cell := ""
			if j < len(raw) {
				cell = raw[j]
			}
			v, err := parseCell(column, cell)
			if err != nil {
				return Table{}, fmt.Errorf("sheet %s row %d column %s: %w", name, i+1, column, err)
			}
			row[j] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
