package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSVDir writes each table to <dir>/<sheet>.csv and returns the paths written.
func WriteCSVDir(dir string, wb Workbook) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, 3)
	for _, table := range wb.Tables() {
		path := filepath.Join(dir, table.Name+".csv")
		if err := writeCSVFile(path, table); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, table Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, table)
}

// WriteCSV writes one table with a header row.
func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader, name string) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("csv %s has no header", name)
	}

	table := Table{Name: name, Columns: records[0], Rows: make([][]any, 0, len(records)-1)}
	for i, rec := range records[1:] {
		row := make([]any, len(table.Columns))
		for j, column := range table.Columns {
			v, err := parseCell(column, rec[j])
			if err != nil {
				return Table{}, fmt.Errorf("csv %s row %d column %s: %w", name, i+1, column, err)
			}
			row[j] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
