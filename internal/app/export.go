package app

import (
	"bytes"
	"os"
	"path/filepath"

	"riskwatch/internal/report"
	"riskwatch/internal/service"
)

func (a *App) writeExports(res *service.Result, opts EvaluateOptions) error {
	opts.XLSXPath = a.resolveExportPath(opts.XLSXPath)
	opts.CSVDir = a.resolveExportPath(opts.CSVDir)
	opts.PNGPath = a.resolveExportPath(opts.PNGPath)

	if opts.XLSXPath != "" {
		if err := writeXLSXFile(opts.XLSXPath, res.Workbook); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.XLSXPath).Msg("workbook written")
	}

	if opts.CSVDir != "" {
		paths, err := report.WriteCSVDir(opts.CSVDir, res.Workbook)
		if err != nil {
			return err
		}
		a.Logger.Info().Strs("paths", paths).Msg("csv tables written")
	}

	if opts.PNGPath != "" {
		chartOpts := report.ChartOptions{
			Width:  a.Config.Export.ChartWidth,
			Height: a.Config.Export.ChartHeight,
			Title:  res.Ticker,
		}
		if err := writePNGFile(opts.PNGPath, res, chartOpts); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("chart written")
	}

	return nil
}

func writeXLSXFile(path string, wb report.Workbook) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return report.WriteXLSX(file, wb)
}

func writePNGFile(path string, res *service.Result, opts report.ChartOptions) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// render first so a failed chart leaves no empty file behind
	var buf bytes.Buffer
	if err := report.WriteChart(&buf, res.Labels, res.Estimates, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// resolveExportPath places bare file names under the configured export dir.
func (a *App) resolveExportPath(path string) string {
	if path == "" || filepath.IsAbs(path) || filepath.Dir(path) != "." || a.Config.Export.Dir == "" {
		return path
	}
	return filepath.Join(a.Config.Export.Dir, path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
