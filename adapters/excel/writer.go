package excel

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/internal/errors"

	"github.com/xuri/excelize/v2"
)

// WorkbookWriter exports simulation output to xlsx workbooks
type WorkbookWriter struct {
	logger *internal.Logger
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(logger *internal.Logger) *WorkbookWriter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &WorkbookWriter{logger: logger.With("excel")}
}

// RunSheetName names the replicate sheet of the i-th setting (0-based).
func RunSheetName(i int) string {
	return fmt.Sprintf("Run %d", i+1)
}

// WriteRuns writes a Summary sheet with one row per setting, followed by one
// sheet of per-replicate arrays per setting. results and summaries are
// parallel slices.
func (w *WorkbookWriter) WriteRuns(path string, results []*simulation.Result, summaries []*simulation.RunSummary) error {
	if len(results) != len(summaries) {
		return errors.InvalidInput(fmt.Sprintf("got %d results but %d summaries", len(results), len(summaries)))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return errors.ExportFailed("workbook", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.ExportFailed("workbook", err)
	}

	if err := writeHeader(f, SummarySheet, summaryHeaders, bold); err != nil {
		return errors.ExportFailed("summary sheet", err)
	}
	for i, s := range summaries {
		p := s.Settings.Params
		row := []interface{}{
			RunSheetName(i), s.RunID.String(), p.Tau0, p.Tau1, p.Theta,
			s.Settings.Trials, s.Settings.Replicates, fmt.Sprintf("%d", s.Settings.Seed),
		}
		for _, ps := range []simulation.ParameterSummary{s.Tau0, s.Tau1} {
			row = append(row, ps.Usable, ps.Excluded, num(ps.Mean), num(ps.Bias), num(ps.StdDev),
				num(ps.RMSE), num(ps.Coverage), num(ps.CalibrationRatio))
		}
		row = append(row, s.DegenerateVariances)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.ExportFailed("summary sheet", err)
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return errors.ExportFailed("summary sheet", err)
		}
	}

	for i, result := range results {
		name := RunSheetName(i)
		if _, err := f.NewSheet(name); err != nil {
			return errors.ExportFailed(name, err)
		}
		if err := writeReplicates(f, name, result, bold); err != nil {
			return errors.ExportFailed(name, err)
		}
	}

	f.SetActiveSheet(0)
	if err := save(f, path); err != nil {
		return err
	}
	w.logger.Info("wrote %d settings to %s", len(results), path)
	return nil
}

// WritePowerCurve writes a single Power sheet.
func (w *WorkbookWriter) WritePowerCurve(path string, curve *simulation.PowerCurve) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PowerSheet); err != nil {
		return errors.ExportFailed("workbook", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.ExportFailed("workbook", err)
	}
	if err := writeHeader(f, PowerSheet, powerHeaders, bold); err != nil {
		return errors.ExportFailed("power sheet", err)
	}
	for i, p := range curve.Points {
		row := []interface{}{p.Tau1, num(p.Power), p.Usable, p.Excluded, p.RunID.String(),
			curve.Tau0, curve.Theta, curve.Trials, curve.Replicates}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.ExportFailed("power sheet", err)
		}
		if err := f.SetSheetRow(PowerSheet, cell, &row); err != nil {
			return errors.ExportFailed("power sheet", err)
		}
	}

	if err := save(f, path); err != nil {
		return err
	}
	w.logger.Info("wrote power curve with %d points to %s", len(curve.Points), path)
	return nil
}

// writeReplicates streams one row per replicate; excluded estimates are
// written as blank cells next to their outcome.
func writeReplicates(f *excelize.File, sheet string, result *simulation.Result, headerStyle int) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(replicateHeaders))
	for i, h := range replicateHeaders {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, rec := range result.Records {
		row := make([]interface{}, 0, len(replicateHeaders))
		row = append(row, rec.Replicate)
		for _, v := range rec.Frequencies {
			row = append(row, v)
		}
		for _, est := range []simulation.ParameterEstimate{rec.Tau0, rec.Tau1} {
			if est.Usable() {
				row = append(row, num(est.Estimate), num(est.Variance),
					num(est.Interval.Lower), num(est.Interval.Upper), est.Covered, string(est.Outcome))
			} else {
				row = append(row, nil, num(est.Variance), nil, nil, nil, string(est.Outcome))
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func save(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.ExportFailed("workbook", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.ExportFailed("workbook", err)
	}
	return nil
}

// num keeps non-finite values out of numeric cells.
func num(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
