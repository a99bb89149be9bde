package excel

import (
	"fmt"
	"os"
	"strconv"

	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"

	"github.com/xuri/excelize/v2"
)

// DataReader reads back workbooks written by WorkbookWriter
type DataReader struct {
	filePath string
}

// NewDataReader creates a reader for one workbook
func NewDataReader(filePath string) *DataReader {
	return &DataReader{filePath: filePath}
}

// ReadSheet reads a worksheet into header-keyed rows
func (r *DataReader) ReadSheet(sheet string) (*SheetData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("workbook not found: %s", r.filePath)
	}

	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &SheetData{}, nil
	}

	data := &SheetData{Headers: rows[0], Rows: make([]RawRowData, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		raw := make(RawRowData, len(data.Headers))
		for i, header := range data.Headers {
			// GetRows trims trailing empty cells
			if i < len(row) {
				raw[header] = row[i]
			} else {
				raw[header] = ""
			}
		}
		data.Rows = append(data.Rows, raw)
	}
	return data, nil
}

// ReadPowerCurve parses the Power sheet back into a curve. The curve-level
// columns repeat on every row; the first row supplies them.
func (r *DataReader) ReadPowerCurve() (*simulation.PowerCurve, error) {
	sheet, err := r.ReadSheet(PowerSheet)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("power sheet of %s has no points", r.filePath)
	}

	curve := &simulation.PowerCurve{Points: make([]simulation.PowerPoint, 0, len(sheet.Rows))}
	first := sheet.Rows[0]
	if curve.Tau0, err = strconv.ParseFloat(first["tau0"], 64); err != nil {
		return nil, fmt.Errorf("row 2: bad tau0 %q: %w", first["tau0"], err)
	}
	if curve.Theta, err = strconv.ParseFloat(first["theta"], 64); err != nil {
		return nil, fmt.Errorf("row 2: bad theta %q: %w", first["theta"], err)
	}
	if curve.Trials, err = strconv.Atoi(first["trials"]); err != nil {
		return nil, fmt.Errorf("row 2: bad trials %q: %w", first["trials"], err)
	}
	if curve.Replicates, err = strconv.Atoi(first["replicates"]); err != nil {
		return nil, fmt.Errorf("row 2: bad replicates %q: %w", first["replicates"], err)
	}

	for i, row := range sheet.Rows {
		var p simulation.PowerPoint
		if p.Tau1, err = strconv.ParseFloat(row["tau1"], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad tau1 %q: %w", i+2, row["tau1"], err)
		}
		if row["power"] != "" {
			if p.Power, err = strconv.ParseFloat(row["power"], 64); err != nil {
				return nil, fmt.Errorf("row %d: bad power %q: %w", i+2, row["power"], err)
			}
		}
		if p.Usable, err = strconv.Atoi(row["usable"]); err != nil {
			return nil, fmt.Errorf("row %d: bad usable %q: %w", i+2, row["usable"], err)
		}
		if p.Excluded, err = strconv.Atoi(row["excluded"]); err != nil {
			return nil, fmt.Errorf("row %d: bad excluded %q: %w", i+2, row["excluded"], err)
		}
		p.RunID = core.RunID(row["run_id"])
		curve.Points = append(curve.Points, p)
	}
	return curve, nil
}
