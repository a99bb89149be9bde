package excel

// Sheet names used by the workbook writer and reader
const (
	SummarySheet = "Summary"
	PowerSheet   = "Power"
)

// RawRowData represents a row of workbook data as header -> cell text
type RawRowData map[string]string

// SheetData represents one worksheet read back from a workbook
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

var replicateHeaders = []string{
	"replicate", "f0", "f1", "f2", "f3", "f4",
	"tau0_hat", "var_x0", "tau0_lower", "tau0_upper", "tau0_covered", "tau0_outcome",
	"tau1_hat", "var_x1", "tau1_lower", "tau1_upper", "tau1_covered", "tau1_outcome",
}

var summaryHeaders = []string{
	"sheet", "run_id", "tau0", "tau1", "theta", "trials", "replicates", "seed",
	"tau0_usable", "tau0_excluded", "tau0_mean", "tau0_bias", "tau0_sd", "tau0_rmse", "tau0_coverage", "tau0_calibration",
	"tau1_usable", "tau1_excluded", "tau1_mean", "tau1_bias", "tau1_sd", "tau1_rmse", "tau1_coverage", "tau1_calibration",
	"degenerate_variances",
}

var powerHeaders = []string{"tau1", "power", "usable", "excluded", "run_id", "tau0", "theta", "trials", "replicates"}
