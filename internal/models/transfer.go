package models

// SpreadsheetFormat selects CSV or XLSX for import/export.
type SpreadsheetFormat string

const (
	FormatCSV  SpreadsheetFormat = "csv"
	FormatXLSX SpreadsheetFormat = "xlsx"
)

// ImportMode decides how imported rows meet existing records.
type ImportMode string

const (
	// ImportAdd appends new roll numbers and skips ones already present.
	ImportAdd ImportMode = "add"
	// ImportReplace wipes records, photos and cards before loading the file.
	ImportReplace ImportMode = "replace"
	// ImportUpsert updates records matched by roll number and appends the rest.
	ImportUpsert ImportMode = "upsert"
)

// ImportResult reports what an import changed.
type ImportResult struct {
	Mode     ImportMode `json:"mode"`
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
}
