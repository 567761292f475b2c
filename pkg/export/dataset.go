package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular content shared by the spreadsheet codecs.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// MissingColumns returns the required headers absent from d, in required order.
func (d Dataset) MissingColumns(required []string) []string {
	present := make(map[string]struct{}, len(d.Headers))
	for _, h := range d.Headers {
		present[h] = struct{}{}
	}
	missing := make([]string, 0)
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// records flattens d into a header row followed by one row per record, with
// cells ordered by Headers. Keys missing from a row become empty cells.
func (d Dataset) records() ([][]string, error) {
	if len(d.Headers) == 0 {
		return nil, fmt.Errorf("dataset requires at least one header")
	}
	out := make([][]string, 0, len(d.Rows)+1)
	out = append(out, d.Headers)
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, h := range d.Headers {
			record[i] = row[h]
		}
		out = append(out, record)
	}
	return out, nil
}

// fromRecords builds a dataset from a header row followed by data rows.
// Header cells are trimmed and lower-cased; blank rows are dropped.
func fromRecords(records [][]string) (Dataset, error) {
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("spreadsheet is empty")
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return Dataset{Headers: headers, Rows: rows}, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
