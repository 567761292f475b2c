package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet applications detect UTF-8 in exported files.
const utf8BOM = "\ufeff"

// CSVExporter renders and parses Dataset records as CSV.
type CSVExporter struct {
	prefix string
}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithBOM prefixes rendered files with a UTF-8 byte order mark. Parse always
// tolerates one.
func WithBOM() CSVOption {
	return func(e *CSVExporter) {
		e.prefix = utf8BOM
	}
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render encodes the dataset, header first. Prefix, when set, is written
// before the header.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	records, err := data.records()
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	buf.WriteString(e.prefix)
	if err := csv.NewWriter(buf).WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads CSV whose first row is the header.
func (e *CSVExporter) Parse(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}
