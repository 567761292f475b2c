package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name written by XLSXExporter.
const DefaultSheet = "Students"

// XLSXExporter renders and parses Dataset records as Excel workbooks.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter builds an XLSX exporter writing to sheet (DefaultSheet when empty).
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXExporter{sheet: sheet}
}

// Render writes the dataset to a single-sheet workbook. Every cell is written
// as text so roll numbers and phone numbers keep their leading zeros.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	records, err := data.records()
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), e.sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	for r, record := range records {
		cells := make([]interface{}, len(record))
		for i, v := range record {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(e.sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", r+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads the first worksheet of a workbook; its first row is the header.
func (e *XLSXExporter) Parse(r io.Reader) (Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	return fromRecords(records)
}

// ParseBytes is Parse over an in-memory workbook.
func (e *XLSXExporter) ParseBytes(data []byte) (Dataset, error) {
	return e.Parse(bytes.NewReader(data))
}
