package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/service"
)

type transferServiceMock struct {
	lastFormat models.SpreadsheetFormat
	lastMode   models.ImportMode
	uploaded   []byte
	result     *models.ImportResult
	err        error
}

func (m *transferServiceMock) Export(_ context.Context, format models.SpreadsheetFormat) (*service.Spreadsheet, error) {
	m.lastFormat = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.Spreadsheet{
		Filename:    "students_data_20240101_120000." + string(format),
		ContentType: "text/csv",
		Content:     []byte("id,name\n"),
	}, nil
}

func (m *transferServiceMock) Import(_ context.Context, format models.SpreadsheetFormat, mode models.ImportMode, r io.Reader) (*models.ImportResult, error) {
	m.lastFormat = format
	m.lastMode = mode
	m.uploaded, _ = io.ReadAll(r)
	return m.result, m.err
}

func TestTransferHandlerExportDefaultsToXLSX(t *testing.T) {
	mock := &transferServiceMock{}
	handler := NewTransferHandler(mock, 0)

	c, w := newGinContext(http.MethodGet, "/students/export", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FormatXLSX, mock.lastFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "students_data_20240101_120000.xlsx")
}

func TestTransferHandlerExportRejectsUnknownFormat(t *testing.T) {
	mock := &transferServiceMock{}
	handler := NewTransferHandler(mock, 0)

	c, w := newGinContext(http.MethodGet, "/students/export?format=pdf", nil)
	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.lastFormat)
}

func TestTransferHandlerImportInfersFormatFromExtension(t *testing.T) {
	mock := &transferServiceMock{result: &models.ImportResult{Mode: models.ImportUpsert, Rows: 1, Updated: 1}}
	handler := NewTransferHandler(mock, 0)

	c, w := newMultipartContext(t, http.MethodPost, "/students/import", map[string]string{"mode": "upsert"}, "file", "Students.CSV", []byte("name,roll_no\n"))
	handler.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FormatCSV, mock.lastFormat)
	assert.Equal(t, models.ImportUpsert, mock.lastMode)
	assert.Equal(t, []byte("name,roll_no\n"), mock.uploaded)

	var result models.ImportResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, 1, result.Updated)
}

func TestTransferHandlerImportDefaultsToAdd(t *testing.T) {
	mock := &transferServiceMock{result: &models.ImportResult{}}
	handler := NewTransferHandler(mock, 0)

	c, w := newMultipartContext(t, http.MethodPost, "/students/import", map[string]string{"format": "xlsx"}, "file", "upload.bin", []byte("data"))
	handler.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FormatXLSX, mock.lastFormat)
	assert.Equal(t, models.ImportAdd, mock.lastMode)
}

func TestTransferHandlerImportValidation(t *testing.T) {
	cases := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		limit    int64
	}{
		{name: "missing file", fields: map[string]string{"mode": "add"}},
		{name: "unknown extension", filename: "students.txt", content: []byte("x")},
		{name: "unknown mode", fields: map[string]string{"mode": "merge"}, filename: "students.csv", content: []byte("x")},
		{name: "too large", filename: "students.csv", content: []byte("0123456789"), limit: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &transferServiceMock{}
			handler := NewTransferHandler(mock, tc.limit)
			fileField := ""
			if tc.filename != "" {
				fileField = "file"
			}

			c, w := newMultipartContext(t, http.MethodPost, "/students/import", tc.fields, fileField, tc.filename, tc.content)
			handler.Import(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, mock.uploaded)
		})
	}
}
