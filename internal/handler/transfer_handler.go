package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/service"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/response"
)

type transferService interface {
	Export(ctx context.Context, format models.SpreadsheetFormat) (*service.Spreadsheet, error)
	Import(ctx context.Context, format models.SpreadsheetFormat, mode models.ImportMode, r io.Reader) (*models.ImportResult, error)
}

// TransferHandler exposes spreadsheet import and export.
type TransferHandler struct {
	service     transferService
	maxFileSize int64
}

// NewTransferHandler constructs a transfer handler. maxFileSize bounds uploads.
func NewTransferHandler(svc transferService, maxFileSize int64) *TransferHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &TransferHandler{service: svc, maxFileSize: maxFileSize}
}

// Export godoc
// @Summary Export students to a spreadsheet
// @Tags Transfer
// @Produce text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(xlsx)
// @Success 200 {file} file
// @Router /students/export [get]
func (h *TransferHandler) Export(c *gin.Context) {
	format, err := service.ParseFormat(c.DefaultQuery("format", string(models.FormatXLSX)))
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, sheet.Filename, sheet.ContentType, sheet.Content)
}

// Import godoc
// @Summary Import students from a spreadsheet
// @Tags Transfer
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param mode formData string false "add, replace or upsert" default(add)
// @Param format formData string false "csv or xlsx; inferred from the file name when omitted"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/import [post]
func (h *TransferHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if header.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", h.maxFileSize)))
		return
	}
	rawFormat := c.PostForm("format")
	if rawFormat == "" {
		rawFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}
	format, err := service.ParseFormat(rawFormat)
	if err != nil {
		response.Error(c, err)
		return
	}
	mode, err := service.ParseImportMode(c.PostForm("mode"))
	if err != nil {
		response.Error(c, err)
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.Import(c.Request.Context(), format, mode, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
