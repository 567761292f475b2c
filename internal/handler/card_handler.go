package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/student-idcard/internal/dto"
	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/pkg/response"
)

const (
	pdfContentType = "application/pdf"
	zipContentType = "application/zip"
)

type cardService interface {
	Download(ctx context.Context, id int) (*models.CardDocument, error)
	GenerateByID(ctx context.Context, id int) (*models.CardDocument, error)
	Link(ctx context.Context, id int) (*models.CardLink, error)
	ResolveDownload(token string) (*models.CardDocument, error)
	Regenerate(ctx context.Context, ids []int) (*models.BulkResult, error)
	Bundle(ctx context.Context, ids []int) (string, []byte, *models.BulkResult, error)
}

// CardHandler exposes ID card rendering and delivery endpoints.
type CardHandler struct {
	service   cardService
	validator *validator.Validate
}

// NewCardHandler constructs a card handler.
func NewCardHandler(svc cardService, validate *validator.Validate) *CardHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &CardHandler{service: svc, validator: validate}
}

// Download godoc
// @Summary Download a student's ID card
// @Description Renders the card first when no stored copy exists.
// @Tags Cards
// @Produce application/pdf
// @Param id path int true "Student ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/card [get]
func (h *CardHandler) Download(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, pdfContentType, doc.Content)
}

// Regenerate godoc
// @Summary Re-render a student's ID card
// @Tags Cards
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/card [post]
func (h *CardHandler) Regenerate(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.GenerateByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCardResponse(doc), nil)
}

// Link godoc
// @Summary Issue a signed card download link
// @Tags Cards
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/card/link [get]
func (h *CardHandler) Link(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.service.Link(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// SignedDownload godoc
// @Summary Download a card through a signed link
// @Tags Cards
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *CardHandler) SignedDownload(c *gin.Context) {
	doc, err := h.service.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, pdfContentType, doc.Content)
}

// BulkRegenerate godoc
// @Summary Re-render several cards
// @Description An empty or missing ids list re-renders every card.
// @Tags Cards
// @Accept json
// @Produce json
// @Param payload body dto.SelectionRequest false "Student IDs"
// @Success 200 {object} response.Envelope
// @Router /cards/regenerate [post]
func (h *CardHandler) BulkRegenerate(c *gin.Context) {
	req, ok := bindSelection(c, h.validator)
	if !ok {
		return
	}
	result, err := h.service.Regenerate(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Bundle godoc
// @Summary Download selected cards as a ZIP archive
// @Tags Cards
// @Accept json
// @Produce application/zip
// @Param payload body dto.SelectionRequest true "Student IDs"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /cards/bundle [post]
func (h *CardHandler) Bundle(c *gin.Context) {
	req, ok := bindSelection(c, h.validator)
	if !ok {
		return
	}
	filename, archive, result, err := h.service.Bundle(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Cards-Included", strconv.Itoa(result.Succeeded))
	c.Header("X-Cards-Skipped", strconv.Itoa(len(result.Failed)))
	response.Attachment(c, filename, zipContentType, archive)
}
