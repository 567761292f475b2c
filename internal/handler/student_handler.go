package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/student-idcard/internal/dto"
	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/service"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id int) (*models.Student, error)
	Create(ctx context.Context, req service.CreateStudentRequest, photo io.Reader) (*models.Student, error)
	Update(ctx context.Context, id int, req service.UpdateStudentRequest, photo io.Reader) (*models.Student, error)
	Delete(ctx context.Context, id int) (bool, error)
	BulkDelete(ctx context.Context, ids []int) (*models.BulkResult, error)
	Stats(ctx context.Context) (*models.StudentStats, error)
}

// StudentHandler exposes student record endpoints.
type StudentHandler struct {
	service   studentService
	validator *validator.Validate
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(svc studentService, validate *validator.Validate) *StudentHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &StudentHandler{service: svc, validator: validate}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param name query string false "Name contains (case-insensitive)"
// @Param class query string false "Exact class"
// @Param roll query string false "Roll number contains"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Name:     strings.TrimSpace(c.Query("name")),
		Class:    c.Query("class"),
		RollNo:   c.Query("roll"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "limit"),
	}
	students, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student and render the ID card
// @Tags Students
// @Accept json,mpfd
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Param photo formData file false "Student photo (multipart only)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	photo, closePhoto, err := optionalPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closePhoto()

	student, err := h.service.Create(c.Request.Context(), req, photo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student and re-render the ID card
// @Tags Students
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Fields to change"
// @Param photo formData file false "Replacement photo (multipart only)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	photo, closePhoto, err := optionalPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closePhoto()

	student, err := h.service.Update(c.Request.Context(), id, req, photo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete student and card
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id, err := studentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !deleted {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteResponse{ID: id, Deleted: true}, nil)
}

// BulkDelete godoc
// @Summary Delete several students
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.SelectionRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Router /students/bulk-delete [post]
func (h *StudentHandler) BulkDelete(c *gin.Context) {
	req, ok := h.bindSelection(c)
	if !ok {
		return
	}
	result, err := h.service.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Student statistics
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *StudentHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *StudentHandler) bindSelection(c *gin.Context) (dto.SelectionRequest, bool) {
	return bindSelection(c, h.validator)
}

func bindSelection(c *gin.Context, validate *validator.Validate) (dto.SelectionRequest, bool) {
	var req dto.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "ids must be positive integers"))
		return req, false
	}
	return req, true
}

// optionalPhoto opens the multipart "photo" field when present.
func optionalPhoto(c *gin.Context) (io.Reader, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}
	header, err := c.FormFile("photo")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, noop, nil
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid photo upload")
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open photo")
	}
	return file, func() { _ = file.Close() }, nil
}
