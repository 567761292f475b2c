package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/repository"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	recentLimit     = 3
)

type studentCards interface {
	Generate(ctx context.Context, student models.Student) (*models.CardDocument, error)
	Remove(rollNo string) error
}

type studentPhotos interface {
	Store(rollNo string, upload io.Reader) (string, error)
	Rename(path, filename string) (string, error)
	Remove(path string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Name         string `json:"name" form:"name" validate:"required"`
	FatherName   string `json:"father_name" form:"father_name"`
	RollNo       string `json:"roll_no" form:"roll_no" validate:"required"`
	Class        string `json:"class" form:"class"`
	Phone        string `json:"phone" form:"phone"`
	GRNumber     string `json:"gr_number" form:"gr_number"`
	DateOfBirth  string `json:"date_of_birth" form:"date_of_birth" validate:"required"`
	DateOfIssue  string `json:"date_of_issue" form:"date_of_issue" validate:"required"`
	DateOfExpiry string `json:"date_of_expiry" form:"date_of_expiry" validate:"required"`
}

// UpdateStudentRequest holds a partial edit. Omitted fields keep their value.
type UpdateStudentRequest struct {
	Name         *string `json:"name" form:"name" validate:"omitempty,min=1"`
	FatherName   *string `json:"father_name" form:"father_name"`
	RollNo       *string `json:"roll_no" form:"roll_no" validate:"omitempty,min=1"`
	Class        *string `json:"class" form:"class"`
	Phone        *string `json:"phone" form:"phone"`
	GRNumber     *string `json:"gr_number" form:"gr_number"`
	DateOfBirth  *string `json:"date_of_birth" form:"date_of_birth"`
	DateOfIssue  *string `json:"date_of_issue" form:"date_of_issue"`
	DateOfExpiry *string `json:"date_of_expiry" form:"date_of_expiry"`
	RemovePhoto  bool    `json:"remove_photo" form:"remove_photo"`
}

// StudentConfig tunes record lifecycle side effects.
type StudentConfig struct {
	DeletePhotoOnRemove bool
}

// StudentService handles student use-cases.
type StudentService struct {
	records   repository.RecordStore
	cards     studentCards
	photos    studentPhotos
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StudentConfig
}

// NewStudentService constructs the student service.
func NewStudentService(records repository.RecordStore, cards studentCards, photos studentPhotos, validate *validator.Validate, logger *zap.Logger, cfg StudentConfig) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{records: records, cards: cards, photos: photos, validator: validate, logger: logger, cfg: cfg}
}

// List returns students matching filter and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, nil, storeError(err, "failed to list students")
	}
	name := strings.ToLower(filter.Name)
	matched := make([]models.Student, 0, len(students))
	for _, st := range students {
		if name != "" && !strings.Contains(strings.ToLower(st.Name), name) {
			continue
		}
		if filter.Class != "" && st.Class != filter.Class {
			continue
		}
		if filter.RollNo != "" && !strings.Contains(st.RollNo, filter.RollNo) {
			continue
		}
		matched = append(matched, st)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(matched)}
	return matched[start:end], pagination, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id int) (*models.Student, error) {
	student, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load student")
	}
	return student, nil
}

// Create validates req, stores the optional photo, persists the record and
// renders its card. A rendering failure is logged; the record stays and the
// card is produced again on first download.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, photo io.Reader) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		Name:       req.Name,
		FatherName: req.FatherName,
		RollNo:     req.RollNo,
		Class:      req.Class,
		Phone:      req.Phone,
		GRNumber:   req.GRNumber,
	}
	var err error
	if student.DateOfBirth, err = parseField("date_of_birth", req.DateOfBirth); err != nil {
		return nil, err
	}
	if student.DateOfIssue, err = parseField("date_of_issue", req.DateOfIssue); err != nil {
		return nil, err
	}
	if student.DateOfExpiry, err = parseField("date_of_expiry", req.DateOfExpiry); err != nil {
		return nil, err
	}
	if err := checkValidity(*student); err != nil {
		return nil, err
	}

	var stored string
	err = s.records.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		next, err := repository.InsertRecord(students, student, models.Now())
		if err != nil || photo == nil {
			return next, err
		}
		key, err := photoKey(students, student.RollNo, student.ID)
		if err != nil {
			return nil, err
		}
		path, err := s.photos.Store(key, photo)
		if err != nil {
			return nil, err
		}
		stored = path
		student.PhotoPath = &path
		next[len(next)-1].PhotoPath = &path
		return next, nil
	})
	if err != nil {
		if stored != "" {
			_ = s.photos.Remove(stored)
		}
		return nil, storeError(err, "failed to create student")
	}
	s.logger.Info("student created", zap.Int("student_id", student.ID), zap.String("roll_no", student.RollNo))
	s.renderCard(ctx, *student)
	return student, nil
}

// Update merges req into the record with id and re-renders the card. An
// uploaded photo replaces the current one; otherwise a roll number change
// moves the stored photo to the new roll's file name, and the card stored
// under the previous roll number is removed.
func (s *StudentService) Update(ctx context.Context, id int, req UpdateStudentRequest, photo io.Reader) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	patch := models.StudentPatch{
		Name:       req.Name,
		FatherName: req.FatherName,
		RollNo:     req.RollNo,
		Class:      req.Class,
		Phone:      req.Phone,
		GRNumber:   req.GRNumber,
	}
	var err error
	if patch.DateOfBirth, err = parseOptionalField("date_of_birth", req.DateOfBirth); err != nil {
		return nil, err
	}
	if patch.DateOfIssue, err = parseOptionalField("date_of_issue", req.DateOfIssue); err != nil {
		return nil, err
	}
	if patch.DateOfExpiry, err = parseOptionalField("date_of_expiry", req.DateOfExpiry); err != nil {
		return nil, err
	}

	var (
		updated *models.Student
		undo    func()
	)
	err = s.records.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		idx := repository.IndexByID(students, id)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		existing := students[idx]
		merged := existing
		patch.Apply(&merged)
		if err := checkValidity(merged); err != nil {
			return nil, err
		}
		rollChanged := merged.RollNo != existing.RollNo
		if rollChanged && repository.RollNoTaken(students, merged.RollNo, id) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRollNumber, fmt.Sprintf("roll number %q already exists", merged.RollNo))
		}

		switch {
		case photo != nil:
			key, err := photoKey(students, merged.RollNo, id)
			if err != nil {
				return nil, err
			}
			path, err := s.photos.Store(key, photo)
			if err != nil {
				return nil, err
			}
			patch.PhotoPath = &path
		case req.RemovePhoto:
			cleared := ""
			patch.PhotoPath = &cleared
		case rollChanged && existing.Photo() != "" && !photoReferenced(students, existing.Photo(), id):
			key, err := photoKey(students, merged.RollNo, id)
			if err != nil {
				return nil, err
			}
			path, err := s.photos.Rename(existing.Photo(), PhotoFilename(key))
			if err != nil {
				return nil, err
			}
			patch.PhotoPath = &path
			if path != "" {
				original := filepath.Base(existing.Photo())
				undo = func() {
					if _, err := s.photos.Rename(path, original); err != nil {
						s.logger.Warn("photo not restored", zap.String("path", path), zap.Error(err))
					}
				}
			}
		}

		next, st, err := repository.UpdateRecord(students, id, patch, models.Now())
		if err != nil {
			return nil, err
		}
		if rollChanged {
			if err := s.cards.Remove(existing.RollNo); err != nil {
				s.logger.Warn("stale card not removed", zap.String("roll_no", existing.RollNo), zap.Error(err))
			}
		}
		updated = st
		return next, nil
	})
	if err != nil {
		if undo != nil {
			undo()
		}
		return nil, storeError(err, "failed to update student")
	}
	s.logger.Info("student updated", zap.Int("student_id", id))
	s.renderCard(ctx, *updated)
	return updated, nil
}

// Delete removes the record with id and its card. It reports false when no
// such record exists. The photo is kept unless DeletePhotoOnRemove is set and
// no other record points at the same file.
func (s *StudentService) Delete(ctx context.Context, id int) (bool, error) {
	var removed *models.Student
	err := s.records.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		next, st, ok := repository.DeleteRecord(students, id)
		if !ok {
			return nil, repository.ErrUnchanged
		}
		removed = st
		if err := s.cards.Remove(st.RollNo); err != nil {
			s.logger.Warn("card not removed", zap.Int("student_id", id), zap.Error(err))
		}
		if s.cfg.DeletePhotoOnRemove && st.Photo() != "" {
			if photoReferenced(next, st.Photo(), 0) {
				s.logger.Debug("shared photo kept", zap.Int("student_id", id), zap.String("path", st.Photo()))
			} else if err := s.photos.Remove(st.Photo()); err != nil {
				s.logger.Warn("photo not removed", zap.Int("student_id", id), zap.Error(err))
			}
		}
		return next, nil
	})
	if errors.Is(err, repository.ErrUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, storeError(err, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.Int("student_id", id), zap.String("roll_no", removed.RollNo))
	return true, nil
}

// BulkDelete deletes each id in turn. Unknown ids are reported as failures.
func (s *StudentService) BulkDelete(ctx context.Context, ids []int) (*models.BulkResult, error) {
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "select at least one student")
	}
	result := &models.BulkResult{Requested: len(ids)}
	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		switch {
		case err != nil:
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrStoreWrite.Code {
				return result, err
			}
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: appErrors.FromError(err).Message})
		case !ok:
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: "student not found"})
		default:
			result.Succeeded++
		}
	}
	return result, nil
}

// Stats summarises the store.
func (s *StudentService) Stats(ctx context.Context) (*models.StudentStats, error) {
	students, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, storeError(err, "failed to load students")
	}
	counts := make(map[string]int)
	for _, st := range students {
		counts[st.Class]++
	}
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	byClass := make([]models.ClassCount, 0, len(classes))
	for _, class := range classes {
		byClass = append(byClass, models.ClassCount{Class: class, Count: counts[class]})
	}

	dated := make([]models.Student, 0, len(students))
	for _, st := range students {
		if !st.CreatedAt.IsZero() {
			dated = append(dated, st)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].CreatedAt.After(dated[j].CreatedAt.Time)
	})
	if len(dated) > recentLimit {
		dated = dated[:recentLimit]
	}
	recent := make([]models.RecentStudent, 0, len(dated))
	for _, st := range dated {
		recent = append(recent, models.RecentStudent{ID: st.ID, Name: st.Name, CreatedAt: st.CreatedAt})
	}

	return &models.StudentStats{Total: len(students), ByClass: byClass, Recent: recent, Classes: classes}, nil
}

func (s *StudentService) renderCard(ctx context.Context, student models.Student) {
	if _, err := s.cards.Generate(ctx, student); err != nil {
		s.logger.Error("card rendering failed", zap.Int("student_id", student.ID), zap.Error(err))
	}
}

// photoKey picks the name a student's photo is stored under: the roll number,
// or the roll number and id when another record already points at that file.
func photoKey(students []models.Student, rollNo string, id int) (string, error) {
	for _, key := range []string{rollNo, fmt.Sprintf("%s_%d", rollNo, id)} {
		if !photoReferenced(students, PhotoFilename(key), id) {
			return key, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo file for roll number %q belongs to another student", rollNo))
}

// photoReferenced reports whether a record other than excludeID points at a
// photo file with the same name as path.
func photoReferenced(students []models.Student, path string, excludeID int) bool {
	name := filepath.Base(path)
	for _, st := range students {
		if st.ID != excludeID && st.Photo() != "" && filepath.Base(st.Photo()) == name {
			return true
		}
	}
	return false
}

func parseField(field, value string) (models.Date, error) {
	d, err := models.ParseDate(value)
	if err != nil {
		return models.Date{}, appErrors.Annotate(appErrors.ErrMalformedDate, err, fmt.Sprintf("%s must be a YYYY-MM-DD date", field))
	}
	return d, nil
}

func parseOptionalField(field string, value *string) (*models.Date, error) {
	if value == nil {
		return nil, nil
	}
	d, err := parseField(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// checkValidity enforces the record invariants that are checked before any write.
func checkValidity(st models.Student) error {
	if st.Name == "" || st.RollNo == "" {
		return appErrors.Clone(appErrors.ErrValidation, "name and roll_no are required")
	}
	if st.DateOfIssue.Valid() && st.DateOfExpiry.Valid() && st.DateOfExpiry.Before(st.DateOfIssue) {
		return appErrors.Clone(appErrors.ErrValidation, "date_of_expiry must not be before date_of_issue")
	}
	return nil
}

// storeError keeps typed errors from the store and wraps anything else.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
