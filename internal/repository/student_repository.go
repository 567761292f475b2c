package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/storage"
)

// RecordStore persists the whole student collection. Every read loads the
// backing file; every write replaces it.
type RecordStore interface {
	LoadAll(ctx context.Context) ([]models.Student, error)
	SaveAll(ctx context.Context, students []models.Student) error
	Insert(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id int, patch models.StudentPatch) (*models.Student, error)
	Delete(ctx context.Context, id int) (*models.Student, bool, error)
	FindByID(ctx context.Context, id int) (*models.Student, error)
	Mutate(ctx context.Context, fn func(students []models.Student) ([]models.Student, error)) error
}

// ErrUnchanged tells Mutate there is nothing to write.
var ErrUnchanged = errors.New("student records unchanged")

// StudentStore is a JSON file store. Mutations are serialised by an in-process
// lock; concurrent processes writing the same file are not supported.
type StudentStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
	now    func() models.Timestamp
}

// NewStudentStore returns a store backed by path. The file is created lazily.
func NewStudentStore(path string, logger *zap.Logger) *StudentStore {
	if path == "" {
		path = "student_data.json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentStore{path: path, logger: logger, now: models.Now}
}

// Path returns the backing file location.
func (s *StudentStore) Path() string {
	return s.path
}

// LoadAll reads the collection. A missing file yields an empty slice.
func (s *StudentStore) LoadAll(ctx context.Context) ([]models.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// SaveAll atomically replaces the collection, keeping slice order.
func (s *StudentStore) SaveAll(ctx context.Context, students []models.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(students)
}

// Insert appends student after checking roll number uniqueness. The ID is
// assigned as the current maximum plus one so deleted IDs are never reused.
func (s *StudentStore) Insert(ctx context.Context, student *models.Student) error {
	return s.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		return InsertRecord(students, student, s.now())
	})
}

// Update merges patch into the record with id and stamps UpdatedAt.
func (s *StudentStore) Update(ctx context.Context, id int, patch models.StudentPatch) (*models.Student, error) {
	var updated *models.Student
	err := s.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		next, st, err := UpdateRecord(students, id, patch, s.now())
		updated = st
		return next, err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record with id, returning it and whether it existed.
// Deleting an unknown id leaves the file untouched.
func (s *StudentStore) Delete(ctx context.Context, id int) (*models.Student, bool, error) {
	var removed *models.Student
	err := s.Mutate(ctx, func(students []models.Student) ([]models.Student, error) {
		next, st, ok := DeleteRecord(students, id)
		if !ok {
			return nil, ErrUnchanged
		}
		removed = st
		return next, nil
	})
	if errors.Is(err, ErrUnchanged) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return removed, true, nil
}

// Mutate loads the collection, hands it to fn and saves whatever fn returns,
// holding the store lock from load to save. When fn fails the file is left
// untouched and its error is returned; ErrUnchanged skips the write.
func (s *StudentStore) Mutate(ctx context.Context, fn func(students []models.Student) ([]models.Student, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(students)
	if err != nil {
		return err
	}
	return s.save(next)
}

// FindByID returns the record with id or ErrNotFound.
func (s *StudentStore) FindByID(ctx context.Context, id int) (*models.Student, error) {
	students, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := IndexByID(students, id)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	found := students[idx]
	return &found, nil
}

func (s *StudentStore) load() ([]models.Student, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Student{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student records")
	}
	students := []models.Student{}
	if len(raw) == 0 {
		return students, nil
	}
	if err := json.Unmarshal(raw, &students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student records file is corrupt")
	}
	return students, nil
}

// save writes to a sibling temp file and renames it over the store so a
// failed write never leaves a truncated collection behind.
func (s *StudentStore) save(students []models.Student) error {
	if students == nil {
		students = []models.Student{}
	}
	payload, err := json.MarshalIndent(students, "", "    ")
	if err != nil {
		return appErrors.Annotate(appErrors.ErrStoreWrite, err, "failed to encode student records")
	}
	if err := storage.WriteFileAtomic(s.path, payload, 0o644); err != nil {
		s.logger.Error("student store write failed", zap.String("path", s.path), zap.Error(err))
		return appErrors.Annotate(appErrors.ErrStoreWrite, err, "")
	}
	s.logger.Debug("student store saved", zap.String("path", s.path), zap.Int("records", len(students)))
	return nil
}

// NextID returns max(id)+1 over students, or 1 for an empty collection.
func NextID(students []models.Student) int {
	next := 1
	for _, st := range students {
		if st.ID >= next {
			next = st.ID + 1
		}
	}
	return next
}

// InsertRecord appends student with the next free ID, stamping CreatedAt when
// unset. A roll number already in use is rejected.
func InsertRecord(students []models.Student, student *models.Student, now models.Timestamp) ([]models.Student, error) {
	if RollNoTaken(students, student.RollNo, 0) {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRollNumber, fmt.Sprintf("roll number %q already exists", student.RollNo))
	}
	student.ID = NextID(students)
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = nil
	return append(students, *student), nil
}

// UpdateRecord merges patch into the record with id and stamps UpdatedAt.
func UpdateRecord(students []models.Student, id int, patch models.StudentPatch, now models.Timestamp) ([]models.Student, *models.Student, error) {
	idx := IndexByID(students, id)
	if idx < 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if patch.RollNo != nil && RollNoTaken(students, *patch.RollNo, id) {
		return nil, nil, appErrors.Clone(appErrors.ErrDuplicateRollNumber, fmt.Sprintf("roll number %q already exists", *patch.RollNo))
	}
	updated := students[idx]
	patch.Apply(&updated)
	ts := now
	updated.UpdatedAt = &ts
	students[idx] = updated
	return students, &updated, nil
}

// DeleteRecord drops the record with id, returning the remaining records and
// the removed one.
func DeleteRecord(students []models.Student, id int) ([]models.Student, *models.Student, bool) {
	idx := IndexByID(students, id)
	if idx < 0 {
		return students, nil, false
	}
	removed := students[idx]
	return append(students[:idx], students[idx+1:]...), &removed, true
}

// IndexByID returns the position of the record with id, or -1.
func IndexByID(students []models.Student, id int) int {
	for i := range students {
		if students[i].ID == id {
			return i
		}
	}
	return -1
}

// RollNoTaken reports whether rollNo belongs to a record other than excludeID
// (0 excludes nothing).
func RollNoTaken(students []models.Student, rollNo string, excludeID int) bool {
	for i := range students {
		if students[i].RollNo == rollNo && (excludeID == 0 || students[i].ID != excludeID) {
			return true
		}
	}
	return false
}
