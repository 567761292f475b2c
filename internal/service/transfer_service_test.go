package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/repository"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/export"
	"github.com/noah-isme/student-idcard/pkg/jobs"
)

const importHeader = "name,father_name,roll_no,class,phone,gr_number,date_of_birth,date_of_issue,date_of_expiry,photo_path\n"

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) studentIDs() []int {
	ids := make([]int, 0, len(q.jobs))
	for _, j := range q.jobs {
		ids = append(ids, j.StudentID)
	}
	return ids
}

type transferFixture struct {
	store  *repository.StudentStore
	cards  *fakeCards
	photos *fakePhotos
	queue  *queueStub
	svc    *TransferService
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	store := repository.NewStudentStore(filepath.Join(t.TempDir(), "student_data.json"), zap.NewNop())
	cards := &fakeCards{}
	photos := &fakePhotos{}
	queue := &queueStub{}
	svc := NewTransferService(store, export.NewCSVExporter(), export.NewXLSXExporter(""), cards, photos, queue, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }
	return &transferFixture{store: store, cards: cards, photos: photos, queue: queue, svc: svc}
}

func (f *transferFixture) seed(t *testing.T) {
	t.Helper()
	photo := "photos/101.png"
	existing := &models.Student{
		Name:         "Ali Khan",
		FatherName:   "Karim Khan",
		RollNo:       "101",
		Class:        "9",
		Phone:        "03001234567",
		GRNumber:     "GR55",
		DateOfBirth:  models.MustParseDate("2008-05-10"),
		DateOfIssue:  models.MustParseDate("2024-01-01"),
		DateOfExpiry: models.MustParseDate("2026-01-01"),
		PhotoPath:    &photo,
		CreatedAt:    models.Timestamp{Time: time.Date(2023, 9, 1, 10, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, f.store.Insert(context.Background(), existing))
}

func importCSV(rows ...string) *strings.Reader {
	return strings.NewReader(importHeader + strings.Join(rows, "\n") + "\n")
}

func TestTransferServiceExportCSV(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)

	sheet, err := f.svc.Export(context.Background(), models.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "students_data_20240203_040506.csv", sheet.Filename)
	assert.Equal(t, "text/csv", sheet.ContentType)

	records, err := csv.NewReader(bytes.NewReader(sheet.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportColumns, records[0])
	assert.Equal(t, []string{"1", "Ali Khan", "Karim Khan", "101", "9", "03001234567", "GR55", "2008-05-10", "2024-01-01", "2026-01-01", "photos/101.png", "2023-09-01T10:00:00Z", ""}, records[1])
}

func TestTransferServiceXLSXRoundTrip(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)

	sheet, err := f.svc.Export(context.Background(), models.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "students_data_20240203_040506.xlsx", sheet.Filename)

	other := newTransferFixture(t)
	result, err := other.svc.Import(context.Background(), models.FormatXLSX, models.ImportAdd, bytes.NewReader(sheet.Content))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	students, err := other.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "03001234567", students[0].Phone)
	assert.Equal(t, "photos/101.png", students[0].Photo())
}

func TestTransferServiceImportAddSkipsDuplicates(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)

	result, err := f.svc.Import(context.Background(), models.FormatCSV, models.ImportAdd, importCSV(
		"Changed,Father,101,10,0300,GR1,2008-05-10,2024-01-01,2026-01-01,",
		"Sara,Imran,102,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
		"Sara Again,Imran,102,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
	))
	require.NoError(t, err)
	assert.Equal(t, &models.ImportResult{Mode: models.ImportAdd, Rows: 3, Imported: 1, Skipped: 2}, result)

	students, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ali Khan", students[0].Name)
	assert.Equal(t, 2, students[1].ID)
	assert.Equal(t, "Sara", students[1].Name)
	assert.Nil(t, students[1].PhotoPath)
	assert.False(t, f.photos.cleared)
	assert.Equal(t, []int{2}, f.queue.studentIDs())
}

func TestTransferServiceImportSurvivesFullQueue(t *testing.T) {
	f := newTransferFixture(t)
	f.queue.err = errors.New("queue cards is full")

	result, err := f.svc.Import(context.Background(), models.FormatCSV, models.ImportAdd, importCSV(
		"Sara,Imran,102,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
	))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestTransferServiceImportDoesNotLoseConcurrentCreates(t *testing.T) {
	f := newTransferFixture(t)
	students := NewStudentService(f.store, &fakeCards{}, &fakePhotos{}, nil, zap.NewNop(), StudentConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := students.Create(ctx, createRequest(fmt.Sprintf("c%d", i)), nil)
			assert.NoError(t, err)
		}(i)
	}
	result, err := f.svc.Import(ctx, models.FormatCSV, models.ImportAdd, importCSV(
		"Sara,Imran,i1,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
		"Omar,Imran,i2,10,0311,GR3,2009-02-03,2024-01-01,2026-01-01,",
	))
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	all, err := f.store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 12)
}

func TestTransferServiceImportUpsert(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)
	before, err := f.store.FindByID(context.Background(), 1)
	require.NoError(t, err)

	result, err := f.svc.Import(context.Background(), models.FormatCSV, models.ImportUpsert, importCSV(
		"Ali Raza,Karim Khan,101,10,0300,GR55,2008-05-10,2024-01-01,2027-01-01,photos/other.png",
		"Sara,Imran,102,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
	))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Imported)

	updated, err := f.store.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ali Raza", updated.Name)
	assert.Equal(t, "10", updated.Class)
	assert.Equal(t, before.Photo(), updated.Photo())
	assert.Equal(t, before.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, []string{"101"}, f.cards.removed)
	assert.Equal(t, []int{1, 2}, f.queue.studentIDs())
	assert.Equal(t, CardRenderJob, f.queue.jobs[0].Kind)
}

func TestTransferServiceImportReplace(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)

	result, err := f.svc.Import(context.Background(), models.FormatCSV, models.ImportReplace, importCSV(
		"Sara,Imran,500,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
	))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.True(t, f.photos.cleared)
	assert.True(t, f.cards.cleared)

	students, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, students[0].ID)
	assert.Equal(t, "500", students[0].RollNo)
}

func TestTransferServiceImportRejectsBadFiles(t *testing.T) {
	f := newTransferFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, models.FormatCSV, models.ImportAdd, strings.NewReader("name,roll_no\nAli,1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "father_name")

	_, err = f.svc.Import(ctx, models.FormatCSV, models.ImportReplace, importCSV(
		"Sara,Imran,102,10,0311,GR2,2009-02-03,2024-01-01,2026-01-01,",
		"Bad,Row,103,10,0311,GR3,yesterday,2024-01-01,2026-01-01,",
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedDate))
	assert.Contains(t, err.Error(), "row 3")
	assert.False(t, f.photos.cleared)

	_, err = f.svc.Import(ctx, models.FormatCSV, models.ImportAdd, importCSV(
		"Late,Row,104,10,0311,GR4,2009-02-03,2024-01-01,2023-01-01,",
	))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	students, err := f.store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "101", students[0].RollNo)
}

func TestParseFormatAndMode(t *testing.T) {
	format, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, models.FormatXLSX, format)
	_, err = ParseFormat("pdf")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	mode, err := ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, models.ImportAdd, mode)
	mode, err = ParseImportMode("upsert")
	require.NoError(t, err)
	assert.Equal(t, models.ImportUpsert, mode)
	_, err = ParseImportMode("merge")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
