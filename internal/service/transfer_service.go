package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	"github.com/noah-isme/student-idcard/internal/repository"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/export"
)

// ImportColumns must all be present in an imported spreadsheet.
var ImportColumns = []string{
	"name", "father_name", "roll_no", "class", "phone", "gr_number",
	"date_of_birth", "date_of_issue", "date_of_expiry", "photo_path",
}

var exportColumns = append(append([]string{"id"}, ImportColumns...), "created_at", "updated_at")

var contentTypes = map[models.SpreadsheetFormat]string{
	models.FormatCSV:  "text/csv",
	models.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type spreadsheetCodec interface {
	Render(data export.Dataset) ([]byte, error)
	Parse(r io.Reader) (export.Dataset, error)
}

type transferCards interface {
	Remove(rollNo string) error
	Clear() error
}

type transferPhotos interface {
	Clear() error
}

// Spreadsheet is an exported file.
type Spreadsheet struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TransferService moves student records in and out of spreadsheets.
type TransferService struct {
	records repository.RecordStore
	codecs  map[models.SpreadsheetFormat]spreadsheetCodec
	cards   transferCards
	photos  transferPhotos
	queue   renderQueue
	logger  *zap.Logger
	now     func() time.Time
}

// NewTransferService constructs a TransferService over the CSV and XLSX codecs.
// When queue is non-nil, cards of imported students are rendered in the background.
func NewTransferService(records repository.RecordStore, csv, xlsx spreadsheetCodec, cards transferCards, photos transferPhotos, queue renderQueue, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		records: records,
		codecs:  map[models.SpreadsheetFormat]spreadsheetCodec{models.FormatCSV: csv, models.FormatXLSX: xlsx},
		cards:   cards,
		photos:  photos,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// ParseFormat validates a format name.
func ParseFormat(raw string) (models.SpreadsheetFormat, error) {
	format := models.SpreadsheetFormat(raw)
	if _, ok := contentTypes[format]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", raw))
	}
	return format, nil
}

// ParseImportMode validates an import mode, defaulting to add.
func ParseImportMode(raw string) (models.ImportMode, error) {
	switch mode := models.ImportMode(raw); mode {
	case "":
		return models.ImportAdd, nil
	case models.ImportAdd, models.ImportReplace, models.ImportUpsert:
		return mode, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported import mode %q", raw))
	}
}

// Export writes every record to a spreadsheet named students_data_<timestamp>.
func (s *TransferService) Export(ctx context.Context, format models.SpreadsheetFormat) (*Spreadsheet, error) {
	codec, ok := s.codecs[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	students, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, storeError(err, "failed to load students")
	}
	data := export.Dataset{Headers: exportColumns, Rows: make([]map[string]string, 0, len(students))}
	for _, st := range students {
		data.Rows = append(data.Rows, studentRow(st))
	}
	content, err := codec.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render spreadsheet")
	}
	return &Spreadsheet{
		Filename:    fmt.Sprintf("students_data_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: contentTypes[format],
		Content:     content,
	}, nil
}

// Import loads students from a spreadsheet. Every row is validated before the
// store is touched; a malformed row rejects the whole file. Rows repeating a
// roll number already seen in the file are skipped.
func (s *TransferService) Import(ctx context.Context, format models.SpreadsheetFormat, mode models.ImportMode, r io.Reader) (*models.ImportResult, error) {
	codec, ok := s.codecs[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	data, err := codec.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "spreadsheet could not be read")
	}
	if missing := data.MissingColumns(ImportColumns); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required columns: %v", missing))
	}
	rows := make([]models.Student, 0, len(data.Rows))
	for i, row := range data.Rows {
		st, err := rowStudent(row)
		if err != nil {
			appErr := appErrors.FromError(err)
			return nil, appErrors.Annotate(appErr, appErr.Err, fmt.Sprintf("row %d: %s", i+2, appErr.Message))
		}
		rows = append(rows, st)
	}

	result := &models.ImportResult{Mode: mode, Rows: len(rows)}
	touched := make([]int, 0, len(rows))
	now := models.Timestamp{Time: s.now().UTC().Truncate(time.Microsecond)}
	err = s.records.Mutate(ctx, func(current []models.Student) ([]models.Student, error) {
		if mode == models.ImportReplace {
			current = []models.Student{}
		}
		stale := make([]string, 0)
		byRoll := make(map[string]int, len(current))
		for i, st := range current {
			byRoll[st.RollNo] = i
		}
		seen := make(map[string]struct{}, len(rows))
		for _, st := range rows {
			if _, dup := seen[st.RollNo]; dup {
				result.Skipped++
				continue
			}
			seen[st.RollNo] = struct{}{}

			idx, exists := byRoll[st.RollNo]
			switch {
			case exists && mode == models.ImportUpsert:
				prev := current[idx]
				st.ID = prev.ID
				st.PhotoPath = prev.PhotoPath
				st.CreatedAt = prev.CreatedAt
				ts := now
				st.UpdatedAt = &ts
				current[idx] = st
				stale = append(stale, st.RollNo)
				touched = append(touched, st.ID)
				result.Updated++
			case exists:
				result.Skipped++
			default:
				st.ID = repository.NextID(current)
				st.CreatedAt = now
				current = append(current, st)
				byRoll[st.RollNo] = len(current) - 1
				touched = append(touched, st.ID)
				result.Imported++
			}
		}

		if mode == models.ImportReplace {
			if err := s.photos.Clear(); err != nil {
				s.logger.Warn("photos not cleared during replace import", zap.Error(err))
			}
			if err := s.cards.Clear(); err != nil {
				s.logger.Warn("cards not cleared during replace import", zap.Error(err))
			}
		}
		for _, roll := range stale {
			if err := s.cards.Remove(roll); err != nil {
				s.logger.Warn("stale card not removed", zap.String("roll_no", roll), zap.Error(err))
			}
		}
		return current, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to save imported students")
	}

	s.enqueueRenders(touched)
	s.logger.Info("students imported",
		zap.String("mode", string(mode)),
		zap.Int("rows", result.Rows),
		zap.Int("imported", result.Imported),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// enqueueRenders schedules background card renders. A full queue only means
// those cards are rendered on first download instead.
func (s *TransferService) enqueueRenders(ids []int) {
	if s.queue == nil {
		return
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(NewCardRenderJob(id)); err != nil {
			s.logger.Warn("card render not queued", zap.Int("student_id", id), zap.Error(err))
			return
		}
	}
}

func studentRow(st models.Student) map[string]string {
	row := map[string]string{
		"id":             strconv.Itoa(st.ID),
		"name":           st.Name,
		"father_name":    st.FatherName,
		"roll_no":        st.RollNo,
		"class":          st.Class,
		"phone":          st.Phone,
		"gr_number":      st.GRNumber,
		"date_of_birth":  st.DateOfBirth.String(),
		"date_of_issue":  st.DateOfIssue.String(),
		"date_of_expiry": st.DateOfExpiry.String(),
		"photo_path":     st.Photo(),
		"created_at":     st.CreatedAt.String(),
		"updated_at":     "",
	}
	if st.UpdatedAt != nil {
		row["updated_at"] = st.UpdatedAt.String()
	}
	return row
}

func rowStudent(row map[string]string) (models.Student, error) {
	st := models.Student{
		Name:       row["name"],
		FatherName: row["father_name"],
		RollNo:     row["roll_no"],
		Class:      row["class"],
		Phone:      row["phone"],
		GRNumber:   row["gr_number"],
	}
	var err error
	if st.DateOfBirth, err = parseField("date_of_birth", row["date_of_birth"]); err != nil {
		return st, err
	}
	if st.DateOfIssue, err = parseField("date_of_issue", row["date_of_issue"]); err != nil {
		return st, err
	}
	if st.DateOfExpiry, err = parseField("date_of_expiry", row["date_of_expiry"]); err != nil {
		return st, err
	}
	if path := row["photo_path"]; path != "" {
		st.PhotoPath = &path
	}
	return st, checkValidity(st)
}
