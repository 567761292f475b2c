package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/card"
	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/export"
	"github.com/noah-isme/student-idcard/pkg/storage"
)

// CardResource is the signed-download resource name for card PDFs.
const CardResource = "card"

type cardRecords interface {
	LoadAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int) (*models.Student, error)
}

type cardLayouter interface {
	Layout(student models.Student, photoPath string) (*card.Layout, error)
}

type cardRenderer interface {
	Render(layout *card.Layout) ([]byte, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
	Delete(filename string) error
	Clear() (int, error)
}

type renderObserver interface {
	ObserveCardRender(outcome string, duration time.Duration)
}

// CardConfig tunes card delivery.
type CardConfig struct {
	APIPrefix string
}

// CardService renders, stores and delivers ID card PDFs.
type CardService struct {
	records  cardRecords
	engine   cardLayouter
	renderer cardRenderer
	storage  fileStorage
	signer   *storage.SignedURLSigner
	metrics  renderObserver
	logger   *zap.Logger
	cfg      CardConfig
	now      func() time.Time
}

// NewCardService wires the card pipeline. metrics may be nil.
func NewCardService(records cardRecords, engine cardLayouter, renderer cardRenderer, files fileStorage, signer *storage.SignedURLSigner, metrics renderObserver, logger *zap.Logger, cfg CardConfig) *CardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardService{
		records:  records,
		engine:   engine,
		renderer: renderer,
		storage:  files,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Render builds the card for student in memory without storing it.
func (s *CardService) Render(student models.Student) (*models.CardDocument, error) {
	start := time.Now()
	doc, err := s.render(student)
	s.observe(err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *CardService) render(student models.Student) (*models.CardDocument, error) {
	layout, err := s.engine.Layout(student, student.Photo())
	if err != nil {
		return nil, err
	}
	content, err := s.renderer.Render(layout)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render card")
	}
	return &models.CardDocument{StudentID: student.ID, Filename: layout.Filename, Content: content}, nil
}

func (s *CardService) observe(err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveCardRender(outcome, d)
}

// Generate renders the card for student and replaces any stored copy.
func (s *CardService) Generate(ctx context.Context, student models.Student) (*models.CardDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.Render(student)
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.Save(doc.Filename, doc.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store card")
	}
	s.logger.Info("card generated", zap.Int("student_id", student.ID), zap.String("file", doc.Filename))
	return doc, nil
}

// GenerateByID regenerates the stored card of one student.
func (s *CardService) GenerateByID(ctx context.Context, id int) (*models.CardDocument, error) {
	student, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, *student)
}

// Exists reports whether a stored card exists for rollNo.
func (s *CardService) Exists(rollNo string) bool {
	return s.storage.Exists(card.Filename(rollNo))
}

// Remove deletes the stored card for rollNo; a missing card is not an error.
func (s *CardService) Remove(rollNo string) error {
	if err := s.storage.Delete(card.Filename(rollNo)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete card")
	}
	return nil
}

// Clear removes every stored card.
func (s *CardService) Clear() error {
	removed, err := s.storage.Clear()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cards")
	}
	s.logger.Info("cards cleared", zap.Int("files", removed))
	return nil
}

// Download returns the stored card for id, rendering it first when missing.
func (s *CardService) Download(ctx context.Context, id int) (*models.CardDocument, error) {
	student, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ensure(ctx, *student)
}

func (s *CardService) ensure(ctx context.Context, student models.Student) (*models.CardDocument, error) {
	filename := card.Filename(student.RollNo)
	if s.storage.Exists(filename) {
		content, err := s.storage.Read(filename)
		if err == nil {
			return &models.CardDocument{StudentID: student.ID, Filename: filename, Content: content}, nil
		}
		s.logger.Warn("stored card unreadable, rendering again", zap.String("file", filename), zap.Error(err))
	}
	return s.Generate(ctx, student)
}

// Link issues a signed, expiring download link for the card of id.
func (s *CardService) Link(ctx context.Context, id int) (*models.CardLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "signed downloads are not configured")
	}
	doc, err := s.Download(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(CardResource, doc.Filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	url := fmt.Sprintf("%s/downloads/%s", strings.TrimSuffix(s.cfg.APIPrefix, "/"), token)
	return &models.CardLink{URL: url, Filename: doc.Filename, ExpiresAt: expiresAt}, nil
}

// ResolveDownload returns the card a signed token points at.
func (s *CardService) ResolveDownload(token string) (*models.CardDocument, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "signed downloads are not configured")
	}
	claim, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Annotate(appErrors.ErrUnauthorized, err, "download link is invalid or expired")
	}
	if claim.Resource != CardResource {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is not valid for cards")
	}
	content, err := s.storage.Read(claim.Path)
	if err != nil {
		return nil, appErrors.Annotate(appErrors.ErrNotFound, err, "card no longer exists")
	}
	return &models.CardDocument{Filename: claim.Path, Content: content}, nil
}

// Regenerate re-renders the cards of ids, or of every student when ids is
// empty. Failures are collected per student.
func (s *CardService) Regenerate(ctx context.Context, ids []int) (*models.BulkResult, error) {
	students, err := s.selectStudents(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := &models.BulkResult{Requested: len(students.found) + len(students.missing), Failed: students.missing}
	for _, student := range students.found {
		if _, err := s.Generate(ctx, student); err != nil {
			s.logger.Warn("card regeneration failed", zap.Int("student_id", student.ID), zap.Error(err))
			result.Failed = append(result.Failed, models.BulkFailure{ID: student.ID, Name: student.Name, Reason: appErrors.FromError(err).Message})
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// Bundle packs the cards of ids into a ZIP archive, rendering missing cards on
// demand. Students whose card cannot be produced are reported and left out.
func (s *CardService) Bundle(ctx context.Context, ids []int) (string, []byte, *models.BulkResult, error) {
	if len(ids) == 0 {
		return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "select at least one student")
	}
	students, err := s.selectStudents(ctx, ids)
	if err != nil {
		return "", nil, nil, err
	}
	result := &models.BulkResult{Requested: len(students.found) + len(students.missing), Failed: students.missing}
	entries := make([]export.BundleEntry, 0, len(students.found))
	for _, student := range students.found {
		doc, err := s.ensure(ctx, student)
		if err != nil {
			result.Failed = append(result.Failed, models.BulkFailure{ID: student.ID, Name: student.Name, Reason: appErrors.FromError(err).Message})
			continue
		}
		entries = append(entries, export.BundleEntry{Name: doc.Filename, Content: doc.Content})
		result.Succeeded++
	}
	if len(entries) == 0 {
		return "", nil, result, appErrors.Clone(appErrors.ErrNotFound, "no cards available for the selected students")
	}
	now := s.now()
	archive, err := export.Bundle(entries, now)
	if err != nil {
		return "", nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build card bundle")
	}
	return fmt.Sprintf("selected_id_cards_%s.zip", now.Format("20060102_150405")), archive, result, nil
}

type selection struct {
	found   []models.Student
	missing []models.BulkFailure
}

// selectStudents resolves ids against one snapshot of the store, keeping the
// request order and dropping repeated ids.
func (s *CardService) selectStudents(ctx context.Context, ids []int) (*selection, error) {
	all, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &selection{found: all}, nil
	}
	byID := make(map[int]models.Student, len(all))
	for _, st := range all {
		byID[st.ID] = st
	}
	sel := &selection{}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		st, ok := byID[id]
		if !ok {
			sel.missing = append(sel.missing, models.BulkFailure{ID: id, Reason: "student not found"})
			continue
		}
		sel.found = append(sel.found, st)
	}
	return sel, nil
}
