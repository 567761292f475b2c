package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/jobs"
)

// CardRenderJob is the job kind that renders and stores one student's card.
const CardRenderJob = "card.render"

type renderQueue interface {
	Enqueue(job jobs.Job) error
}

type cardGenerator interface {
	GenerateByID(ctx context.Context, id int) (*models.CardDocument, error)
}

// NewCardRenderJob returns a render job keyed by student so repeated requests
// for the same card collapse while one is waiting.
func NewCardRenderJob(studentID int) jobs.Job {
	return jobs.Job{
		Key:       fmt.Sprintf("%s:%d", CardRenderJob, studentID),
		Kind:      CardRenderJob,
		StudentID: studentID,
	}
}

// CardWorker renders cards queued in the background.
type CardWorker struct {
	cards  cardGenerator
	logger *zap.Logger
}

// NewCardWorker constructs a worker over the card service.
func NewCardWorker(cards cardGenerator, logger *zap.Logger) *CardWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardWorker{cards: cards, logger: logger}
}

// Handle is a jobs.Handler. Jobs of other kinds are ignored.
func (w *CardWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Kind != CardRenderJob {
		w.logger.Warn("unexpected job kind", zap.String("kind", job.Kind))
		return nil
	}
	doc, err := w.cards.GenerateByID(ctx, job.StudentID)
	if err != nil {
		if isPermanent(err) {
			w.logger.Warn("card render skipped", zap.Int("student_id", job.StudentID), zap.Error(err))
			return nil
		}
		return err
	}
	w.logger.Debug("card rendered in background", zap.Int("student_id", job.StudentID), zap.String("file", doc.Filename))
	return nil
}

// isPermanent reports failures a retry cannot fix: the student is gone or its
// stored dates cannot be printed.
func isPermanent(err error) bool {
	return errors.Is(err, appErrors.ErrNotFound) || errors.Is(err, appErrors.ErrMalformedDate)
}
