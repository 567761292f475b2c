package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/jobs"
)

type generatorStub struct {
	ids []int
	err error
}

func (g *generatorStub) GenerateByID(_ context.Context, id int) (*models.CardDocument, error) {
	g.ids = append(g.ids, id)
	if g.err != nil {
		return nil, g.err
	}
	return &models.CardDocument{StudentID: id, Filename: "x_id_card.pdf"}, nil
}

func TestNewCardRenderJob(t *testing.T) {
	job := NewCardRenderJob(42)
	assert.Equal(t, "card.render:42", job.Key)
	assert.Equal(t, CardRenderJob, job.Kind)
	assert.Equal(t, 42, job.StudentID)
}

func TestCardWorkerHandle(t *testing.T) {
	gen := &generatorStub{}
	worker := NewCardWorker(gen, zap.NewNop())

	assert.NoError(t, worker.Handle(context.Background(), NewCardRenderJob(3)))
	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{Kind: "report.export", StudentID: 9}))
	assert.Equal(t, []int{3}, gen.ids)
}

func TestCardWorkerPermanentFailuresAreNotRetried(t *testing.T) {
	for _, err := range []error{
		appErrors.Clone(appErrors.ErrNotFound, "student not found"),
		appErrors.Clone(appErrors.ErrMalformedDate, "date_of_issue is malformed"),
	} {
		worker := NewCardWorker(&generatorStub{err: err}, nil)
		assert.NoError(t, worker.Handle(context.Background(), NewCardRenderJob(1)))
	}
}

func TestCardWorkerTransientFailureIsReturned(t *testing.T) {
	worker := NewCardWorker(&generatorStub{err: errors.New("disk full")}, nil)
	assert.Error(t, worker.Handle(context.Background(), NewCardRenderJob(1)))
}
