package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work. Jobs sharing a Key are coalesced while
// one is still waiting in the queue.
type Job struct {
	Key       string
	Kind      string
	StudentID int
	Attempt   int
	Enqueued  time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Stats counts what a queue has done since it started.
type Stats struct {
	Enqueued  int
	Coalesced int
	Succeeded int
	Failed    int
}

// Queue is an in-memory job dispatcher backed by a fixed set of goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	pending map[string]struct{}
	stats   Stats
}

// NewQueue builds a queue that runs handler for every job.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		pending:    make(map[string]struct{}),
	}
}

// Start begins worker consumption. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit. Jobs still buffered are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name), zap.Int("dropped", len(q.jobs)))
}

// Enqueue schedules job without blocking. A job whose Key is already waiting
// is coalesced into it; a full buffer is reported as an error.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, q.ctx.Err())
	}
	if job.Key != "" {
		if _, waiting := q.pending[job.Key]; waiting {
			q.stats.Coalesced++
			return nil
		}
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
	default:
		return fmt.Errorf("queue %s is full", q.name)
	}
	if job.Key != "" {
		q.pending[job.Key] = struct{}{}
	}
	q.stats.Enqueued++
	return nil
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.release(job.Key)
			err := q.handler(q.ctx, job)
			q.record(err)
			if err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

// release lets a new job with key be queued once the current one is picked up,
// so changes made while it runs are not lost.
func (q *Queue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

func (q *Queue) record(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.stats.Failed++
		return
	}
	q.stats.Succeeded++
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	fields := []zap.Field{
		zap.String("queue", q.name),
		zap.String("kind", job.Kind),
		zap.Int("student_id", job.StudentID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	}
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", fields...)
		return
	}
	q.logger.Warn("job failed, retrying", fields...)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("queue", q.name), zap.String("key", j.Key), zap.Error(err))
			}
		}
	}(job)
}
