package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/tablecraft/menu-digitizer/constants"
	"github.com/tablecraft/menu-digitizer/internal/progress"
)

// Job is one queued digitization request.
type Job struct {
	ID        uuid.UUID
	ImagePath string
}

// ErrQueueClosed is returned by Submit after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// ErrQueueFull is returned by Submit when the backlog is at capacity.
// Submit never blocks; callers shed load and retry.
var ErrQueueFull = errors.New("queue is full")

// Queue runs pipelines asynchronously on a fixed worker pool. Submit
// returns a job id immediately; workers publish checkpoints and the
// terminal result to the progress channel under that id.
type Queue struct {
	pipe    *Pipeline
	pub     progress.Publisher
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(pipe *Pipeline, pub progress.Publisher, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		pipe:    pipe,
		pub:     pub,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					_, err := q.pipe.Run(ctx, job.ID.String(), job.ImagePath)
					cancel()

					if err != nil {
						q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "error", err)
					} else {
						q.logger.Info("queue.job.ok", "worker_id", workerID, "job_id", job.ID)
					}
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit registers a new job for the image at imagePath and returns its id.
// The queued checkpoint is published before Submit returns so a poll
// immediately after never sees not-found. When the backlog is at capacity
// Submit returns ErrQueueFull instead of blocking.
func (q *Queue) Submit(ctx context.Context, imagePath string) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return uuid.Nil, ErrQueueClosed
	}

	job := Job{ID: uuid.New(), ImagePath: imagePath}
	if q.pub != nil {
		cp := progress.Checkpoint{Progress: constants.ProgressQueued, Step: constants.StepQueued}
		if err := q.pub.Publish(ctx, job.ID.String(), cp); err != nil {
			return uuid.Nil, err
		}
	}

	select {
	case q.ch <- job:
		q.logger.Info("queue.job.accepted", "job_id", job.ID)
	default:
		q.logger.Warn("queue.full.rejected", "job_id", job.ID)
		return uuid.Nil, ErrQueueFull
	}
	return job.ID, nil
}

// Shutdown stops accepting jobs and drains the queue, or returns when ctx
// expires.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
