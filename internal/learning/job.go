package learning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("learning: job queue is full")
	// ErrQueueClosed is returned by Submit after Stop.
	ErrQueueClosed = errors.New("learning: job queue is closed")
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is a snapshot of one training job.
type Job struct {
	ID         string        `json:"job_id"`
	Request    TrainRequest  `json:"request"`
	Status     JobStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	Outcome    *TrainOutcome `json:"outcome,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// JobRunner executes a training request. Pipeline implements it.
type JobRunner interface {
	Run(ctx context.Context, req TrainRequest) (TrainOutcome, error)
}

// QueueConfig sizes a JobQueue.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// MaxHistory caps the number of finished jobs kept for Get and List.
	MaxHistory int
}

// JobQueue runs training jobs on a fixed pool of workers.
type JobQueue struct {
	runner   JobRunner
	cfg      QueueConfig
	events   *JobEventStream
	recorder *metrics.Recorder
	logger   *zap.Logger

	mu     sync.RWMutex
	jobs   map[string]*Job
	order  []string
	closed bool

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobQueue creates a queue. events and recorder may be nil.
func NewJobQueue(runner JobRunner, cfg QueueConfig, events *JobEventStream, recorder *metrics.Recorder, logger *zap.Logger) *JobQueue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobQueue{
		runner:   runner,
		cfg:      cfg,
		events:   events,
		recorder: recorder,
		logger:   logger,
		jobs:     make(map[string]*Job),
		queue:    make(chan string, cfg.QueueSize),
	}
}

// Start launches the workers. Cancelling ctx cancels running jobs.
func (q *JobQueue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Info("Job queue started", zap.Int("workers", q.cfg.Workers), zap.Int("queueSize", q.cfg.QueueSize))
}

// Stop rejects new jobs and waits for the workers to drain the backlog.
// Jobs still running when ctx expires are cancelled.
func (q *JobQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if q.cancel != nil {
			q.cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Submit enqueues req and returns the queued job.
func (q *JobQueue) Submit(req TrainRequest) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Job{}, ErrQueueClosed
	}

	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case q.queue <- job.ID:
	default:
		return Job{}, fmt.Errorf("%w: %d jobs waiting", ErrQueueFull, len(q.queue))
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.evictLocked()
	q.recorder.SetQueueDepth(len(q.queue))
	q.publish(*job)
	return *job, nil
}

// Get returns a snapshot of the job with id.
func (q *JobQueue) Get(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all known jobs, newest first.
func (q *JobQueue) List() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Depth returns the number of jobs waiting for a worker.
func (q *JobQueue) Depth() int {
	return len(q.queue)
}

func (q *JobQueue) worker(ctx context.Context, n int) {
	defer q.wg.Done()
	for id := range q.queue {
		q.recorder.SetQueueDepth(len(q.queue))
		q.run(ctx, id)
	}
	q.logger.Debug("Job worker stopped", zap.Int("worker", n))
}

func (q *JobQueue) run(ctx context.Context, id string) {
	req, ok := q.transition(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = JobRunning
		j.StartedAt = &now
	})
	if !ok {
		return
	}
	log := q.logger.With(zap.String("jobID", id), zap.String("ticker", req.Ticker))
	log.Info("Job started")

	jobCtx := ctx
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := q.execute(jobCtx, req)
	elapsed := time.Since(start)

	status := JobSucceeded
	if err != nil {
		status = JobFailed
		log.Error("Job failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("Job succeeded", zap.String("runID", outcome.RunID), zap.Bool("promoted", outcome.Decision.Promoted), zap.Duration("elapsed", elapsed))
	}
	q.recorder.RecordJob(req.Ticker, string(status), elapsed.Seconds())

	q.transition(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = status
		j.FinishedAt = &now
		if err != nil {
			j.Error = err.Error()
			return
		}
		o := outcome
		j.Outcome = &o
	})
}

// execute runs the job and turns a panic into an error.
func (q *JobQueue) execute(ctx context.Context, req TrainRequest) (outcome TrainOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.runner.Run(ctx, req)
}

// transition applies fn to the job and publishes the new state.
func (q *JobQueue) transition(id string, fn func(*Job)) (TrainRequest, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return TrainRequest{}, false
	}
	fn(job)
	snapshot := *job
	q.mu.Unlock()

	q.publish(snapshot)
	return snapshot.Request, true
}

func (q *JobQueue) publish(job Job) {
	if q.events == nil {
		return
	}
	_ = q.events.Publish(context.Background(), JobEvent{
		JobID:  job.ID,
		Ticker: job.Request.Ticker,
		Status: job.Status,
		Error:  job.Error,
		Time:   time.Now().UTC(),
	})
}

// evictLocked drops the oldest finished jobs beyond MaxHistory.
func (q *JobQueue) evictLocked() {
	excess := len(q.order) - q.cfg.MaxHistory
	if excess <= 0 {
		return
	}
	kept := q.order[:0]
	for _, id := range q.order {
		if excess > 0 && q.jobs[id].Status.Done() {
			delete(q.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}
