package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trinetlabs/trinet/internal/config"
	obscontext "github.com/trinetlabs/trinet/internal/observability/context"
	"github.com/trinetlabs/trinet/internal/observability/logger"
	"github.com/trinetlabs/trinet/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const queueCapacity = 256

var (
	ErrQueueFull   = errors.New("queue_full")
	ErrQueueClosed = errors.New("queue_closed")
)

// Job is one pending member activation: tree placement plus commission
// payout for the points the triggering order carried.
type Job struct {
	ID         string
	MemberID   string
	SponsorID  string
	ReferrerID string
	OrderID    string
	Points     float64
}

// Processor runs the business side of a job. The queue owns retries and
// timeouts; the processor only has to be safe to run again after a failure.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// Handle lets the enqueuer wait for the final outcome of a job after all
// retries are spent.
type Handle struct {
	done chan error
}

func (h *Handle) Result(ctx context.Context) error {
	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type envelope struct {
	job  Job
	done chan error
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Processor Processor
}

type Queue struct {
	log     *zap.Logger
	proc    Processor
	metrics *metrics.QueueMetrics

	workers        int
	maxAttempts    int
	initialBackoff time.Duration
	jobTimeout     time.Duration

	jobs chan envelope

	mu     sync.Mutex
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(p Params) *Queue {
	workers := p.Cfg.QueueWorkers
	if workers < 1 {
		workers = 1
	}
	attempts := p.Cfg.QueueMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Cfg.QueueInitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := p.Cfg.QueueJobTimeout
	if timeout <= 0 || timeout > 2*time.Minute {
		timeout = 2 * time.Minute
	}

	return &Queue{
		log:            p.Log.Named("queue"),
		proc:           p.Processor,
		metrics:        metrics.Queue(),
		workers:        workers,
		maxAttempts:    attempts,
		initialBackoff: backoff,
		jobTimeout:     timeout,
		jobs:           make(chan envelope, queueCapacity),
	}
}

// Start launches the worker pool. Workers run until Stop.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.log.Info("queue started",
		zap.Int("workers", q.workers),
		zap.Int("max_attempts", q.maxAttempts),
	)
}

// Stop refuses new jobs, then waits for in-flight jobs to finish. Jobs still
// buffered are drained and failed with ErrQueueClosed.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.jobs)
	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
	q.log.Info("queue stopped")
}

// Enqueue submits a job without blocking. A full buffer rejects the job
// rather than stalling the caller.
func (q *Queue) Enqueue(job Job) (*Handle, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	env := envelope{job: job, done: make(chan error, 1)}
	select {
	case q.jobs <- env:
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		q.metrics.IncDone(metrics.QueueResultDropped)
		return nil, ErrQueueFull
	}

	q.metrics.IncEnqueued()
	q.metrics.SetDepth(len(q.jobs))
	return &Handle{done: env.done}, nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for env := range q.jobs {
		q.metrics.SetDepth(len(q.jobs))

		select {
		case <-ctx.Done():
			env.done <- ErrQueueClosed
			continue
		default:
		}
		env.done <- q.run(ctx, env.job)
	}
}

// run executes a job with bounded retries. Only transient failures retry:
// deadline expiry and the database contention classes. Anything else is a
// business outcome and fails immediately.
func (q *Queue) run(ctx context.Context, job Job) error {
	started := time.Now()
	defer func() {
		q.metrics.ObserveJobDuration(time.Since(started))
	}()

	jobCtx := obscontext.WithJobID(ctx, job.ID)
	log := logger.WithContext(jobCtx, q.log).With(
		zap.String("member_id", job.MemberID),
		zap.String("sponsor_id", job.SponsorID),
	)

	backoff := q.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(jobCtx, q.jobTimeout)
		err := q.proc.Process(attemptCtx, job)
		cancel()

		if err == nil {
			q.metrics.IncDone(metrics.QueueResultSuccess)
			log.Info("job processed", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if !metrics.IsRetryableErr(err) {
			q.metrics.IncDone(metrics.QueueResultFailed)
			log.Warn("job failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}

		if attempt == q.maxAttempts {
			break
		}

		q.metrics.IncRetry(err)
		log.Warn("job attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			q.metrics.IncDone(metrics.QueueResultFailed)
			return ctx.Err()
		}
		backoff *= 2
	}

	q.metrics.IncDone(metrics.QueueResultFailed)
	log.Error("job exhausted retries",
		zap.Int("attempts", q.maxAttempts),
		zap.Error(lastErr),
	)
	return lastErr
}
