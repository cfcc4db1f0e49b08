package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trinetlabs/trinet/internal/config"
	"github.com/trinetlabs/trinet/internal/tree"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	attempts atomic.Int32
	process  func(attempt int32, job Job) error
}

func (p *fakeProcessor) Process(ctx context.Context, job Job) error {
	return p.process(p.attempts.Add(1), job)
}

func newTestQueue(t *testing.T, proc Processor) *Queue {
	t.Helper()
	q := New(Params{
		Log: zap.NewNop(),
		Cfg: config.Config{
			QueueWorkers:        1,
			QueueMaxAttempts:    3,
			QueueInitialBackoff: time.Millisecond,
			QueueJobTimeout:     time.Second,
		},
		Processor: proc,
	})
	q.Start()
	t.Cleanup(q.Stop)
	return q
}

func TestQueueProcessesJob(t *testing.T) {
	proc := &fakeProcessor{process: func(int32, Job) error { return nil }}
	q := newTestQueue(t, proc)

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001", Points: 100})
	require.NoError(t, err)
	require.NoError(t, handle.Result(context.Background()))
	assert.Equal(t, int32(1), proc.attempts.Load())
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	proc := &fakeProcessor{process: func(attempt int32, _ Job) error {
		if attempt < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}}
	q := newTestQueue(t, proc)

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	require.NoError(t, err)
	require.NoError(t, handle.Result(context.Background()))
	assert.Equal(t, int32(3), proc.attempts.Load())
}

func TestQueueExhaustsRetries(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	proc := &fakeProcessor{process: func(int32, Job) error { return serialization }}
	q := newTestQueue(t, proc)

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	require.NoError(t, err)

	err = handle.Result(context.Background())
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, int32(3), proc.attempts.Load())
}

func TestQueueDoesNotRetryBusinessFailures(t *testing.T) {
	proc := &fakeProcessor{process: func(int32, Job) error { return tree.ErrNoAvailableSlot }}
	q := newTestQueue(t, proc)

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	require.NoError(t, err)

	assert.ErrorIs(t, handle.Result(context.Background()), tree.ErrNoAvailableSlot)
	assert.Equal(t, int32(1), proc.attempts.Load())
}

func TestQueueRejectsWhenFull(t *testing.T) {
	// Never started: buffered jobs pile up until the channel refuses more.
	q := New(Params{
		Log:       zap.NewNop(),
		Cfg:       config.Config{QueueWorkers: 1},
		Processor: &fakeProcessor{process: func(int32, Job) error { return nil }},
	})

	for i := 0; i < queueCapacity; i++ {
		_, err := q.Enqueue(Job{MemberID: "AAAA000001"})
		require.NoError(t, err)
	}
	_, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	proc := &fakeProcessor{process: func(int32, Job) error { return nil }}
	q := New(Params{
		Log:       zap.NewNop(),
		Cfg:       config.Config{QueueWorkers: 1},
		Processor: proc,
	})
	q.Start()
	q.Stop()

	_, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueAssignsJobIDs(t *testing.T) {
	seen := make(chan Job, 1)
	proc := &fakeProcessor{process: func(_ int32, job Job) error {
		seen <- job
		return nil
	}}
	q := newTestQueue(t, proc)

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	require.NoError(t, err)
	require.NoError(t, handle.Result(context.Background()))

	job := <-seen
	assert.NotEmpty(t, job.ID)
}

func TestHandleResultHonoursContext(t *testing.T) {
	block := make(chan struct{})
	proc := &fakeProcessor{process: func(int32, Job) error {
		<-block
		return nil
	}}
	q := newTestQueue(t, proc)
	t.Cleanup(func() { close(block) })

	handle, err := q.Enqueue(Job{MemberID: "AAAA000001"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, handle.Result(ctx), context.DeadlineExceeded)
}

func TestQueueClampsJobTimeout(t *testing.T) {
	q := New(Params{
		Log:       zap.NewNop(),
		Cfg:       config.Config{QueueJobTimeout: time.Hour},
		Processor: &fakeProcessor{process: func(int32, Job) error { return nil }},
	})
	assert.Equal(t, 2*time.Minute, q.jobTimeout)
}
