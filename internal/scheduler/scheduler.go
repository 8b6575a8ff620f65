package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultIdleWait is how long an idle worker sleeps before polling the queue again.
const DefaultIdleWait = 500 * time.Millisecond

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("scheduler closed")

// ErrReleased is returned when submitting to a batch whose sentinel was released.
var ErrReleased = errors.New("batch already released")

// Job is a unit of work. ctx is the job's batch context.
type Job func(ctx context.Context) error

// JobExecutionError describes a job that returned an error or panicked.
type JobExecutionError struct {
	// Batch is the label of the batch the job belonged to, if any.
	Batch string

	// Err is the error returned by the job. Nil when the job panicked.
	Err error

	// Panic holds the recovered value when the job panicked.
	Panic any

	// Stack is the goroutine stack captured at the panic.
	Stack []byte
}

func (e *JobExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("job panicked: %v", e.Panic)
	}
	return fmt.Sprintf("job failed: %v", e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }

// Options configures a Scheduler. Zero values select the defaults.
type Options struct {
	// Workers is the pool size. Default: runtime.NumCPU().
	Workers int

	// IdleWait bounds how long an idle worker sleeps. Default: DefaultIdleWait.
	IdleWait time.Duration

	// MaxPending caps queued plus running jobs; Submit blocks while the cap is
	// reached. Zero means unbounded.
	MaxPending int

	// Logger receives worker lifecycle and failure logs. Default: slog.Default().
	Logger *slog.Logger

	// ErrorSink receives every *JobExecutionError. Default: log at error level.
	ErrorSink func(*JobExecutionError)
}

type task struct {
	batch *Batch
	job   Job
}

// Scheduler is a fixed-size worker pool consuming a FIFO queue.
type Scheduler struct {
	workers  int
	idleWait time.Duration
	logger   *slog.Logger
	sink     func(*JobExecutionError)

	mu      sync.Mutex
	queue   []task
	head    int
	drained chan struct{}
	closed  bool

	inFlight atomic.Int64
	executed atomic.Int64
	failed   atomic.Int64

	slots chan struct{}
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler and starts its workers. Call Close to stop them.
func New(opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.IdleWait <= 0 {
		opts.IdleWait = DefaultIdleWait
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		workers:  opts.Workers,
		idleWait: opts.IdleWait,
		logger:   opts.Logger,
		sink:     opts.ErrorSink,
		drained:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	close(s.drained)
	if opts.MaxPending > 0 {
		s.slots = make(chan struct{}, opts.MaxPending)
	}
	if s.sink == nil {
		s.sink = func(err *JobExecutionError) {
			s.logger.Error("Job failed", "batch", err.Batch, "error", err)
		}
	}

	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker(i)
	}
	s.logger.Debug("Scheduler started", "workers", s.workers, "idle_wait", s.idleWait)
	return s
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int { return s.workers }

// InFlight returns the number of submitted jobs that have not finished yet.
func (s *Scheduler) InFlight() int64 { return s.inFlight.Load() }

// Executed returns the number of job bodies that ran, successfully or not.
func (s *Scheduler) Executed() int64 { return s.executed.Load() }

// Failed returns the number of jobs that returned an error or panicked.
func (s *Scheduler) Failed() int64 { return s.failed.Load() }

// Queued returns the number of jobs waiting for a worker.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) - s.head
}

// Submit appends job to the queue. The in-flight counters of the scheduler and of b
// are incremented before any worker can see the job. b may be nil for jobs that do
// not belong to a batch.
//
// When MaxPending is set, Submit blocks until a slot frees up or ctx is done.
func (s *Scheduler) Submit(ctx context.Context, b *Batch, job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	if b != nil && b.released.Load() {
		return ErrReleased
	}

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return ErrClosed
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.releaseSlot()
		return ErrClosed
	}
	if b != nil {
		b.pending.Add(1)
	}
	if s.inFlight.Add(1) == 1 {
		s.drained = make(chan struct{})
	}
	s.queue = append(s.queue, task{batch: b, job: job})
	s.mu.Unlock()

	s.nudge()
	return nil
}

// WaitAll blocks until no job is in flight or ctx is done.
//
// The counter is shared by every batch; jobs submitted concurrently with WaitAll
// extend the wait.
func (s *Scheduler) WaitAll(ctx context.Context) error {
	s.mu.Lock()
	ch := s.drained
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after their current job. Jobs still queued are dropped
// without running and counted as skipped on their batch, so waiters are released.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	rest := s.queue[s.head:]
	s.queue, s.head = nil, 0
	s.mu.Unlock()

	for _, t := range rest {
		if t.batch != nil {
			t.batch.skipped.Add(1)
		}
		s.finish(t)
	}
	s.logger.Debug("Scheduler stopped", "dropped", len(rest))
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) releaseSlot() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Scheduler) dequeue() (task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head == len(s.queue) {
		return task{}, false
	}
	t := s.queue[s.head]
	s.queue[s.head] = task{}
	s.head++
	if s.head == len(s.queue) {
		s.queue, s.head = s.queue[:0], 0
	} else if s.head > 1024 && s.head*2 > len(s.queue) {
		n := copy(s.queue, s.queue[s.head:])
		s.queue, s.head = s.queue[:n], 0
	}
	return t, true
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	idle := time.NewTimer(s.idleWait)
	defer idle.Stop()

	for {
		if s.ctx.Err() != nil {
			return
		}

		if t, ok := s.dequeue(); ok {
			// Pass the wake-up on so other idle workers pick up the backlog.
			if s.Queued() > 0 {
				s.nudge()
			}
			s.run(t)
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(s.idleWait)

		select {
		case <-s.ctx.Done():
			s.logger.Debug("Worker stopping", "worker", id)
			return
		case <-s.wake:
		case <-idle.C:
		}
	}
}

func (s *Scheduler) run(t task) {
	defer s.finish(t)

	ctx := s.ctx
	label := ""
	if t.batch != nil {
		ctx = t.batch.ctx
		label = t.batch.label
	}
	if ctx.Err() != nil {
		if t.batch != nil {
			t.batch.skipped.Add(1)
		}
		return
	}

	s.executed.Add(1)
	err := execute(ctx, t.job)
	if err == nil {
		if t.batch != nil {
			t.batch.executed.Add(1)
		}
		return
	}

	// A job giving up because its batch was cancelled is not a failure.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if t.batch != nil {
			t.batch.skipped.Add(1)
		}
		return
	}

	err.Batch = label
	s.failed.Add(1)
	if t.batch != nil {
		t.batch.executed.Add(1)
		t.batch.failed.Add(1)
	}
	s.sink(err)
}

func execute(ctx context.Context, job Job) (jerr *JobExecutionError) {
	defer func() {
		if r := recover(); r != nil {
			jerr = &JobExecutionError{Panic: r, Stack: debug.Stack()}
		}
	}()
	if err := job(ctx); err != nil {
		return &JobExecutionError{Err: err}
	}
	return nil
}

// finish runs on every path out of a job, including panics and drops on Close.
// The scheduler counter drops before the batch one, so a batch observed as done
// no longer contributes to InFlight.
func (s *Scheduler) finish(t task) {
	s.releaseSlot()

	s.mu.Lock()
	if s.inFlight.Add(-1) == 0 {
		close(s.drained)
	}
	s.mu.Unlock()

	if t.batch != nil {
		t.batch.done()
	}
}
