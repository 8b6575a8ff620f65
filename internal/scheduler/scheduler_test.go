package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, opts Options) *Scheduler {
	t.Helper()
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.IdleWait == 0 {
		opts.IdleWait = 10 * time.Millisecond
	}
	opts.Logger = quietLogger()
	s := New(opts)
	t.Cleanup(s.Close)
	return s
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmit_RunsEveryJobOnce(t *testing.T) {
	s := newTestScheduler(t, Options{})

	const n = 1000
	var counts [n]atomic.Int32
	b := NewBatch(context.Background(), "once")
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error {
			counts[i].Add(1)
			return nil
		}))
	}
	b.Release()

	require.NoError(t, b.Wait(waitCtx(t)))
	for i := range counts {
		assert.Equal(t, int32(1), counts[i].Load(), "job %d", i)
	}
	assert.Equal(t, int64(n), b.Executed())
	assert.Equal(t, int64(0), b.Pending())
	assert.Equal(t, int64(n), s.Executed())
}

func TestWaitAll(t *testing.T) {
	s := newTestScheduler(t, Options{Workers: 2})

	// Nothing in flight: returns at once.
	require.NoError(t, s.WaitAll(waitCtx(t)))

	var done atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Submit(context.Background(), nil, func(context.Context) error {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return nil
		}))
	}
	require.NoError(t, s.WaitAll(waitCtx(t)))
	assert.Equal(t, int32(50), done.Load())
	assert.Equal(t, int64(0), s.InFlight())

	// The completion signal re-arms for the next burst.
	release := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), nil, func(context.Context) error {
		<-release
		return nil
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitAll(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.WaitAll(waitCtx(t)))
}

func TestBatch_SentinelHoldsUntilRelease(t *testing.T) {
	s := newTestScheduler(t, Options{})
	b := NewBatch(context.Background(), "sentinel")
	assert.Equal(t, int64(1), b.Pending())

	require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error { return nil }))
	require.NoError(t, s.WaitAll(waitCtx(t)))

	// The job finished but the submitter has not released yet.
	select {
	case <-b.Done():
		t.Fatal("batch done before Release")
	default:
	}
	assert.Equal(t, int64(1), b.Pending())

	b.Release()
	b.Release()
	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Equal(t, int64(0), b.Pending())

	err := s.Submit(context.Background(), b, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrReleased)
}

func TestBatch_EmptyReleaseIsDone(t *testing.T) {
	b := NewBatch(context.Background(), "empty")
	b.Release()
	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Error(t, b.Context().Err(), "done batch cancels its context")
}

func TestJobFailureAndPanic(t *testing.T) {
	var mu sync.Mutex
	var reports []*JobExecutionError
	s := newTestScheduler(t, Options{ErrorSink: func(err *JobExecutionError) {
		mu.Lock()
		reports = append(reports, err)
		mu.Unlock()
	}})

	boom := errors.New("boom")
	b := NewBatch(context.Background(), "failing")
	require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error { return boom }))
	require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error { panic("kaboom") }))
	require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error { return nil }))
	b.Release()
	require.NoError(t, b.Wait(waitCtx(t)))

	assert.Equal(t, int64(3), b.Executed())
	assert.Equal(t, int64(2), b.Failed())
	assert.Equal(t, int64(2), s.Failed())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 2)
	var sawErr, sawPanic bool
	for _, r := range reports {
		assert.Equal(t, "failing", r.Batch)
		if r.Panic != nil {
			sawPanic = true
			assert.Equal(t, "kaboom", r.Panic)
			assert.NotEmpty(t, r.Stack)
			assert.Contains(t, r.Error(), "panicked")
		} else {
			sawErr = true
			assert.ErrorIs(t, r, boom)
		}
	}
	assert.True(t, sawErr)
	assert.True(t, sawPanic)

	// Workers survived the panic.
	ran := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), nil, func(context.Context) error {
		close(ran)
		return nil
	}))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not survive a panicking job")
	}
}

func TestBatchCancel_SkipsQueuedJobs(t *testing.T) {
	s := newTestScheduler(t, Options{Workers: 1})
	b := NewBatch(context.Background(), "cancel")

	started := make(chan struct{})
	unblock := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), b, func(ctx context.Context) error {
		close(started)
		<-unblock
		return nil
	}))

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	<-started
	b.Cancel()
	close(unblock)
	b.Release()

	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Equal(t, int32(0), ran.Load())
	assert.Equal(t, int64(1), b.Executed())
	assert.Equal(t, int64(10), b.Skipped())
	assert.Equal(t, int64(0), b.Failed())
}

func TestCancelledJobIsNotAFailure(t *testing.T) {
	s := newTestScheduler(t, Options{Workers: 1})
	b := NewBatch(context.Background(), "ctx-aware")

	started := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), b, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started
	b.Cancel()
	b.Release()

	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Equal(t, int64(0), b.Failed())
	assert.Equal(t, int64(1), b.Skipped())
}

func TestMaxPending_BlocksSubmit(t *testing.T) {
	s := newTestScheduler(t, Options{Workers: 1, MaxPending: 2})

	unblock := make(chan struct{})
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Submit(context.Background(), nil, func(context.Context) error {
			<-unblock
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Submit(ctx, nil, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(unblock)
	require.NoError(t, s.Submit(waitCtx(t), nil, func(context.Context) error { return nil }))
	require.NoError(t, s.WaitAll(waitCtx(t)))
}

func TestClose(t *testing.T) {
	s := New(Options{Workers: 1, IdleWait: 10 * time.Millisecond, Logger: quietLogger()})
	b := NewBatch(context.Background(), "closing")

	started := make(chan struct{})
	unblock := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error {
		close(started)
		<-unblock
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Submit(context.Background(), b, func(context.Context) error { return nil }))
	}
	b.Release()
	<-started

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(unblock)
	}()
	s.Close()
	s.Close()

	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Equal(t, int64(1), b.Executed())
	assert.Equal(t, int64(5), b.Skipped())
	assert.Equal(t, int64(0), s.InFlight())
	require.NoError(t, s.WaitAll(waitCtx(t)))

	err := s.Submit(context.Background(), nil, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIdleWorkersWakeOnSubmit(t *testing.T) {
	// A long idle wait must not delay work: Submit wakes a sleeping worker.
	s := newTestScheduler(t, Options{Workers: 2, IdleWait: time.Hour})
	time.Sleep(10 * time.Millisecond)

	ran := make(chan struct{})
	require.NoError(t, s.Submit(context.Background(), nil, func(context.Context) error {
		close(ran)
		return nil
	}))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("idle worker was not woken by Submit")
	}
}

func TestSubmit_NilJob(t *testing.T) {
	s := newTestScheduler(t, Options{})
	assert.Error(t, s.Submit(context.Background(), nil, nil))
}
