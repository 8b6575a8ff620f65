package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// Batch tracks one group of jobs submitted to a Scheduler.
//
// A new batch starts with a pending count of one. That sentinel unit stands for the
// submitter itself and keeps the batch open while jobs are still being added; Release
// drops it. Done is closed once the count reaches zero, i.e. after Release and after
// every submitted job has finished.
type Batch struct {
	label  string
	ctx    context.Context
	cancel context.CancelFunc

	pending  atomic.Int64
	released atomic.Bool
	doneCh   chan struct{}
	doneOnce sync.Once

	executed atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
}

// NewBatch creates a batch whose jobs run with a context derived from ctx. The label
// is attached to failure reports and logs.
func NewBatch(ctx context.Context, label string) *Batch {
	bctx, cancel := context.WithCancel(ctx)
	b := &Batch{
		label:  label,
		ctx:    bctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	b.pending.Store(1)
	return b
}

// Label returns the batch label.
func (b *Batch) Label() string { return b.label }

// Context returns the context handed to the batch's jobs.
func (b *Batch) Context() context.Context { return b.ctx }

// Release drops the sentinel unit. Call it once all jobs have been submitted.
// Later calls are no-ops.
func (b *Batch) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.done()
	}
}

// Cancel cancels the batch context. Queued jobs are skipped; running jobs see ctx.Done.
func (b *Batch) Cancel() { b.cancel() }

// Done is closed when the batch has drained.
func (b *Batch) Done() <-chan struct{} { return b.doneCh }

// Wait blocks until the batch has drained or ctx is done.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the outstanding count, including the sentinel until Release.
func (b *Batch) Pending() int64 { return b.pending.Load() }

// Executed returns how many job bodies of this batch ran.
func (b *Batch) Executed() int64 { return b.executed.Load() }

// Failed returns how many jobs of this batch failed.
func (b *Batch) Failed() int64 { return b.failed.Load() }

// Skipped returns how many jobs were dropped because the batch was cancelled or the
// scheduler closed.
func (b *Batch) Skipped() int64 { return b.skipped.Load() }

func (b *Batch) done() {
	if b.pending.Add(-1) == 0 {
		b.doneOnce.Do(func() {
			close(b.doneCh)
			b.cancel()
		})
	}
}
