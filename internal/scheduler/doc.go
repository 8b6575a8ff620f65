// Package scheduler implements a bounded worker pool fed by a shared FIFO job queue.
//
// A Scheduler owns a fixed number of worker goroutines, the queue, and an in-flight
// counter of submitted-but-unfinished jobs. WaitAll blocks until that counter drops to
// zero. Because the counter covers every job of the scheduler, callers that need to
// wait for one group of jobs only use a Batch: each batch keeps its own counter,
// starting at one (a sentinel for "still submitting") and completing once Release has
// been called and every job submitted to it has finished.
//
// # Workers
//
// Workers dequeue under the scheduler lock and run jobs synchronously. When the queue
// is empty a worker sleeps for at most Options.IdleWait, or until a submission wakes it.
//
// # Failures
//
// A job that returns an error or panics never takes its worker down. The failure is
// wrapped in a *JobExecutionError and handed to Options.ErrorSink (by default, logged).
// The in-flight counters are decremented on every path. Failed jobs are not retried.
//
// # Cancellation
//
// Each batch carries a context. Jobs whose batch context is already done when they
// are dequeued are skipped without running; running jobs receive the context and are
// expected to return promptly once it is cancelled.
package scheduler
