package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
	"github.com/ironsheep/colormatch-mcp/internal/match"
	"github.com/ironsheep/colormatch-mcp/internal/scheduler"
)

var (
	// ErrBusy is returned by RunSearch while another search is running or draining.
	ErrBusy = errors.New("a search is already running")

	// ErrNoSamples is returned by RunSearch when the sample list is empty.
	ErrNoSamples = errors.New("at least one region sample is required")

	// ErrEmptySource is returned by RunSearch for a nil or 0x0 buffer.
	ErrEmptySource = errors.New("source buffer is empty")
)

// DefaultHistoryLimit is the number of match records kept when Options.HistoryLimit is 0.
const DefaultHistoryLimit = 4096

// State is the lifecycle of a search run.
type State int32

const (
	// Idle means no candidate is pending.
	Idle State = iota
	// Running means the grid is still being enumerated.
	Running
	// Draining means enumeration finished and submitted candidates are still running.
	Draining
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "idle"
	}
}

// MarshalText lets State appear as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "draining":
		*s = Draining
	default:
		return fmt.Errorf("unknown search state %q", text)
	}
	return nil
}

// Result is one published match.
type Result struct {
	RunID     uuid.UUID       `json:"run_id"`
	Seq       uint64          `json:"seq"`
	Transform match.Transform `json:"transform"`
	Kind      match.Kind      `json:"kind"`

	// Matched is the length of the matching sample prefix; Total the sample count.
	Matched int `json:"matched"`
	Total   int `json:"total"`

	// LastMatched is the last sample of the matching prefix.
	LastMatched *match.Sample `json:"last_matched,omitempty"`

	// Distance is the CIEDE2000 gap between the transformed input and the expected
	// color of the first failing sample. Zero for full matches.
	Distance float64 `json:"distance,omitempty"`

	// Image is the whole source transformed by Transform. History records omit it.
	Image *imaging.Buffer `json:"-"`

	PublishedAt time.Time `json:"published_at"`
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Emitter receives every published result. Nil disables emission.
	Emitter Emitter

	// EmitPartial also emits partial matches. Full matches are always emitted.
	EmitPartial bool

	// HistoryLimit caps the match history; the oldest records are dropped first.
	// Zero selects DefaultHistoryLimit, negative disables the history.
	HistoryLimit int
}

// Engine runs brute-force searches for color transforms on a shared Scheduler.
//
// Results go to a single "latest" slot: whichever matching job publishes last wins,
// with no preference between full and partial matches. The engine also keeps a
// bounded history of match records and a coalescing notification channel.
type Engine struct {
	sched        *scheduler.Scheduler
	logger       *slog.Logger
	emitter      Emitter
	emitPartial  bool
	historyLimit int

	mu      sync.Mutex
	latest  *Result
	seq     uint64
	history []Result
	updates chan *Result

	runMu sync.Mutex
	run   *Run
}

// NewEngine creates an engine that submits its candidates to sched.
func NewEngine(sched *scheduler.Scheduler, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Engine{
		sched:        sched,
		logger:       opts.Logger,
		emitter:      opts.Emitter,
		emitPartial:  opts.EmitPartial,
		historyLimit: opts.HistoryLimit,
		updates:      make(chan *Result, 1),
	}
}

// RunSearch starts an asynchronous search and returns immediately.
//
// The latest-result slot and the history are cleared before the run starts.
// The buffer is copied, so the caller may keep using or modifying its own buffer.
// The sample list is copied as well. ctx bounds the whole search, not just the call;
// cancelling it aborts enumeration and skips candidates not yet started.
//
// # Errors
//
//   - ErrBusy if the previous run has not returned to Idle
//   - ErrNoSamples if samples is empty
//   - ErrEmptySource if buf is nil or has no pixels
//   - an error wrapping ErrInvalidGrid if grid is malformed
func (e *Engine) RunSearch(ctx context.Context, buf *imaging.Buffer, samples []match.Sample, grid GridSpec) (*Run, error) {
	if buf == nil || buf.Width() == 0 || buf.Height() == 0 {
		return nil, ErrEmptySource
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.run != nil && e.run.State() != Idle {
		return nil, ErrBusy
	}
	e.ResetResults()

	id := uuid.New()
	r := &Run{
		ID:       id,
		Grid:     grid,
		Size:     grid.Size(),
		Samples:  append([]match.Sample(nil), samples...),
		Started:  time.Now(),
		engine:   e,
		source:   buf.Clone(),
		batch:    scheduler.NewBatch(ctx, id.String()),
		finished: make(chan struct{}),
	}
	r.state.Store(int32(Running))
	e.run = r

	e.logger.Info("Search started",
		"run", id.String(),
		"candidates", r.Size,
		"samples", len(r.Samples),
		"shared_diagonal", grid.SharedDiagonal(),
		"width", buf.Width(),
		"height", buf.Height())

	go r.enumerate()
	go r.monitor()
	return r, nil
}

// Current returns the most recent run, or nil before the first search.
func (e *Engine) Current() *Run {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.run
}

// PollResult returns the latest published result without blocking, or nil.
func (e *Engine) PollResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Updates delivers newly published results. The channel holds at most one pending
// value; a slow reader only sees the newest result.
func (e *Engine) Updates() <-chan *Result { return e.updates }

// Matches returns a copy of the match history, oldest first. Records carry no image.
func (e *Engine) Matches() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.history...)
}

// ResetResults clears the latest slot and the history.
func (e *Engine) ResetResults() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest = nil
	e.history = nil
	select {
	case <-e.updates:
	default:
	}
}

// WaitAll blocks until the scheduler has no job in flight.
func (e *Engine) WaitAll(ctx context.Context) error {
	return e.sched.WaitAll(ctx)
}

func (e *Engine) publish(r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	r.Seq = e.seq
	e.latest = r
	if e.historyLimit > 0 {
		rec := *r
		rec.Image = nil
		if len(e.history) >= e.historyLimit {
			e.history = append(e.history[:0], e.history[1:]...)
		}
		e.history = append(e.history, rec)
	}

	// Replace a stale pending notification with the newest one. Only publishers
	// send, and they hold mu, so the send cannot block.
	select {
	case <-e.updates:
	default:
	}
	e.updates <- r
}

// Run is one search over a grid.
type Run struct {
	ID      uuid.UUID
	Grid    GridSpec
	Size    uint64
	Samples []match.Sample
	Started time.Time

	engine *Engine
	source *imaging.Buffer
	batch  *scheduler.Batch

	state     atomic.Int32
	cancelled atomic.Bool
	submitted atomic.Int64
	full      atomic.Int64
	partial   atomic.Int64
	rejected  atomic.Int64

	errMu    sync.Mutex
	err      error
	ended    time.Time
	finished chan struct{}
}

// RunStats is a snapshot of a run's progress.
type RunStats struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	GridSize  uint64        `json:"grid_size"`
	Submitted int64         `json:"submitted"`
	Evaluated int64         `json:"evaluated"`
	Full      int64         `json:"full"`
	Partial   int64         `json:"partial"`
	Rejected  int64         `json:"rejected"`
	Failed    int64         `json:"failed"`
	Skipped   int64         `json:"skipped"`
	Pending   int64         `json:"pending"`
	Cancelled bool          `json:"cancelled"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Error     string        `json:"error,omitempty"`
}

// State returns the run's lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

// Done is closed when the run is back to Idle.
func (r *Run) Done() <-chan struct{} { return r.finished }

// Wait blocks until the run is back to Idle or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops enumeration and skips every candidate not yet started.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.batch.Cancel()
}

// Err returns the enumeration error, if any. Cancellation is not an error.
func (r *Run) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Stats returns a progress snapshot.
func (r *Run) Stats() RunStats {
	r.errMu.Lock()
	err, ended := r.err, r.ended
	r.errMu.Unlock()

	if ended.IsZero() {
		ended = time.Now()
	}
	s := RunStats{
		ID:        r.ID.String(),
		State:     r.State(),
		GridSize:  r.Size,
		Submitted: r.submitted.Load(),
		Evaluated: r.batch.Executed(),
		Full:      r.full.Load(),
		Partial:   r.partial.Load(),
		Rejected:  r.rejected.Load(),
		Failed:    r.batch.Failed(),
		Skipped:   r.batch.Skipped(),
		Pending:   r.batch.Pending(),
		Cancelled: r.cancelled.Load(),
		Elapsed:   ended.Sub(r.Started),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// candidate is one grid point bound to its run. It is passed by value into the job,
// so every job owns its own coefficients.
type candidate struct {
	run       *Run
	transform match.Transform
}

func (c candidate) evaluate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := c.run
	out := match.Evaluate(c.transform, r.Samples)
	if out.Kind == match.Reject {
		r.rejected.Add(1)
		return nil
	}

	res := &Result{
		RunID:       r.ID,
		Transform:   c.transform,
		Kind:        out.Kind,
		Matched:     out.Matched,
		Total:       len(r.Samples),
		LastMatched: &r.Samples[out.Matched-1],
		Image:       c.transform.ApplyToBuffer(r.source),
		PublishedAt: time.Now(),
	}
	if out.Kind == match.Partial {
		r.partial.Add(1)
		res.Distance = match.Distance(out.Mismatch, r.Samples[out.Matched].Expected)
	} else {
		r.full.Add(1)
	}

	e := r.engine
	e.publish(res)
	e.logger.Debug("Match found",
		"run", r.ID.String(),
		"kind", out.Kind.String(),
		"matched", out.Matched,
		"transform", c.transform.String())

	if e.emitter != nil && (out.Kind == match.Full || e.emitPartial) {
		if err := e.emitter.Emit(res); err != nil {
			return fmt.Errorf("emit result: %w", err)
		}
	}
	return nil
}

func (r *Run) enumerate() {
	e := r.engine
	ctx := r.batch.Context()

	err := r.Grid.Enumerate(ctx, func(t match.Transform) error {
		c := candidate{run: r, transform: t}
		if err := e.sched.Submit(ctx, r.batch, c.evaluate); err != nil {
			return err
		}
		r.submitted.Add(1)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.cancelled.Store(true)
	default:
		e.logger.Error("Search enumeration failed", "run", r.ID.String(), "error", err)
		r.errMu.Lock()
		r.err = err
		r.errMu.Unlock()
	}

	r.state.Store(int32(Draining))
	r.batch.Release()
}

func (r *Run) monitor() {
	<-r.batch.Done()

	r.errMu.Lock()
	r.ended = time.Now()
	r.errMu.Unlock()

	r.state.Store(int32(Idle))
	close(r.finished)

	s := r.Stats()
	r.engine.logger.Info("Search finished",
		"run", s.ID,
		"submitted", s.Submitted,
		"evaluated", s.Evaluated,
		"full", s.Full,
		"partial", s.Partial,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"cancelled", s.Cancelled,
		"elapsed", s.Elapsed)
}
