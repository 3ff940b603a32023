package heiretsu

import (
	"errors"
	"runtime"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ErrNoTaskPool is returned when parallel iteration is requested without a
// task pool. Construct one at startup with NewTaskPool and pass it to
// Filter.Par; there is no process-wide default.
var ErrNoTaskPool = errors.New("heiretsu: task pool not initialized")

// TaskPanicError wraps a panic recovered from a pool task. The dispatch that
// observed it has still run every task to completion; the first recovered
// panic is surfaced after the join.
type TaskPanicError struct {
	Recovered *panics.Recovered
}

func (e *TaskPanicError) Error() string {
	return "heiretsu: task panicked: " + e.Recovered.String()
}

func (e *TaskPanicError) Unwrap() error {
	return e.Recovered.AsError()
}

// TaskPool is a fixed-size worker pool for parallel query iteration. It is
// created once at startup and injected wherever parallel dispatch is needed;
// a pool with a single thread makes every dispatch fall back to sequential
// execution.
type TaskPool struct {
	threads int
	logger  *zap.Logger
}

// TaskPoolOption configures a TaskPool.
type TaskPoolOption func(*TaskPool)

// WithPoolLogger sets the logger used for dispatch debug logging. The
// default is a no-op logger.
func WithPoolLogger(l *zap.Logger) TaskPoolOption {
	return func(p *TaskPool) { p.logger = l }
}

// NewTaskPool creates a task pool with the given number of worker threads.
// A non-positive thread count defaults to GOMAXPROCS.
func NewTaskPool(threads int, opts ...TaskPoolOption) *TaskPool {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	p := &TaskPool{
		threads: threads,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ThreadCount returns the number of worker threads.
func (p *TaskPool) ThreadCount() int {
	return p.threads
}

// TaskScope collects the tasks of one dispatch. Spawned tasks run on at most
// ThreadCount goroutines; panics are caught per task so that sibling tasks
// always run to completion.
type TaskScope struct {
	pool    *pool.Pool
	catcher panics.Catcher
}

// Spawn schedules one task. It may be called only between the start of
// Scope and the return of its callback.
func (s *TaskScope) Spawn(task func()) {
	s.pool.Go(func() {
		s.catcher.Try(task)
	})
}

// Scope runs fn, waits for every task it spawned, and then reports the first
// task panic (if any) as a *TaskPanicError. The join is unconditional:
// a panicking task never cancels its siblings.
func (p *TaskPool) Scope(fn func(*TaskScope)) error {
	s := &TaskScope{pool: pool.New().WithMaxGoroutines(p.threads)}
	fn(s)
	s.pool.Wait()
	if r := s.catcher.Recovered(); r != nil {
		p.logger.Debug("task panicked", zap.Any("value", r.Value))
		return &TaskPanicError{Recovered: r}
	}
	return nil
}

// runInline executes task on the calling goroutine with the same panic
// recovery as a pooled task. Sequential fallbacks use it so a fold panic
// surfaces as *TaskPanicError regardless of pool size.
func (p *TaskPool) runInline(task func()) error {
	var c panics.Catcher
	c.Try(task)
	if r := c.Recovered(); r != nil {
		p.logger.Debug("task panicked", zap.Any("value", r.Value))
		return &TaskPanicError{Recovered: r}
	}
	return nil
}

// logger exposes the pool's logger to the dispatch engine.
func (p *TaskPool) log() *zap.Logger {
	return p.logger
}
