package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
)

// DefaultMaxTasks bounds the number of tasks one evaluation may run.
const DefaultMaxTasks = 1_000_000

// Evaluator computes the values of keys in a graph.
type Evaluator interface {
	Evaluate(ctx context.Context, g *graph.Graph, keys []ir.Key) ([]any, error)
}

// TraceEvent records one executed task.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Key  ir.Key `json:"key"`
	Func string `json:"func"`
}

// Sync evaluates graphs synchronously on the calling goroutine.
type Sync struct {
	logger   *slog.Logger
	maxTasks int64
	observe  func(TraceEvent)
}

var _ Evaluator = (*Sync)(nil)

// Option configures a Sync evaluator.
type Option func(*Sync)

// WithLogger sets the logger used for per-task debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sync) { s.logger = l }
}

// WithMaxTasks caps the number of tasks one evaluation may run.
//
// Default: DefaultMaxTasks.
func WithMaxTasks(n int) Option {
	return func(s *Sync) { s.maxTasks = int64(n) }
}

// WithObserver registers a callback invoked after each task is scheduled.
func WithObserver(fn func(TraceEvent)) Option {
	return func(s *Sync) { s.observe = fn }
}

// NewSync creates a synchronous evaluator.
func NewSync(opts ...Option) *Sync {
	s := &Sync{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxTasks: DefaultMaxTasks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate computes keys in order and returns their values.
// Each task runs at most once per call.
func (s *Sync) Evaluate(ctx context.Context, g *graph.Graph, keys []ir.Key) (results []any, err error) {
	run := &evaluation{
		ctx:    ctx,
		sync:   s,
		tasks:  g.Tasks(),
		cache:  make(map[ir.Key]any),
		active: make(map[ir.Key]bool),
		clock:  NewClock(),
	}

	defer func() {
		if r := recover(); r != nil {
			perr := &EvaluationError{Code: ErrCodePanic, Key: run.current, Message: fmt.Sprint(r)}
			if e, ok := r.(error); ok {
				perr.Err = e
			}
			results, err = nil, perr
		}
	}()

	results = make([]any, len(keys))
	for i, k := range keys {
		val, cerr := run.compute(k)
		if cerr != nil {
			return nil, cerr
		}
		results[i] = val
	}
	s.logger.Debug("evaluation complete", "keys", len(keys), "tasks", run.clock.Current())
	return results, nil
}

type evaluation struct {
	ctx     context.Context
	sync    *Sync
	tasks   map[ir.Key]ir.Task
	cache   map[ir.Key]any
	active  map[ir.Key]bool
	clock   *Clock
	current ir.Key
}

func (r *evaluation) compute(k ir.Key) (any, error) {
	if v, ok := r.cache[k]; ok {
		return v, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if r.active[k] {
		return nil, &EvaluationError{Code: ErrCodeCycle, Key: k, Message: "task depends on itself"}
	}
	task, ok := r.tasks[k]
	if !ok {
		return nil, &EvaluationError{Code: ErrCodeMissingKey, Key: k, Message: "no task produces this key"}
	}

	r.active[k] = true
	defer delete(r.active, k)

	args := make([]any, len(task.Args))
	for i, a := range task.Args {
		v, err := ir.Resolve(a, r)
		if err != nil {
			var ee *EvaluationError
			if errors.As(err, &ee) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &EvaluationError{Code: ErrCodeBadArgument, Key: k, Message: fmt.Sprintf("arg %d: %v", i, err), Err: err}
		}
		args[i] = v
	}

	if r.clock.Current() >= r.sync.maxTasks {
		return nil, &EvaluationError{
			Code:    ErrCodeQuotaExceeded,
			Key:     k,
			Message: fmt.Sprintf("evaluation exceeded max tasks (%d)", r.sync.maxTasks),
		}
	}
	seq := r.clock.Next()
	if r.sync.observe != nil {
		r.sync.observe(TraceEvent{Seq: seq, Key: k, Func: task.Func.Name})
	}
	r.sync.logger.Debug("run task", "seq", seq, "key", k.String(), "func", task.Func.Name)

	r.current = k
	v, err := task.Func.Call(r.ctx, args)
	if err != nil {
		return nil, &EvaluationError{Code: ErrCodeTaskFailed, Key: k, Func: task.Func.Name, Err: err}
	}
	r.cache[k] = v
	return v, nil
}

func (r *evaluation) Partition(k ir.Key) (any, error) { return r.compute(k) }

func (r *evaluation) Slot(i int) (any, error) {
	return nil, fmt.Errorf("slot reference %d outside a blockwise subgraph", i)
}

func (r *evaluation) Step(name string) (any, error) {
	return nil, fmt.Errorf("step reference %q outside a blockwise subgraph", name)
}
