package optimizer

import (
	"context"
	"fmt"

	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// touchAllData replaces the task of an output layer during the dry run:
// everything it receives counts as read.
var touchAllData = ir.NewFunc("touch-all-data", func(_ context.Context, args []any) (any, error) {
	for _, a := range args {
		tracer.TouchData(a)
	}
	return nil, nil
})

// touchAndCall wraps fn so every argument is fully touched before the call.
func touchAndCall(fn ir.Func) ir.Func {
	return ir.NewFunc("touch-and-call-"+fn.Name, func(ctx context.Context, args []any) (any, error) {
		for _, a := range args {
			tracer.TouchData(a)
		}
		return fn.Call(ctx, args)
	})
}

// ProjectColumns narrows every projectable input layer to the columns the
// graph actually reads.
//
// The graph is dry-run on tracer arrays: inputs are mocked, output layers
// touch everything they receive, touch-all layers touch their arguments, and
// the first partition of every leaf layer is evaluated. If the dry run fails
// the on-fail policy applies. Graphs without a projectable input are
// returned unchanged without a dry run.
func (o *Optimizer) ProjectColumns(ctx context.Context, g *graph.Graph) (*graph.Graph, error) {
	return o.projectColumns(ctx, g, &Report{})
}

func (o *Optimizer) projectColumns(ctx context.Context, g *graph.Graph, rep *Report) (*graph.Graph, error) {
	if !hasProjectable(g) {
		return g, nil
	}
	states, err := o.dryRun(ctx, g)
	if err != nil {
		return o.handleFailure(g, err, rep)
	}

	replace := make(map[string]graph.Layer, len(states))
	for name, state := range states {
		l, _ := g.Layer(name)
		projected, err := l.(graph.Projectable).Project(state)
		if err != nil {
			return nil, fmt.Errorf("project layer %q: %w", name, err)
		}
		replace[name] = projected
		if in, ok := projected.(*graph.InputLayer); ok {
			if rep.Columns == nil {
				rep.Columns = make(map[string][]string)
			}
			rep.Columns[name] = in.Columns()
			o.logger.Debug("projected input layer", "layer", name, "columns", in.Columns())
		}
	}
	return g.WithLayers(replace)
}

// NecessaryColumns reports, per projectable input layer, the columns a run
// of g would read. Unlike ProjectColumns it returns dry-run errors directly
// and ignores the on-fail policy.
func (o *Optimizer) NecessaryColumns(ctx context.Context, g *graph.Graph) (map[string][]string, error) {
	out := make(map[string][]string)
	if !hasProjectable(g) {
		return out, nil
	}
	states, err := o.dryRun(ctx, g)
	if err != nil {
		return nil, err
	}
	for name, state := range states {
		l, _ := g.Layer(name)
		projected, err := l.(graph.Projectable).Project(state)
		if err != nil {
			return nil, fmt.Errorf("project layer %q: %w", name, err)
		}
		switch p := projected.(type) {
		case *graph.InputLayer:
			out[name] = p.Columns()
		default:
			if report, ok := state.(*tracer.Report); ok {
				out[name] = report.Touched()
			}
		}
	}
	return out, nil
}

// touchStepMapper is implemented by layers that mark touch-all per step.
type touchStepMapper interface {
	MapTouchAllSteps(fn func(ir.Task) ir.Task) (graph.Layer, error)
}

// dryRun evaluates a mocked copy of g and returns the projection state of
// every projectable input layer. A panic while mocking or wrapping a layer
// is reported like a panicking task.
func (o *Optimizer) dryRun(ctx context.Context, g *graph.Graph) (states map[string]graph.ProjectionState, err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			perr := &engine.EvaluationError{Code: engine.ErrCodePanic, Key: ir.K(current, 0), Message: fmt.Sprint(r)}
			if e, ok := r.(error); ok {
				perr.Err = e
			}
			states, err = nil, perr
		}
	}()

	states = make(map[string]graph.ProjectionState)
	mocked := make(map[string]graph.Layer)

	for _, name := range g.Names() {
		current = name
		l, _ := g.Layer(name)
		if p, ok := l.(graph.Projectable); ok && p.IsProjectable() {
			m, state, err := p.MockWithState()
			if err != nil {
				return nil, fmt.Errorf("mock layer %q: %w", name, err)
			}
			mocked[name] = m
			states[name] = state
			continue
		}
		if m, ok := l.(graph.Mockable); ok {
			ml, err := m.Mock()
			if err != nil {
				return nil, fmt.Errorf("mock layer %q: %w", name, err)
			}
			mocked[name] = ml
		}
	}

	layer := func(name string) graph.Layer {
		if m, ok := mocked[name]; ok {
			return m
		}
		l, _ := g.Layer(name)
		return l
	}

	for _, name := range g.Names() {
		current = name
		l, _ := g.Layer(name)
		if !l.Annotations().IsOutput() {
			continue
		}
		wrapped, err := mapTasks(layer(name), func(t ir.Task) ir.Task { return t.WithFunc(touchAllData) })
		if err != nil {
			return nil, fmt.Errorf("wrap output layer %q: %w", name, err)
		}
		mocked[name] = wrapped
	}

	touch := func(t ir.Task) ir.Task { return t.WithFunc(touchAndCall(t.Func)) }
	for _, name := range g.Names() {
		current = name
		l, _ := g.Layer(name)
		ta, ok := l.(graph.TouchAller)
		if !ok || !ta.TouchAllInputs() {
			continue
		}
		var wrapped graph.Layer
		if m, ok := layer(name).(touchStepMapper); ok {
			wrapped, err = m.MapTouchAllSteps(touch)
		} else {
			wrapped, err = mapTasks(layer(name), touch)
		}
		if err != nil {
			return nil, fmt.Errorf("wrap touch-all layer %q: %w", name, err)
		}
		mocked[name] = wrapped
	}

	current = ""
	mg, err := g.WithLayers(mocked)
	if err != nil {
		return nil, err
	}

	keys := leafKeys(mg)
	results, err := o.eval.Evaluate(ctx, mg, keys)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if tracer.IsTracer(r) {
			tracer.TouchData(r)
		}
	}
	return states, nil
}

// handleFailure applies the on-fail policy to a dry-run error.
func (o *Optimizer) handleFailure(g *graph.Graph, err error, rep *Report) (*graph.Graph, error) {
	switch o.cfg.OnFail {
	case OnFailWarn:
		rep.Warning = FormatWarning(err)
		o.warn(rep.Warning)
		return g, nil
	case OnFailPass:
		o.logger.Debug("column projection skipped", "error", err)
		return g, nil
	case OnFailRaise:
		return nil, err
	default:
		return nil, validateOnFail(o.cfg.OnFail)
	}
}

func mapTasks(l graph.Layer, fn func(ir.Task) ir.Task) (graph.Layer, error) {
	m, ok := l.(graph.TaskMapper)
	if !ok {
		return nil, fmt.Errorf("%s layer does not support task rewriting", graph.Kind(l))
	}
	return m.MapTasks(fn)
}

// leafKeys returns the first partition of every layer nothing depends on.
// Layers whose keys are not named after them contribute their smallest key.
func leafKeys(g *graph.Graph) []ir.Key {
	var keys []ir.Key
	for _, name := range g.Leaves() {
		l, _ := g.Layer(name)
		tasks := l.Tasks()
		if _, ok := tasks[ir.K(name, 0)]; ok {
			keys = append(keys, ir.K(name, 0))
			continue
		}
		var first *ir.Key
		for k := range tasks {
			if first == nil || k.Layer < first.Layer || (k.Layer == first.Layer && k.Partition < first.Partition) {
				first = &k
			}
		}
		if first != nil {
			keys = append(keys, *first)
		}
	}
	return keys
}

func hasProjectable(g *graph.Graph) bool {
	for _, name := range g.Names() {
		l, _ := g.Layer(name)
		if p, ok := l.(graph.Projectable); ok && p.IsProjectable() {
			return true
		}
	}
	return false
}
