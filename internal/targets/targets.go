// Package targets tracks the parameters an expression drives and applies,
// previews and rolls back their values.
package targets

import (
	"context"
	"fmt"

	"github.com/verte-zerg/exprparms/internal/host"
)

// CommitLabel names the undo entry created by Commit.
const CommitLabel = "Apply expression to parms"

// Evaluator maps a parameter's initial value to its new value.
type Evaluator interface {
	Evaluate(input float64) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(input float64) (float64, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(input float64) (float64, error) {
	return f(input)
}

// Target is a bound parameter and the value it had when it was bound.
type Target struct {
	Parm    host.Parm
	Initial float64
}

// Set is the ordered set of bound parameters, keyed by path.
type Set struct {
	undo    host.Undoer
	targets []Target
}

// New returns an empty set writing through u's undo brackets.
func New(u host.Undoer) *Set {
	return &Set{undo: u}
}

// Eligible reports whether p can be driven by an expression.
func Eligible(p host.Parm) bool {
	return p != nil && !p.Locked() && p.Type().Numeric()
}

// Bind adds parms, capturing their current values. Nil, locked and
// non-numeric parameters and parameters already bound are skipped. It
// returns the parameters that were added.
func (s *Set) Bind(ctx context.Context, parms []host.Parm) ([]host.Parm, error) {
	var added []host.Parm
	for _, p := range parms {
		if !Eligible(p) || s.Contains(p.Path()) {
			continue
		}
		initial, err := p.Value(ctx)
		if err != nil {
			return added, fmt.Errorf("bind %s: %w", p.Path(), err)
		}
		s.targets = append(s.targets, Target{Parm: p, Initial: initial})
		added = append(added, p)
	}
	return added, nil
}

// Unbind restores the parameters at paths to their initial values without
// recording undo entries and removes them from the set. Unknown paths are
// ignored.
func (s *Set) Unbind(ctx context.Context, paths []string) error {
	drop := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		drop[path] = struct{}{}
	}
	return host.WithoutUndo(s.undo, func() error {
		kept := s.targets[:0]
		var firstErr error
		for _, t := range s.targets {
			if _, ok := drop[t.Parm.Path()]; !ok {
				kept = append(kept, t)
				continue
			}
			if err := t.Parm.SetValue(ctx, t.Initial); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("restore %s: %w", t.Parm.Path(), err)
			}
		}
		for i := len(kept); i < len(s.targets); i++ {
			s.targets[i] = Target{}
		}
		s.targets = kept
		return firstErr
	})
}

// Preview writes ev(initial) to every target without recording undo
// entries. A target whose evaluation fails keeps its current value. The
// first evaluation error is returned after all targets were visited; host
// write errors abort the preview.
func (s *Set) Preview(ctx context.Context, ev Evaluator) error {
	var evalErr error
	err := host.WithoutUndo(s.undo, func() error {
		for _, t := range s.targets {
			value, err := ev.Evaluate(t.Initial)
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				continue
			}
			if err := t.Parm.SetValue(ctx, value); err != nil {
				return fmt.Errorf("preview %s: %w", t.Parm.Path(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return evalErr
}

// Commit restores every target to its initial value outside the undo
// history, then writes the evaluated values as one undo group. If any
// evaluation fails nothing is written and the targets stay at their
// initial values.
func (s *Set) Commit(ctx context.Context, ev Evaluator) error {
	if err := s.Rollback(ctx); err != nil {
		return err
	}
	values := make([]float64, len(s.targets))
	for i, t := range s.targets {
		value, err := ev.Evaluate(t.Initial)
		if err != nil {
			return err
		}
		values[i] = value
	}
	if len(s.targets) == 0 {
		return nil
	}
	return host.UndoGroup(ctx, s.undo, CommitLabel, func() error {
		for i, t := range s.targets {
			if err := t.Parm.SetValue(ctx, values[i]); err != nil {
				return fmt.Errorf("apply %s: %w", t.Parm.Path(), err)
			}
		}
		return nil
	})
}

// Rollback restores every target to its initial value without recording
// undo entries.
func (s *Set) Rollback(ctx context.Context) error {
	return host.WithoutUndo(s.undo, func() error {
		for _, t := range s.targets {
			if err := t.Parm.SetValue(ctx, t.Initial); err != nil {
				return fmt.Errorf("restore %s: %w", t.Parm.Path(), err)
			}
		}
		return nil
	})
}

// Contains reports whether the parameter at path is bound.
func (s *Set) Contains(path string) bool {
	_, ok := s.Initial(path)
	return ok
}

// Initial returns the captured value of the parameter at path.
func (s *Set) Initial(path string) (float64, bool) {
	for _, t := range s.targets {
		if t.Parm.Path() == path {
			return t.Initial, true
		}
	}
	return 0, false
}

// Targets returns the bound parameters in binding order.
func (s *Set) Targets() []Target {
	return append([]Target(nil), s.targets...)
}

// Len returns the number of bound parameters.
func (s *Set) Len() int {
	return len(s.targets)
}
