// Package session implements the expression dialog: an expression with its
// variable bindings driving a set of parameters, previewed live and either
// committed as one undo step or cancelled.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/exprparms/internal/binding"
	"github.com/verte-zerg/exprparms/internal/dnd"
	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/history"
	"github.com/verte-zerg/exprparms/internal/host"
	"github.com/verte-zerg/exprparms/internal/model"
	"github.com/verte-zerg/exprparms/internal/targets"
)

// State is the lifecycle stage of a session.
type State int

// Session states. Committed and Cancelled are terminal.
const (
	Idle State = iota
	Previewing
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Previewing:
		return "previewing"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Severity of a status message.
type Severity int

// Status severities.
const (
	SeverityNone Severity = iota
	SeverityMessage
	SeverityError
)

// Status is the one-line message shown under the dialog.
type Status struct {
	Text     string
	Severity Severity
}

var (
	// ErrClosed is returned by operations on a committed or cancelled
	// session.
	ErrClosed = errors.New("session is closed")
	// ErrInvalidExpression is returned when expression text contains
	// characters outside the expression character set.
	ErrInvalidExpression = errors.New("expression contains invalid characters")
	// ErrNotBound is returned when a path names no bound parameter.
	ErrNotBound = errors.New("parameter is not bound")
)

// Options configures a new session.
type Options struct {
	// Expression is used when no history exists for the source parameter.
	// Empty means expr.DefaultExpression.
	Expression string
	// Parms are bound on creation; the first one becomes the source.
	Parms []host.Parm
}

// Session is a single dialog run. It is not safe for concurrent use.
type Session struct {
	host    host.Host
	history *history.Store

	text    string
	prog    *expr.Program
	progErr error
	vars    *binding.Table
	targets *targets.Set
	source  host.Parm

	state  State
	status Status
}

// New creates a session over h. hist may be nil to disable history and
// presets. When parms are given, the expression and variable values last
// applied to the first parameter's name are restored before binding. The
// preview starts with Show.
func New(ctx context.Context, h host.Host, hist *history.Store, opts Options) (*Session, error) {
	s := &Session{
		host:    h,
		history: hist,
		vars:    binding.NewTable(),
		targets: targets.New(h),
	}
	text := opts.Expression
	if text == "" {
		text = expr.DefaultExpression
	}
	s.setText(text)

	var first host.Parm
	for _, p := range opts.Parms {
		if p != nil {
			first = p
			break
		}
	}
	if first != nil {
		s.restoreHistory(first.Name())
		s.source = first
		if _, err := s.targets.Bind(ctx, opts.Parms); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) restoreHistory(parmName string) {
	if s.history == nil {
		return
	}
	entry, ok := s.history.History(parmName)
	if !ok || entry.Expression == "" || !expr.Valid(entry.Expression) {
		return
	}
	s.setText(entry.Expression)
	s.vars.Clear()
	s.vars.Discover(entry.Expression, entry.Variables)
}

func (s *Session) setText(text string) {
	s.text = text
	s.prog, s.progErr = expr.Compile(text)
}

// Show creates bindings for the variables of the current expression and
// refreshes the preview.
func (s *Session) Show(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	s.vars.Discover(s.text, nil)
	return s.Preview(ctx)
}

// Expression returns the current expression text.
func (s *Session) Expression() string {
	return s.text
}

// SelectableRange returns the range a front-end should pre-select in the
// expression field.
func (s *Session) SelectableRange() (start, length int) {
	return expr.SelectableRange(s.text)
}

// SetExpression replaces the expression and refreshes the preview. Text with
// characters outside the expression character set is rejected and the
// current expression is kept. Bindings are never removed here.
func (s *Session) SetExpression(ctx context.Context, text string) error {
	if s.closed() {
		return ErrClosed
	}
	if !expr.Valid(text) {
		return ErrInvalidExpression
	}
	s.setText(text)
	return s.Preview(ctx)
}

// CreateVariables binds every variable of the expression that is not bound
// yet and returns the created names.
func (s *Session) CreateVariables(ctx context.Context) ([]string, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	created := s.vars.Discover(s.text, nil)
	if len(created) == 0 {
		return nil, nil
	}
	return created, s.Preview(ctx)
}

// Variables returns the bindings in display order.
func (s *Session) Variables() []binding.Variable {
	return s.vars.Variables()
}

// SetVariable updates a bound variable and refreshes the preview.
func (s *Session) SetVariable(ctx context.Context, name string, value float64) error {
	if s.closed() {
		return ErrClosed
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return fmt.Errorf("variable %q must be a finite number", name)
	}
	if !s.vars.Set(name, value) {
		return fmt.Errorf("variable %q is not bound", name)
	}
	return s.Preview(ctx)
}

// ResetVariable reverts a variable to the value it was created with.
func (s *Session) ResetVariable(ctx context.Context, name string) error {
	if s.closed() {
		return ErrClosed
	}
	if !s.vars.Reset(name) {
		return fmt.Errorf("variable %q is not bound", name)
	}
	return s.Preview(ctx)
}

// RemoveVariable drops a binding and refreshes the preview. An expression
// that still references the name fails with an undefined variable.
func (s *Session) RemoveVariable(ctx context.Context, name string) error {
	if s.closed() {
		return ErrClosed
	}
	if !s.vars.Remove(name) {
		return nil
	}
	return s.Preview(ctx)
}

// Bind adds parameters and refreshes the preview. It returns the
// parameters that were added.
func (s *Session) Bind(ctx context.Context, parms []host.Parm) ([]host.Parm, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	added, err := s.targets.Bind(ctx, parms)
	if err != nil {
		return added, err
	}
	return added, s.Preview(ctx)
}

// BindPaths resolves free-form paths (parameters first, then nodes) and
// binds the result.
func (s *Session) BindPaths(ctx context.Context, paths []string) ([]host.Parm, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	parms, err := dnd.ResolvePaths(ctx, s.host, paths, s.sourceName())
	if err != nil {
		return nil, err
	}
	return s.Bind(ctx, parms)
}

// Drop binds the parameters carried by a drag-and-drop payload. Payloads
// in other formats are ignored.
func (s *Session) Drop(ctx context.Context, payload dnd.Payload) ([]host.Parm, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	if !dnd.Accepts(payload) {
		return nil, nil
	}
	parms, err := dnd.Resolve(ctx, s.host, payload, s.sourceName())
	if err != nil {
		return nil, err
	}
	return s.Bind(ctx, parms)
}

// Unbind restores the parameters at paths and removes them.
func (s *Session) Unbind(ctx context.Context, paths []string) error {
	if s.closed() {
		return ErrClosed
	}
	if err := s.targets.Unbind(ctx, paths); err != nil {
		return err
	}
	return s.Preview(ctx)
}

// SetSource makes the bound parameter at path the source parameter. Node
// drops match parameters by the source's name.
func (s *Session) SetSource(path string) error {
	if s.closed() {
		return ErrClosed
	}
	for _, t := range s.targets.Targets() {
		if t.Parm.Path() == path {
			s.source = t.Parm
			return nil
		}
	}
	return fmt.Errorf("%s: %w", path, ErrNotBound)
}

// Source returns the source parameter, or nil.
func (s *Session) Source() host.Parm {
	return s.source
}

func (s *Session) sourceName() string {
	if s.source == nil {
		return ""
	}
	return s.source.Name()
}

// Title describes the source parameter for a window header.
func (s *Session) Title() string {
	if s.source == nil {
		return "No current parameter"
	}
	return fmt.Sprintf("Current parameter [%s]", s.source.Name())
}

// Targets describes the bound parameters with their current values.
func (s *Session) Targets(ctx context.Context) ([]model.TargetInfo, error) {
	list := s.targets.Targets()
	out := make([]model.TargetInfo, 0, len(list))
	for _, t := range list {
		current, err := t.Parm.Value(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, model.TargetInfo{
			Path:    t.Parm.Path(),
			Name:    t.Parm.Name(),
			Initial: t.Initial,
			Current: current,
			Source:  s.source != nil && s.source.Path() == t.Parm.Path(),
		})
	}
	return out, nil
}

// Evaluate applies the current expression and bindings to input.
func (s *Session) Evaluate(input float64) (float64, error) {
	if s.progErr != nil {
		return 0, s.progErr
	}
	return s.prog.Eval(expr.Env(s.vars.Snapshot(), input))
}

// evaluator snapshots the bindings so one pass sees consistent values.
func (s *Session) evaluator() targets.Evaluator {
	prog, progErr := s.prog, s.progErr
	vars := s.vars.Snapshot()
	return targets.EvaluatorFunc(func(input float64) (float64, error) {
		if progErr != nil {
			return 0, progErr
		}
		return prog.Eval(expr.Env(vars, input))
	})
}

// Preview writes the evaluated values to the bound parameters outside the
// undo history. Evaluation failures leave the affected parameters alone and
// are reported through Status as well as the returned error.
func (s *Session) Preview(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	s.state = Previewing
	err := s.targets.Preview(ctx, s.evaluator())
	s.report(err)
	return err
}

// Accept commits the evaluated values as one undo step, stores the
// expression in the history of every bound parameter name and closes the
// session. A failing evaluation leaves the session open.
func (s *Session) Accept(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	if err := s.targets.Commit(ctx, s.evaluator()); err != nil {
		s.report(err)
		return err
	}
	s.state = Committed
	s.saveHistory()
	return nil
}

// Cancel restores every bound parameter outside the undo history and
// closes the session. When a restore fails the session stays open so Cancel
// can be retried.
func (s *Session) Cancel(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	if err := s.targets.Rollback(ctx); err != nil {
		return err
	}
	s.state = Cancelled
	return nil
}

func (s *Session) saveHistory() {
	if s.history == nil {
		return
	}
	entry := model.HistoryEntry{Expression: s.text, Variables: s.vars.Snapshot()}
	seen := map[string]struct{}{}
	for _, t := range s.targets.Targets() {
		name := t.Parm.Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		s.history.PutHistory(name, entry)
	}
}

// Presets returns the stored expression presets.
func (s *Session) Presets() []string {
	if s.history == nil {
		return nil
	}
	return s.history.Presets()
}

// SavePreset stores the current expression as a preset.
func (s *Session) SavePreset() bool {
	if s.history == nil {
		return false
	}
	added := s.history.AddPreset(s.text)
	if added {
		s.SetMessage(fmt.Sprintf("Saved preset %q", s.text))
	}
	return added
}

// DeletePreset removes a stored preset.
func (s *Session) DeletePreset(text string) bool {
	if s.history == nil {
		return false
	}
	return s.history.RemovePreset(text)
}

// ApplyPreset replaces the expression with a preset and creates bindings
// for its variables.
func (s *Session) ApplyPreset(ctx context.Context, text string) error {
	if err := s.SetExpression(ctx, text); err != nil && !IsEvalError(err) {
		return err
	}
	_, err := s.CreateVariables(ctx)
	return err
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Status returns the current status message.
func (s *Session) Status() Status {
	return s.status
}

// SetMessage shows an informational status.
func (s *Session) SetMessage(text string) {
	s.status = Status{Text: text, Severity: SeverityMessage}
}

// report updates the status after an evaluation pass: failures replace it,
// success clears a previous error.
func (s *Session) report(err error) {
	if err == nil {
		if s.status.Severity == SeverityError {
			s.status = Status{}
		}
		return
	}
	s.status = Status{Text: "Error: " + s.describe(err), Severity: SeverityError}
}

func (s *Session) describe(err error) string {
	var evalErr *expr.Error
	if errors.As(err, &evalErr) {
		return evalErr.Marked(s.text)
	}
	return err.Error()
}

func (s *Session) closed() bool {
	return s.state == Committed || s.state == Cancelled
}

// IsEvalError reports whether err is an expression evaluation failure
// rather than a host failure.
func IsEvalError(err error) bool {
	var evalErr *expr.Error
	return errors.As(err, &evalErr)
}
