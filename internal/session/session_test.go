package session

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/verte-zerg/exprparms/internal/dnd"
	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/history"
	"github.com/verte-zerg/exprparms/internal/host"
	"github.com/verte-zerg/exprparms/internal/model"
	"github.com/verte-zerg/exprparms/internal/store"
)

type fixture struct {
	st   *store.Store
	hist *history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "scene.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	scene := store.Scene{Nodes: []store.SceneNode{
		{Path: "/obj/a", Parms: []store.SceneParm{{Name: "tx", Value: 1}, {Name: "ty", Value: 5}}},
		{Path: "/obj/b", Parms: []store.SceneParm{{Name: "tx", Value: 2}, {Name: "rows", Type: "int", Value: 3}}},
	}}
	if err := st.Import(context.Background(), scene); err != nil {
		t.Fatalf("import: %v", err)
	}
	return &fixture{st: st, hist: history.Open(filepath.Join(dir, history.FileName))}
}

func (f *fixture) parms(t *testing.T, paths ...string) []host.Parm {
	t.Helper()
	out := make([]host.Parm, 0, len(paths))
	for _, path := range paths {
		p, err := f.st.Parm(context.Background(), path)
		if err != nil {
			t.Fatalf("resolve %s: %v", path, err)
		}
		out = append(out, p)
	}
	return out
}

func (f *fixture) value(t *testing.T, path string) float64 {
	t.Helper()
	v, err := f.parms(t, path)[0].Value(context.Background())
	if err != nil {
		t.Fatalf("value %s: %v", path, err)
	}
	return v
}

func TestShowCreatesVariablesAndPreviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Parms: f.parms(t, "/obj/a/tx", "/obj/b/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if s.Expression() != expr.DefaultExpression {
		t.Fatalf("expected default expression, got %q", s.Expression())
	}
	if s.Title() != "Current parameter [tx]" {
		t.Fatalf("unexpected title %q", s.Title())
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := s.SetVariable(ctx, "k", 3); err != nil {
		t.Fatalf("set variable: %v", err)
	}
	if got := f.value(t, "/obj/a/tx"); got != 3 {
		t.Fatalf("expected preview 3, got %v", got)
	}
	if got := f.value(t, "/obj/b/tx"); got != 6 {
		t.Fatalf("expected preview 6, got %v", got)
	}
	groups, err := f.st.ListUndo(ctx, 0)
	if err != nil {
		t.Fatalf("list undo: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("preview must not record undo entries: %+v", groups)
	}
	if s.State() != Previewing {
		t.Fatalf("expected previewing state, got %v", s.State())
	}
}

func TestAcceptThenUndoRestoresInOneStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v * a + b", Parms: f.parms(t, "/obj/a/tx", "/obj/b/tx", "/obj/b/rows")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := s.SetVariable(ctx, "a", 2.5); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := s.SetVariable(ctx, "b", 1); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if err := s.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.State() != Committed {
		t.Fatalf("expected committed state, got %v", s.State())
	}
	if got := f.value(t, "/obj/b/rows"); got != 8 {
		t.Fatalf("expected int parm truncated to 8, got %v", got)
	}

	groups, err := f.st.ListUndo(ctx, 0)
	if err != nil {
		t.Fatalf("list undo: %v", err)
	}
	if len(groups) != 1 || groups[0].Entries != 3 {
		t.Fatalf("expected a single grouped undo entry, got %+v", groups)
	}
	if _, _, err := f.st.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	for path, want := range map[string]float64{"/obj/a/tx": 1, "/obj/b/tx": 2, "/obj/b/rows": 3} {
		if got := f.value(t, path); got != want {
			t.Fatalf("%s: expected %v after undo, got %v", path, want, got)
		}
	}

	if err := s.SetExpression(ctx, "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after accept, got %v", err)
	}
}

func TestAcceptSavesHistoryPerParmName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v + k", Parms: f.parms(t, "/obj/a/tx", "/obj/b/tx", "/obj/a/ty")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := s.SetVariable(ctx, "k", 4); err != nil {
		t.Fatalf("set k: %v", err)
	}
	if err := s.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	want := model.HistoryEntry{Expression: "v + k", Variables: map[string]float64{"k": 4}}
	for _, name := range []string{"tx", "ty"} {
		got, ok := f.hist.History(name)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Fatalf("history for %s: %+v ok=%v", name, got, ok)
		}
	}

	next, err := New(ctx, f.st, f.hist, Options{Parms: f.parms(t, "/obj/b/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if next.Expression() != "v + k" {
		t.Fatalf("expected expression restored from history, got %q", next.Expression())
	}
	vars := next.Variables()
	if len(vars) != 1 || vars[0].Name != "k" || vars[0].Value != 4 {
		t.Fatalf("unexpected restored variables: %+v", vars)
	}
}

func TestCancelRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v * 10", Parms: f.parms(t, "/obj/a/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	if got := f.value(t, "/obj/a/tx"); got != 10 {
		t.Fatalf("expected preview 10, got %v", got)
	}
	if err := s.Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.value(t, "/obj/a/tx"); got != 1 {
		t.Fatalf("expected rollback to 1, got %v", got)
	}
	if s.State() != Cancelled {
		t.Fatalf("expected cancelled, got %v", s.State())
	}
	if _, ok := f.hist.History("tx"); ok {
		t.Fatalf("cancel must not write history")
	}
	groups, err := f.st.ListUndo(ctx, 0)
	if err != nil || len(groups) != 0 {
		t.Fatalf("cancel must not record undo entries: %+v %v", groups, err)
	}
}

func TestEvaluationErrorsReportStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, nil, Options{Expression: "v * 2", Parms: f.parms(t, "/obj/a/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}

	err = s.SetExpression(ctx, "v * k")
	if !errors.Is(err, expr.ErrUndefinedVariable) {
		t.Fatalf("expected undefined variable, got %v", err)
	}
	if st := s.Status(); st.Severity != SeverityError || st.Text != "Error: variable 'k' is not defined" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if got := f.value(t, "/obj/a/tx"); got != 2 {
		t.Fatalf("failed evaluation must keep the previous preview, got %v", got)
	}

	if err := s.SetExpression(ctx, "v + * 2"); !errors.Is(err, expr.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if st := s.Status(); st.Text != "Error: v + [*] 2" {
		t.Fatalf("unexpected status: %+v", st)
	}

	if err := s.SetExpression(ctx, "v + 1"); err != nil {
		t.Fatalf("set expression: %v", err)
	}
	if st := s.Status(); st.Severity != SeverityNone {
		t.Fatalf("expected error status cleared, got %+v", st)
	}

	if err := s.SetExpression(ctx, "v = 1"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected invalid expression, got %v", err)
	}
	if s.Expression() != "v + 1" {
		t.Fatalf("rejected text must not replace the expression, got %q", s.Expression())
	}

	if err := s.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestRemoveVariableSurfacesUndefinedName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, nil, Options{Expression: "v * k", Parms: f.parms(t, "/obj/a/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := s.RemoveVariable(ctx, "k"); !errors.Is(err, expr.ErrUndefinedVariable) {
		t.Fatalf("expected undefined variable after removal, got %v", err)
	}
	if len(s.Variables()) != 0 {
		t.Fatalf("expected no bindings, got %+v", s.Variables())
	}
	if err := s.Accept(ctx); !errors.Is(err, expr.ErrUndefinedVariable) {
		t.Fatalf("expected accept to fail, got %v", err)
	}
	if s.State() == Committed {
		t.Fatalf("failed accept must not close the session")
	}
	if got := f.value(t, "/obj/a/tx"); got != 1 {
		t.Fatalf("failed accept must leave the initial value, got %v", got)
	}
	if _, err := s.CreateVariables(ctx); err != nil {
		t.Fatalf("create variables: %v", err)
	}
	if err := s.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestDropAndUnbind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, nil, Options{Expression: "v + 100", Parms: f.parms(t, "/obj/a/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	added, err := s.Drop(ctx, dnd.Payload{dnd.NodePathMIME: "/obj/b"})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(added) != 1 || added[0].Path() != "/obj/b/tx" {
		t.Fatalf("expected node drop to match the source name, got %d parms", len(added))
	}
	if got := f.value(t, "/obj/b/tx"); got != 102 {
		t.Fatalf("expected dropped parm previewed, got %v", got)
	}
	if added, err := s.Drop(ctx, dnd.Payload{"text/plain": "/obj/b/rows"}); err != nil || len(added) != 0 {
		t.Fatalf("expected foreign payload to be ignored, added=%d err=%v", len(added), err)
	}

	if err := s.Unbind(ctx, []string{"/obj/b/tx"}); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if got := f.value(t, "/obj/b/tx"); got != 2 {
		t.Fatalf("expected unbound parm restored, got %v", got)
	}

	if err := s.SetSource("/obj/b/tx"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	if _, err := s.BindPaths(ctx, []string{"/obj/a/ty"}); err != nil {
		t.Fatalf("bind paths: %v", err)
	}
	if err := s.SetSource("/obj/a/ty"); err != nil {
		t.Fatalf("set source: %v", err)
	}
	infos, err := s.Targets(ctx)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if len(infos) != 2 || !infos[1].Source || infos[1].Initial != 5 || infos[1].Current != 105 {
		t.Fatalf("unexpected targets: %+v", infos)
	}
}

func TestPresets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v * q"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if !s.SavePreset() || s.SavePreset() {
		t.Fatalf("expected one preset to be saved")
	}
	if err := s.ApplyPreset(ctx, "v - m"); err != nil {
		t.Fatalf("apply preset: %v", err)
	}
	names := []string{}
	for _, v := range s.Variables() {
		names = append(names, v.Name)
	}
	if !reflect.DeepEqual(names, []string{"m"}) {
		t.Fatalf("unexpected variables after preset: %v", names)
	}
	if got := s.Presets(); !reflect.DeepEqual(got, []string{"v * q"}) {
		t.Fatalf("unexpected presets: %v", got)
	}
	if !s.DeletePreset("v * q") {
		t.Fatalf("expected preset removal")
	}
}

type failingParm struct {
	host.Parm
	fail bool
}

func (p *failingParm) SetValue(ctx context.Context, value float64) error {
	if p.fail {
		return errors.New("write refused")
	}
	return p.Parm.SetValue(ctx, value)
}

func TestCancelFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &failingParm{Parm: f.parms(t, "/obj/a/tx")[0]}
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v * 10", Parms: []host.Parm{p}})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	p.fail = true
	if err := s.Cancel(ctx); err == nil {
		t.Fatalf("expected cancel to report the failed restore")
	}
	if s.State() == Cancelled {
		t.Fatalf("failed cancel must leave the session open")
	}
	p.fail = false
	if err := s.Cancel(ctx); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if s.State() != Cancelled {
		t.Fatalf("expected cancelled, got %v", s.State())
	}
	if got := f.value(t, "/obj/a/tx"); got != 1 {
		t.Fatalf("expected rollback to 1, got %v", got)
	}
}

func TestSetVariableRejectsNonFinite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := New(ctx, f.st, f.hist, Options{Expression: "v * k", Parms: f.parms(t, "/obj/a/tx")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Show(ctx); err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, value := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		if err := s.SetVariable(ctx, "k", value); err == nil {
			t.Fatalf("expected %v to be rejected", value)
		}
	}
	if got := s.Variables()[0].Value; got != 1 {
		t.Fatalf("expected k unchanged, got %v", got)
	}
	if got := f.value(t, "/obj/a/tx"); got != 1 {
		t.Fatalf("expected preview unchanged, got %v", got)
	}
}
