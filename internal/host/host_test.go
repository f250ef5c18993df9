package host

import (
	"context"
	"errors"
	"testing"
)

type recordingUndoer struct {
	calls []string
}

func (r *recordingUndoer) BeginSuppressed() { r.calls = append(r.calls, "begin-suppressed") }
func (r *recordingUndoer) EndSuppressed()   { r.calls = append(r.calls, "end-suppressed") }
func (r *recordingUndoer) BeginGroup(label string) {
	r.calls = append(r.calls, "begin-group:"+label)
}
func (r *recordingUndoer) EndGroup(context.Context) error {
	r.calls = append(r.calls, "end-group")
	return nil
}

func TestWithoutUndoClosesOnError(t *testing.T) {
	u := &recordingUndoer{}
	boom := errors.New("boom")
	err := WithoutUndo(u, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(u.calls) != 2 || u.calls[1] != "end-suppressed" {
		t.Fatalf("unexpected calls: %v", u.calls)
	}
}

func TestUndoGroupClosesOnPanic(t *testing.T) {
	u := &recordingUndoer{}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic")
			}
		}()
		_ = UndoGroup(context.Background(), u, "apply", func() error { panic("boom") })
	}()
	if len(u.calls) != 2 || u.calls[0] != "begin-group:apply" || u.calls[1] != "end-group" {
		t.Fatalf("unexpected calls: %v", u.calls)
	}
}

func TestParmTypeNumeric(t *testing.T) {
	if !ParmInt.Numeric() || !ParmFloat.Numeric() {
		t.Fatalf("expected int and float to be numeric")
	}
	for _, pt := range []ParmType{ParmString, ParmToggle, ParmMenu, ParmType("ramp")} {
		if pt.Numeric() {
			t.Fatalf("expected %q to be non-numeric", pt)
		}
	}
	if ParmType("ramp").Valid() {
		t.Fatalf("expected unknown type to be invalid")
	}
}
