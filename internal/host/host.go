// Package host describes the scene collaborator the dialog drives: nodes,
// their parameters and the undo system.
package host

import (
	"context"
	"errors"
)

// ParmType is the value type of a parameter.
type ParmType string

// Parameter types.
const (
	ParmInt    ParmType = "int"
	ParmFloat  ParmType = "float"
	ParmString ParmType = "string"
	ParmToggle ParmType = "toggle"
	ParmMenu   ParmType = "menu"
)

// Numeric reports whether an expression can drive parameters of type t.
func (t ParmType) Numeric() bool {
	return t == ParmInt || t == ParmFloat
}

// Valid reports whether t is a known parameter type.
func (t ParmType) Valid() bool {
	switch t {
	case ParmInt, ParmFloat, ParmString, ParmToggle, ParmMenu:
		return true
	}
	return false
}

// ErrNotFound is returned when a path does not resolve.
var ErrNotFound = errors.New("not found")

// Parm is a handle to a node parameter.
type Parm interface {
	// Path is the full parameter path, e.g. /obj/geo1/tx. Paths identify
	// parameters.
	Path() string
	Name() string
	NodePath() string
	Type() ParmType
	Locked() bool
	Value(ctx context.Context) (float64, error)
	// SetValue writes the parameter. Whether the write is recorded on the
	// undo stack depends on the currently open undo brackets.
	SetValue(ctx context.Context, value float64) error
}

// Node is a handle to a scene node.
type Node interface {
	Path() string
	Parms(ctx context.Context) ([]Parm, error)
}

// Resolver looks up scene objects by path.
type Resolver interface {
	Parm(ctx context.Context, path string) (Parm, error)
	Node(ctx context.Context, path string) (Node, error)
}

// Undoer exposes the bracket calls of the host undo system. Brackets nest
// and every Begin must be paired with its End.
type Undoer interface {
	// BeginSuppressed starts a scope whose writes are not recorded.
	BeginSuppressed()
	EndSuppressed()
	// BeginGroup starts a scope whose writes form one undo entry.
	BeginGroup(label string)
	EndGroup(ctx context.Context) error
}

// Host is the full collaborator surface.
type Host interface {
	Resolver
	Undoer
}

// WithoutUndo runs fn with undo recording suppressed. The scope is closed on
// every return path, panics included.
func WithoutUndo(u Undoer, fn func() error) error {
	u.BeginSuppressed()
	defer u.EndSuppressed()
	return fn()
}

// UndoGroup runs fn inside a single undo group labelled label. The group is
// closed on every return path; an error from fn takes precedence over one
// from closing the group.
func UndoGroup(ctx context.Context, u Undoer, label string, fn func() error) (err error) {
	u.BeginGroup(label)
	defer func() {
		if cerr := u.EndGroup(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}
