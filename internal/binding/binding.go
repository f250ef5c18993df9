// Package binding keeps the values of the named variables an expression
// uses.
package binding

import "github.com/verte-zerg/exprparms/internal/expr"

// DefaultValue is assigned to a newly discovered variable with no stored
// value.
const DefaultValue = 1.0

// Variable is a named value together with the value it was created with.
type Variable struct {
	Name    string
	Value   float64
	Default float64
}

// Table maps variable names to values. Names keep their insertion order for
// display; evaluation ignores it.
type Table struct {
	order []string
	vars  map[string]*Variable
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{vars: map[string]*Variable{}}
}

// Discover ensures a binding for every free variable of text and returns the
// names it created. Existing bindings are left untouched; values found in
// defaults are used for new bindings.
func (t *Table) Discover(text string, defaults map[string]float64) []string {
	var created []string
	for _, name := range expr.Variables(text) {
		value, ok := defaults[name]
		if !ok {
			value = DefaultValue
		}
		if t.Ensure(name, value) {
			created = append(created, name)
		}
	}
	return created
}

// Ensure creates the binding name = value unless name is already bound. It
// reports whether a binding was created.
func (t *Table) Ensure(name string, value float64) bool {
	if name == "" || name == expr.ReservedName {
		return false
	}
	if _, ok := t.vars[name]; ok {
		return false
	}
	t.vars[name] = &Variable{Name: name, Value: value, Default: value}
	t.order = append(t.order, name)
	return true
}

// Remove deletes the binding for name. It reports whether one existed.
func (t *Table) Remove(name string) bool {
	if _, ok := t.vars[name]; !ok {
		return false
	}
	delete(t.vars, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Set updates the value of an existing binding.
func (t *Table) Set(name string, value float64) bool {
	v, ok := t.vars[name]
	if !ok {
		return false
	}
	v.Value = value
	return true
}

// Reset restores a binding to the value it was created with.
func (t *Table) Reset(name string) bool {
	v, ok := t.vars[name]
	if !ok {
		return false
	}
	v.Value = v.Default
	return true
}

// Get returns the value bound to name.
func (t *Table) Get(name string) (float64, bool) {
	v, ok := t.vars[name]
	if !ok {
		return 0, false
	}
	return v.Value, true
}

// Has reports whether name is bound.
func (t *Table) Has(name string) bool {
	_, ok := t.vars[name]
	return ok
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	return len(t.order)
}

// Names returns the bound names in display order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Variables returns copies of the bindings in display order.
func (t *Table) Variables() []Variable {
	out := make([]Variable, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.vars[name])
	}
	return out
}

// Snapshot returns the current values keyed by name.
func (t *Table) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.vars))
	for name, v := range t.vars {
		out[name] = v.Value
	}
	return out
}

// Clear removes every binding.
func (t *Table) Clear() {
	t.order = nil
	t.vars = map[string]*Variable{}
}
