package binding

import (
	"reflect"
	"testing"
)

func TestDiscoverIsAdditive(t *testing.T) {
	table := NewTable()
	created := table.Discover("v * a + b", nil)
	if !reflect.DeepEqual(created, []string{"a", "b"}) {
		t.Fatalf("unexpected created names: %v", created)
	}
	table.Set("a", 4)

	created = table.Discover("v * a + b + c", nil)
	if !reflect.DeepEqual(created, []string{"c"}) {
		t.Fatalf("expected only c to be created, got %v", created)
	}
	if got, _ := table.Get("a"); got != 4 {
		t.Fatalf("rediscovery overwrote a: %v", got)
	}
	if !reflect.DeepEqual(table.Names(), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected display order: %v", table.Names())
	}
}

func TestDiscoverUsesDefaults(t *testing.T) {
	table := NewTable()
	table.Discover("v * k + m", map[string]float64{"k": 2.5})
	if got, _ := table.Get("k"); got != 2.5 {
		t.Fatalf("expected stored default 2.5, got %v", got)
	}
	if got, _ := table.Get("m"); got != DefaultValue {
		t.Fatalf("expected fallback default, got %v", got)
	}
}

func TestRemoveThenRediscoverDoesNotResurrectValue(t *testing.T) {
	table := NewTable()
	table.Discover("v * a", nil)
	table.Set("a", 7)
	if !table.Remove("a") {
		t.Fatalf("expected a to be removed")
	}
	if table.Has("a") {
		t.Fatalf("a still bound after removal")
	}
	if _, ok := table.Snapshot()["a"]; ok {
		t.Fatalf("snapshot still contains a")
	}
	table.Discover("v * a", nil)
	if got, _ := table.Get("a"); got != DefaultValue {
		t.Fatalf("expected fresh default after rediscovery, got %v", got)
	}
}

func TestStaleBindingsLinger(t *testing.T) {
	table := NewTable()
	table.Discover("v * a", nil)
	table.Discover("v * b", nil)
	if !table.Has("a") || !table.Has("b") {
		t.Fatalf("expected both bindings, got %v", table.Names())
	}
}

func TestReservedNameNeverBound(t *testing.T) {
	table := NewTable()
	if table.Ensure("v", 3) {
		t.Fatalf("reserved name must not be bound")
	}
	table.Discover("v", nil)
	if table.Len() != 0 {
		t.Fatalf("expected no bindings, got %v", table.Names())
	}
}

func TestResetRestoresCreationValue(t *testing.T) {
	table := NewTable()
	table.Ensure("k", 2)
	table.Set("k", 9)
	table.Reset("k")
	if got, _ := table.Get("k"); got != 2 {
		t.Fatalf("expected reset to 2, got %v", got)
	}
	if table.Set("missing", 1) || table.Reset("missing") {
		t.Fatalf("expected operations on missing names to fail")
	}
}
