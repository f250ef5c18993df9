package expr

import (
	"reflect"
	"testing"
)

func TestMarkError(t *testing.T) {
	cases := []struct {
		text   string
		offset int
		want   string
	}{
		{"a + * b", 4, "a + [*] b"},
		{"", 0, "[]"},
		{"abc", 0, "[a]bc"},
		{"abc", 3, "abc[]"},
		{"abc", 10, "abc[]"},
		{"abc", -1, "[]abc"},
	}
	for _, tc := range cases {
		if got := MarkError(tc.text, tc.offset); got != tc.want {
			t.Fatalf("MarkError(%q, %d): expected %q, got %q", tc.text, tc.offset, tc.want, got)
		}
	}
}

func TestSelectableRange(t *testing.T) {
	cases := []struct {
		text   string
		start  int
		length int
	}{
		{"v * k", 1, 4},
		{"k * v", 0, 4},
		{"a * b", 0, 5},
		{"v", 1, 0},
		{"", 0, 0},
		{"value * 2", 0, 9},
		{"2 * xv", 0, 6},
	}
	for _, tc := range cases {
		start, length := SelectableRange(tc.text)
		if start != tc.start || length != tc.length {
			t.Fatalf("SelectableRange(%q): expected (%d, %d), got (%d, %d)", tc.text, tc.start, tc.length, start, length)
		}
	}
}

func TestVariables(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"v * a + b", []string{"a", "b"}},
		{"b * a + b * v", []string{"b", "a"}},
		{"v * 1e5", nil},
		{"v.real + k", []string{"k"}},
		{"_x1 + y_2", []string{"_x1", "y_2"}},
		{"v $ a", []string{"a"}},
	}
	for _, tc := range cases {
		got := Variables(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Variables(%q): expected %v, got %v", tc.text, tc.want, got)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("(v * a_1 + .5) / 2 % 3 - b") {
		t.Fatalf("expected expression to be valid")
	}
	for _, text := range []string{"v = 2", "v; 1", "v[0]", "'a'", "v ^ 2", "é"} {
		if Valid(text) {
			t.Fatalf("expected %q to be rejected", text)
		}
	}
	if got := string(Filter([]rune("v*[2]"))); got != "v*2" {
		t.Fatalf("unexpected filtered text %q", got)
	}
}
