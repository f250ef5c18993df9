// Package expr parses and evaluates the arithmetic expressions applied to
// parameters.
//
// An expression is written in the reserved input variable v plus any number
// of named variables, e.g. "v * a + b". Evaluation runs against an explicit
// environment only; no functions or ambient names are visible.
package expr

// ReservedName is the variable bound to each parameter's initial value.
const ReservedName = "v"

// DefaultExpression is the text a fresh dialog starts with.
const DefaultExpression = "v * k"

// ValidRune reports whether r may appear in an expression.
func ValidRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '(', ')', '.', ',', ' ', '/', '*', '-', '+', '_', '%':
		return true
	}
	return false
}

// Valid reports whether every rune of text is allowed in an expression.
func Valid(text string) bool {
	for _, r := range text {
		if !ValidRune(r) {
			return false
		}
	}
	return true
}

// Filter drops the runes that may not appear in an expression.
func Filter(runes []rune) []rune {
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if ValidRune(r) {
			out = append(out, r)
		}
	}
	return out
}
