package expr

// MarkError brackets the character at the zero-based offset:
// MarkError("a + * b", 4) returns "a + [*] b". An offset at or past the end
// of text marks an empty character after it; a negative offset marks an
// empty character before it.
func MarkError(text string, offset int) string {
	runes := []rune(text)
	switch {
	case offset < 0:
		return "[]" + text
	case offset >= len(runes):
		return text + "[]"
	}
	return string(runes[:offset]) + "[" + string(runes[offset]) + "]" + string(runes[offset+1:])
}
