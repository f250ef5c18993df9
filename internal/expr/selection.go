package expr

// SelectableRange returns the rune range a front-end should pre-select so
// the user can overwrite the expression while keeping a standalone leading
// or trailing v.
func SelectableRange(text string) (start, length int) {
	runes := []rune(text)
	n := len(runes)
	switch {
	case n == 0:
		return 0, 0
	case runes[0] == 'v' && (n == 1 || !isWordRune(runes[1])):
		return 1, n - 1
	case runes[n-1] == 'v' && !isWordRune(runes[n-2]):
		return 0, n - 1
	}
	return 0, n
}

func isWordRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
