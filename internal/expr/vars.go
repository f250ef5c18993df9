package expr

import "regexp"

var identPattern = regexp.MustCompile(`[a-zA-Z_]\w*`)

// Variables returns the distinct free variable names of text in order of
// first appearance, without the reserved name. Attribute names after a dot
// and exponent letters inside numeric literals are not variables. Text that
// does not tokenize falls back to a plain identifier pattern scan.
func Variables(text string) []string {
	var names []string
	seen := map[string]struct{}{ReservedName: {}}
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	toks, err := lex(text)
	if err != nil {
		for _, name := range identPattern.FindAllString(text, -1) {
			add(name)
		}
		return names
	}
	for i, tok := range toks {
		if tok.kind != tokIdent {
			continue
		}
		if i > 0 && toks[i-1].kind == tokDot {
			continue
		}
		add(tok.text)
	}
	return names
}
