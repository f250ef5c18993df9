package expr

import "strconv"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokDot
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lex splits text into tokens. Positions are rune offsets.
func lex(text string) ([]token, error) {
	runes := []rune(text)
	var toks []token
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case isDigit(r) || r == '.' && i+1 < len(runes) && isDigit(runes[i+1]):
			end := scanNumber(runes, i)
			lit := string(runes[i:end])
			n, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, syntaxErrorf(i, "invalid number %q", lit)
			}
			toks = append(toks, token{kind: tokNumber, text: lit, num: n, pos: i})
			i = end
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		case r == '*' || r == '/':
			if i+1 < len(runes) && runes[i+1] == r {
				toks = append(toks, token{kind: tokOp, text: string([]rune{r, r}), pos: i})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '+' || r == '-' || r == '%':
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '.':
			toks = append(toks, token{kind: tokDot, text: ".", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, syntaxErrorf(i, "invalid character %q", r)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

// scanNumber returns the end of the numeric literal starting at i:
// digits, an optional fraction and an optional exponent.
func scanNumber(runes []rune, i int) int {
	for i < len(runes) && isDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	}
	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j < len(runes) && isDigit(runes[j]) {
			for j < len(runes) && isDigit(runes[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
