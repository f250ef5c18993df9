package expr

type node interface {
	eval(env map[string]float64) (float64, error)
}

type numberNode struct {
	val float64
}

type nameNode struct {
	name string
	pos  int
}

type unaryNode struct {
	op string
	x  node
}

type binaryNode struct {
	op   string
	x, y node
	pos  int
}

type attrNode struct {
	x    node
	name string
	pos  int
}

type callNode struct {
	fn   node
	args []node
	pos  int
}

type parser struct {
	toks []token
	pos  int
}

// parse builds the syntax tree for text. Grammar, loosest first:
//
//	expr    = term { ("+" | "-") term }
//	term    = factor { ("*" | "/" | "//" | "%") factor }
//	factor  = ("+" | "-") factor | power
//	power   = postfix [ "**" factor ]
//	postfix = atom { "." ident | "(" [ expr { "," expr } ] ")" }
//	atom    = number | ident | "(" expr ")"
func parse(text string) (node, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, syntaxErrorf(p.peek().pos, "empty expression")
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, unexpected(tok)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isOp(ops ...string) bool {
	tok := p.peek()
	if tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.text, x: left, y: right, pos: op.pos}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "//", "%") {
		op := p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.text, x: left, y: right, pos: op.pos}
	}
	return left, nil
}

func (p *parser) parseFactor() (node, error) {
	if p.isOp("+", "-") {
		op := p.next()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op.text, x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	op := p.next()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op.text, x: base, y: exp, pos: op.pos}, nil
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.kind {
		case tokDot:
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, unexpected(name)
			}
			n = &attrNode{x: n, name: name.text, pos: tok.pos}
		case tokLParen:
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			n = &callNode{fn: n, args: args, pos: tok.pos}
		default:
			return n, nil
		}
	}
}

func (p *parser) parseArgs() ([]node, error) {
	var args []node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch tok := p.next(); tok.kind {
		case tokComma:
			if p.peek().kind == tokRParen {
				p.next()
				return args, nil
			}
		case tokRParen:
			return args, nil
		default:
			return nil, unexpected(tok)
		}
	}
}

func (p *parser) parseAtom() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &numberNode{val: tok.num}, nil
	case tokIdent:
		return &nameNode{name: tok.text, pos: tok.pos}, nil
	case tokLParen:
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, unexpected(closing)
		}
		return n, nil
	default:
		return nil, unexpected(tok)
	}
}

func unexpected(tok token) *Error {
	if tok.kind == tokEOF {
		return syntaxErrorf(tok.pos, "unexpected end of expression")
	}
	return syntaxErrorf(tok.pos, "invalid syntax at %q", tok.text)
}
