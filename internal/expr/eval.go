package expr

import "math"

// Program is a parsed expression ready for repeated evaluation.
type Program struct {
	text string
	root node
}

// Compile parses text. The returned error is an *Error of kind SyntaxError.
func Compile(text string) (*Program, error) {
	root, err := parse(text)
	if err != nil {
		return nil, err
	}
	return &Program{text: text, root: root}, nil
}

// Text returns the source the program was compiled from.
func (p *Program) Text() string {
	return p.text
}

// Eval evaluates the program against env. Only names present in env are
// visible. env is not modified.
func (p *Program) Eval(env map[string]float64) (float64, error) {
	val, err := p.root.eval(env)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, evalErrorf("result is not a finite number")
	}
	return val, nil
}

// Evaluate compiles text and evaluates it with input bound to the reserved
// name on top of bindings.
func Evaluate(text string, bindings map[string]float64, input float64) (float64, error) {
	prog, err := Compile(text)
	if err != nil {
		return 0, err
	}
	return prog.Eval(Env(bindings, input))
}

// Env returns a fresh environment holding bindings plus the reserved input.
func Env(bindings map[string]float64, input float64) map[string]float64 {
	env := make(map[string]float64, len(bindings)+1)
	for name, val := range bindings {
		env[name] = val
	}
	env[ReservedName] = input
	return env
}

func (n *numberNode) eval(map[string]float64) (float64, error) {
	return n.val, nil
}

func (n *nameNode) eval(env map[string]float64) (float64, error) {
	val, ok := env[n.name]
	if !ok {
		return 0, undefinedVariable(n.name)
	}
	return val, nil
}

func (n *unaryNode) eval(env map[string]float64) (float64, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return 0, err
	}
	if n.op == "-" {
		return -x, nil
	}
	return x, nil
}

func (n *attrNode) eval(env map[string]float64) (float64, error) {
	if _, err := n.x.eval(env); err != nil {
		return 0, err
	}
	return 0, evalErrorf("'float' object has no attribute '%s'", n.name)
}

func (n *callNode) eval(env map[string]float64) (float64, error) {
	if _, err := n.fn.eval(env); err != nil {
		return 0, err
	}
	for _, arg := range n.args {
		if _, err := arg.eval(env); err != nil {
			return 0, err
		}
	}
	return 0, evalErrorf("'float' object is not callable")
}

func (n *binaryNode) eval(env map[string]float64) (float64, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return 0, err
	}
	y, err := n.y.eval(env)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return 0, divisionByZero("float division by zero")
		}
		return x / y, nil
	case "//":
		if y == 0 {
			return 0, divisionByZero("float divmod()")
		}
		return floorDiv(x, y), nil
	case "%":
		if y == 0 {
			return 0, divisionByZero("float modulo")
		}
		return floorMod(x, y), nil
	case "**":
		return power(x, y)
	}
	return 0, evalErrorf("unsupported operator %q", n.op)
}

// floorMod returns x mod y with the sign of y.
// floorDiv derives the quotient from the remainder so that
// x == y*floorDiv(x, y) + floorMod(x, y) holds for non-integral operands.
func floorDiv(x, y float64) float64 {
	mod := math.Mod(x, y)
	div := (x - mod) / y
	if mod != 0 && (y < 0) != (mod < 0) {
		div--
	}
	if div == 0 {
		return math.Copysign(0, x/y)
	}
	fd := math.Floor(div)
	if div-fd > 0.5 {
		fd++
	}
	return fd
}

func floorMod(x, y float64) float64 {
	r := math.Mod(x, y)
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r
}

func power(x, y float64) (float64, error) {
	if x == 0 && y < 0 {
		return 0, divisionByZero("0.0 cannot be raised to a negative power")
	}
	if x < 0 && y != math.Trunc(y) {
		return 0, evalErrorf("negative number cannot be raised to a fractional power")
	}
	val := math.Pow(x, y)
	if math.IsInf(val, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
		return 0, evalErrorf("numeric result out of range")
	}
	return val, nil
}
