package expr

import "fmt"

// Kind classifies an evaluation failure.
type Kind int

const (
	// OtherEvaluationError covers every failure without a dedicated kind:
	// non-finite results, attribute access, calling a number.
	OtherEvaluationError Kind = iota
	// UndefinedVariable means the expression references an unbound name.
	UndefinedVariable
	// DivisionByZero is raised by /, //, % and ** with a zero divisor.
	DivisionByZero
	// SyntaxError means the text does not parse.
	SyntaxError
)

func (k Kind) String() string {
	switch k {
	case UndefinedVariable:
		return "undefined variable"
	case DivisionByZero:
		return "division by zero"
	case SyntaxError:
		return "syntax error"
	default:
		return "evaluation error"
	}
}

// Error is returned by Compile and Eval.
type Error struct {
	Kind Kind
	Msg  string
	// Offset is the zero-based index of the offending character for
	// syntax errors and -1 otherwise.
	Offset int
}

// Sentinels for errors.Is.
var (
	ErrUndefinedVariable = &Error{Kind: UndefinedVariable}
	ErrDivisionByZero    = &Error{Kind: DivisionByZero}
	ErrSyntax            = &Error{Kind: SyntaxError}
	ErrEvaluation        = &Error{Kind: OtherEvaluationError}
)

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// Marked renders the error against the expression text it came from.
// Syntax errors point at the offending character; other kinds return the
// plain message.
func (e *Error) Marked(text string) string {
	if e.Kind != SyntaxError {
		return e.Error()
	}
	return MarkError(text, e.Offset)
}

func syntaxErrorf(offset int, format string, args ...any) *Error {
	return &Error{Kind: SyntaxError, Msg: fmt.Sprintf(format, args...), Offset: offset}
}

func undefinedVariable(name string) *Error {
	return &Error{Kind: UndefinedVariable, Msg: fmt.Sprintf("variable '%s' is not defined", name), Offset: -1}
}

func divisionByZero(msg string) *Error {
	return &Error{Kind: DivisionByZero, Msg: msg, Offset: -1}
}

func evalErrorf(format string, args ...any) *Error {
	return &Error{Kind: OtherEvaluationError, Msg: fmt.Sprintf(format, args...), Offset: -1}
}
