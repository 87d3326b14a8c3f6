package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile matches every error returned by Compile.
	ErrCompile = errors.New("formula does not compile")
	// ErrEval matches every runtime fault raised while evaluating a Program.
	ErrEval = errors.New("formula evaluation failed")
)

// Runtime fault kinds carried by EvalError.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("integer overflow")
	ErrDomain         = errors.New("math domain error")
	ErrType           = errors.New("unsupported operand type")
)

// SyntaxError reports text that cannot be parsed as an expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrCompile }

// IllegalConstructError reports well-formed text that uses something outside
// the allow-listed grammar: unknown names, attribute access, subscripts,
// comparisons, statements and the like.
type IllegalConstructError struct {
	Pos       int
	Construct string
}

func (e *IllegalConstructError) Error() string {
	return fmt.Sprintf("illegal construct at offset %d: %s", e.Pos, e.Construct)
}

func (e *IllegalConstructError) Is(target error) bool { return target == ErrCompile }

// EvalError is a runtime fault for a particular time index.
type EvalError struct {
	T   int64
	Op  string
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval t=%d: %s: %v", e.T, e.Op, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

func (e *EvalError) Is(target error) bool { return target == ErrEval }
