// Package sandbox compiles bytebeat formulas into pure integer functions of
// the time index t.
//
// Formulas come from an untrusted generator, so nothing is ever handed to a
// general evaluator: the text is parsed against a small expression grammar
// (numbers, t, a few constants, arithmetic and bitwise operators, unary
// minus and whitelisted math functions) and every name and call is resolved
// at compile time. A Program that compiles can only do arithmetic.
package sandbox

import (
	"fmt"
	"strings"
)

// TimeVar is the name of the free variable.
const TimeVar = "t"

// node evaluates a subtree for a whole batch of time indices at once,
// writing one value per index into dst.
type node interface {
	eval(fr *frame, ts []int64, dst []num) error
}

// frame holds the scratch buffers of one batch evaluation. Each node that
// needs an operand buffer owns one slot.
type frame struct {
	bufs [][]num
}

func newFrame(slots, n int) *frame {
	backing := make([]num, slots*n)
	bufs := make([][]num, slots)
	for i := range bufs {
		bufs[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}
	return &frame{bufs: bufs}
}

// Program is a compiled formula. It holds no mutable state and is safe for
// concurrent use.
type Program struct {
	src   string
	root  node
	slots int
}

// Compile parses and validates src. It returns a *SyntaxError for malformed
// text and an *IllegalConstructError for anything outside the grammar; both
// match ErrCompile.
func Compile(src string) (*Program, error) {
	tree, err := parse(src)
	if err != nil {
		return nil, err
	}
	c := &compiler{}
	root, err := c.compile(tree)
	if err != nil {
		return nil, err
	}
	return &Program{src: strings.TrimSpace(src), root: root, slots: c.slots}, nil
}

// Source returns the formula text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Eval evaluates the program at a single time index.
func (p *Program) Eval(t int64) (int64, error) {
	out := make([]int64, 1)
	if err := p.EvalBatch([]int64{t}, out); err != nil {
		return 0, err
	}
	return out[0], nil
}

// EvalBatch evaluates the program for every index in ts, writing the
// integer results to out. Any fault aborts the batch with an *EvalError.
func (p *Program) EvalBatch(ts []int64, out []int64) error {
	if len(out) != len(ts) {
		return fmt.Errorf("output length %d does not match input length %d", len(out), len(ts))
	}
	if len(ts) == 0 {
		return nil
	}
	fr := newFrame(p.slots, len(ts))
	vals := make([]num, len(ts))
	if err := p.root.eval(fr, ts, vals); err != nil {
		return err
	}
	for k, v := range vals {
		i, err := v.toInt()
		if err != nil {
			return &EvalError{T: ts[k], Op: "result", Err: err}
		}
		out[k] = i
	}
	return nil
}

type compiler struct {
	slots int
}

func (c *compiler) slot() int {
	s := c.slots
	c.slots++
	return s
}

func (c *compiler) compile(e expr) (node, error) {
	switch e := e.(type) {
	case *numberLit:
		return constNode{val: e.val}, nil
	case *nameRef:
		if e.name == TimeVar {
			return timeNode{}, nil
		}
		if v, ok := constants[e.name]; ok {
			return constNode{val: v}, nil
		}
		if _, ok := functions[e.name]; ok {
			return nil, &IllegalConstructError{Pos: e.at, Construct: fmt.Sprintf("function %q used as a value", e.name)}
		}
		return nil, &IllegalConstructError{Pos: e.at, Construct: fmt.Sprintf("unregistered name %q", e.name)}
	case *negate:
		x, err := c.compile(e.x)
		if err != nil {
			return nil, err
		}
		if k, ok := x.(constNode); ok {
			return constNode{val: negateNum(k.val)}, nil
		}
		return negNode{x: x}, nil
	case *binaryExpr:
		l, err := c.compile(e.l)
		if err != nil {
			return nil, err
		}
		r, err := c.compile(e.r)
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: e.op, l: l, r: r, slot: c.slot()}, nil
	case *callExpr:
		fn, ok := functions[e.name]
		if !ok {
			if _, isConst := constants[e.name]; isConst || e.name == TimeVar {
				return nil, &IllegalConstructError{Pos: e.at, Construct: fmt.Sprintf("call of non-function %q", e.name)}
			}
			return nil, &IllegalConstructError{Pos: e.at, Construct: fmt.Sprintf("call of unregistered function %q", e.name)}
		}
		if len(e.args) < fn.minArgs || len(e.args) > fn.maxArgs {
			return nil, &IllegalConstructError{Pos: e.at, Construct: fmt.Sprintf("%s() takes %s, got %d", fn.name, arity(fn), len(e.args))}
		}
		n := &callNode{fn: fn}
		for _, a := range e.args {
			arg, err := c.compile(a)
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, arg)
			n.slots = append(n.slots, c.slot())
		}
		return n, nil
	}
	return nil, &IllegalConstructError{Pos: e.offset(), Construct: fmt.Sprintf("%T", e)}
}

func arity(fn *function) string {
	if fn.minArgs == fn.maxArgs {
		if fn.minArgs == 1 {
			return "1 argument"
		}
		return fmt.Sprintf("%d arguments", fn.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", fn.minArgs, fn.maxArgs)
}

type timeNode struct{}

func (timeNode) eval(_ *frame, ts []int64, dst []num) error {
	for k, t := range ts {
		dst[k] = intNum(t)
	}
	return nil
}

type constNode struct {
	val num
}

func (n constNode) eval(_ *frame, _ []int64, dst []num) error {
	for k := range dst {
		dst[k] = n.val
	}
	return nil
}

type negNode struct {
	x node
}

func (n negNode) eval(fr *frame, ts []int64, dst []num) error {
	if err := n.x.eval(fr, ts, dst); err != nil {
		return err
	}
	for k := range dst {
		dst[k] = negateNum(dst[k])
	}
	return nil
}

type binaryNode struct {
	op   tokenKind
	l, r node
	slot int
}

func (n *binaryNode) eval(fr *frame, ts []int64, dst []num) error {
	if err := n.l.eval(fr, ts, dst); err != nil {
		return err
	}
	rhs := fr.bufs[n.slot][:len(ts)]
	if err := n.r.eval(fr, ts, rhs); err != nil {
		return err
	}
	for k := range dst {
		a, b := dst[k], rhs[k]
		// common int64 cases stay out of binaryOp
		if !a.isFloat && !b.isFloat && a.b == nil && b.b == nil {
			switch n.op {
			case tokPlus:
				if r, ok := addChecked(a.i, b.i); ok {
					dst[k] = intNum(r)
					continue
				}
			case tokMinus:
				if r, ok := subChecked(a.i, b.i); ok {
					dst[k] = intNum(r)
					continue
				}
			case tokStar:
				if r, ok := mulChecked(a.i, b.i); ok {
					dst[k] = intNum(r)
					continue
				}
			case tokAmp:
				dst[k] = intNum(a.i & b.i)
				continue
			case tokPipe:
				dst[k] = intNum(a.i | b.i)
				continue
			case tokCaret:
				dst[k] = intNum(a.i ^ b.i)
				continue
			case tokShr:
				if b.i >= 0 && b.i <= 63 {
					dst[k] = intNum(a.i >> uint(b.i))
					continue
				}
			}
		}
		v, err := binaryOp(n.op, a, b)
		if err != nil {
			return &EvalError{T: ts[k], Op: n.op.String(), Err: err}
		}
		dst[k] = v
	}
	return nil
}

type callNode struct {
	fn    *function
	args  []node
	slots []int
}

func (n *callNode) eval(fr *frame, ts []int64, dst []num) error {
	bufs := make([][]num, len(n.args))
	for i, a := range n.args {
		bufs[i] = fr.bufs[n.slots[i]][:len(ts)]
		if err := a.eval(fr, ts, bufs[i]); err != nil {
			return err
		}
	}
	args := make([]num, len(n.args))
	for k := range dst {
		for i := range args {
			args[i] = bufs[i][k]
		}
		v, err := n.fn.apply(args)
		if err != nil {
			return &EvalError{T: ts[k], Op: n.fn.name + "()", Err: err}
		}
		dst[k] = v
	}
	return nil
}
