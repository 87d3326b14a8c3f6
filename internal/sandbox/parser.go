package sandbox

import "fmt"

// expr is a node of the parsed syntax tree.
type expr interface {
	offset() int
}

type numberLit struct {
	at  int
	val num
}

type nameRef struct {
	at   int
	name string
}

type negate struct {
	at int
	x  expr
}

type binaryExpr struct {
	at   int
	op   tokenKind
	l, r expr
}

type callExpr struct {
	at   int
	name string
	args []expr
}

func (n *numberLit) offset() int  { return n.at }
func (n *nameRef) offset() int    { return n.at }
func (n *negate) offset() int     { return n.at }
func (n *binaryExpr) offset() int { return n.at }
func (n *callExpr) offset() int   { return n.at }

// binaryLevels lists binary operators from the loosest to the tightest
// binding level. The power operator is handled separately because it is
// right associative and binds tighter than unary minus on its left.
var binaryLevels = [][]tokenKind{
	{tokPipe},
	{tokCaret},
	{tokAmp},
	{tokShl, tokShr},
	{tokPlus, tokMinus},
	{tokStar, tokSlash, tokDoubleSlash, tokPercent},
}

// keywords cannot appear anywhere in a formula. They are reported as
// illegal constructs rather than plain syntax errors.
var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true, "None": true, "True": true, "False": true,
}

// maxDepth bounds nesting so that hostile input cannot exhaust the stack.
const maxDepth = 200

type parser struct {
	toks  []token
	pos   int
	depth int
}

// parse turns src into a syntax tree. Only the expression grammar is
// accepted; anything else fails here, before any evaluation.
func parse(src string) (expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	e, err := p.parseLevel(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) enter(at int) error {
	p.depth++
	if p.depth > maxDepth {
		return &SyntaxError{Pos: at, Msg: "expression nested too deeply"}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) unexpected(tok token) error {
	if tok.kind == tokName && keywords[tok.text] {
		return &IllegalConstructError{Pos: tok.pos, Construct: fmt.Sprintf("keyword %q", tok.text)}
	}
	if tok.kind == tokEOF {
		return &SyntaxError{Pos: tok.pos, Msg: "unexpected end of input"}
	}
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s %q", tok.kind, tok.text)}
}

func (p *parser) parseLevel(level int) (expr, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	l, err := p.parseLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if !containsKind(binaryLevels[level], tok.kind) {
			return l, nil
		}
		p.next()
		r, err := p.parseLevel(level + 1)
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{at: tok.pos, op: tok.kind, l: l, r: r}
	}
}

func (p *parser) parseUnary() (expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokMinus:
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negate{at: tok.pos, x: x}, nil
	case tokPlus:
		return nil, &IllegalConstructError{Pos: tok.pos, Construct: "unary plus"}
	}
	return p.parsePower()
}

func (p *parser) parsePower() (expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokDoubleStar {
		return base, nil
	}
	if err := p.enter(tok.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryExpr{at: tok.pos, op: tokDoubleStar, l: base, r: exp}, nil
}

func (p *parser) parsePrimary() (expr, error) {
	tok := p.next()
	var e expr
	switch tok.kind {
	case tokInt:
		e = &numberLit{at: tok.pos, val: intNum(tok.ival)}
	case tokFloat:
		e = &numberLit{at: tok.pos, val: floatNum(tok.fval)}
	case tokName:
		if keywords[tok.text] {
			return nil, p.unexpected(tok)
		}
		if p.peek().kind == tokLParen {
			call, err := p.parseCall(tok)
			if err != nil {
				return nil, err
			}
			e = call
		} else {
			e = &nameRef{at: tok.pos, name: tok.text}
		}
	case tokLParen:
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		if p.peek().kind == tokRParen {
			p.leave()
			return nil, &IllegalConstructError{Pos: tok.pos, Construct: "tuple"}
		}
		inner, err := p.parseLevel(0)
		p.leave()
		if err != nil {
			return nil, err
		}
		switch closing := p.next(); closing.kind {
		case tokRParen:
		case tokComma:
			return nil, &IllegalConstructError{Pos: closing.pos, Construct: "tuple"}
		default:
			return nil, p.unexpected(closing)
		}
		e = inner
	default:
		return nil, p.unexpected(tok)
	}

	// A call on anything but a bare function name, e.g. "(t)(2)", is not
	// part of the grammar.
	if tok := p.peek(); tok.kind == tokLParen {
		return nil, &IllegalConstructError{Pos: tok.pos, Construct: "call of a non-function value"}
	}
	return e, nil
}

func (p *parser) parseCall(name token) (expr, error) {
	if err := p.enter(name.pos); err != nil {
		return nil, err
	}
	defer p.leave()

	p.next() // (
	call := &callExpr{at: name.pos, name: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseLevel(0)
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		switch tok := p.next(); tok.kind {
		case tokComma:
			if p.peek().kind == tokRParen {
				p.next()
				return call, nil
			}
		case tokRParen:
			return call, nil
		default:
			return nil, p.unexpected(tok)
		}
	}
}

func containsKind(kinds []tokenKind, k tokenKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
