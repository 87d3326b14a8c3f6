package sandbox

import (
	"math"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokFloat
	tokName
	tokLParen
	tokRParen
	tokComma
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokDoubleSlash
	tokPercent
	tokDoubleStar
	tokCaret
	tokAmp
	tokPipe
	tokShl
	tokShr
)

var tokenNames = map[tokenKind]string{
	tokEOF:         "end of input",
	tokInt:         "integer",
	tokFloat:       "float",
	tokName:        "name",
	tokLParen:      "(",
	tokRParen:      ")",
	tokComma:       ",",
	tokPlus:        "+",
	tokMinus:       "-",
	tokStar:        "*",
	tokSlash:       "/",
	tokDoubleSlash: "//",
	tokPercent:     "%",
	tokDoubleStar:  "**",
	tokCaret:       "^",
	tokAmp:         "&",
	tokPipe:        "|",
	tokShl:         "<<",
	tokShr:         ">>",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	pos  int
	text string
	ival int64
	fval float64
}

// illegalCompound lists multi-character operators of constructs outside the
// grammar. They are matched before grammar punctuation so that "<<=" is an
// assignment and not a shift followed by "=".
var illegalCompound = []struct {
	text      string
	construct string
}{
	{"**=", "assignment"},
	{"//=", "assignment"},
	{"<<=", "assignment"},
	{">>=", "assignment"},
	{"==", "comparison"},
	{"!=", "comparison"},
	{"<=", "comparison"},
	{">=", "comparison"},
	{":=", "assignment"},
	{"+=", "assignment"},
	{"-=", "assignment"},
	{"*=", "assignment"},
	{"/=", "assignment"},
	{"%=", "assignment"},
	{"&=", "assignment"},
	{"|=", "assignment"},
	{"^=", "assignment"},
	{"->", "annotation"},
}

// illegalSingle maps single characters of disallowed constructs.
var illegalSingle = map[byte]string{
	'<':  "comparison",
	'>':  "comparison",
	'=':  "assignment",
	'.':  "attribute access",
	'[':  "subscript",
	']':  "subscript",
	'{':  "literal display",
	'}':  "literal display",
	':':  "slice or lambda",
	';':  "statement separator",
	'\n': "statement separator",
	'~':  "bitwise inversion",
	'!':  "negation",
	'@':  "decorator or matrix product",
	'\'': "string literal",
	'"':  "string literal",
	'`':  "backtick",
	'\\': "line continuation",
	'#':  "comment",
}

var punct = []struct {
	text string
	kind tokenKind
}{
	{"**", tokDoubleStar},
	{"//", tokDoubleSlash},
	{"<<", tokShl},
	{">>", tokShr},
	{"(", tokLParen},
	{")", tokRParen},
	{",", tokComma},
	{"+", tokPlus},
	{"-", tokMinus},
	{"*", tokStar},
	{"/", tokSlash},
	{"%", tokPercent},
	{"^", tokCaret},
	{"&", tokAmp},
	{"|", tokPipe},
}

// lex splits src into tokens. It stops at the first character that cannot
// start a token of the grammar.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
			continue
		case isNameStart(c):
			j := i + 1
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokName, pos: i, text: src[i:j]})
			i = j
			continue
		}

		for _, p := range illegalCompound {
			if strings.HasPrefix(src[i:], p.text) {
				return nil, &IllegalConstructError{Pos: i, Construct: p.construct}
			}
		}
		matched := false
		for _, p := range punct {
			if strings.HasPrefix(src[i:], p.text) {
				toks = append(toks, token{kind: p.kind, pos: i, text: p.text})
				i += len(p.text)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if construct, ok := illegalSingle[c]; ok {
			return nil, &IllegalConstructError{Pos: i, Construct: construct}
		}
		return nil, &SyntaxError{Pos: i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	if src[i] == '0' && i+1 < len(src) && strings.ContainsRune("xXoObB", rune(src[i+1])) {
		j := i + 2
		for j < len(src) && (isHexDigit(src[j]) || src[j] == '_') {
			j++
		}
		text := src[i:j]
		v, err := strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 0, 64)
		if err != nil {
			return token{}, 0, &SyntaxError{Pos: start, Msg: "invalid integer literal " + strconv.Quote(text)}
		}
		if j < len(src) && isNameChar(src[j]) {
			return token{}, 0, &SyntaxError{Pos: j, Msg: "invalid integer literal " + strconv.Quote(src[i:j+1])}
		}
		return token{kind: tokInt, pos: start, text: text, ival: v}, j - start, nil
	}

	j := i
	for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
		j++
	}
	isFloat := false
	if j < len(src) && src[j] == '.' {
		isFloat = true
		j++
		for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
			j++
		}
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			isFloat = true
			j = k
			for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
				j++
			}
		}
	}
	text := src[start:j]
	if j < len(src) && isNameChar(src[j]) {
		return token{}, 0, &SyntaxError{Pos: j, Msg: "invalid numeric literal " + strconv.Quote(src[start:j+1])}
	}
	if strings.HasSuffix(text, "_") || strings.Contains(text, "__") {
		return token{}, 0, &SyntaxError{Pos: start, Msg: "invalid digit separator in " + strconv.Quote(text)}
	}
	clean := strings.ReplaceAll(text, "_", "")

	if isFloat {
		v, err := strconv.ParseFloat(clean, 64)
		if err != nil || math.IsInf(v, 0) {
			return token{}, 0, &SyntaxError{Pos: start, Msg: "invalid float literal " + strconv.Quote(text)}
		}
		return token{kind: tokFloat, pos: start, text: text, fval: v}, j - start, nil
	}
	if len(clean) > 1 && clean[0] == '0' && strings.Trim(clean, "0") != "" {
		return token{}, 0, &SyntaxError{Pos: start, Msg: "leading zeros in decimal literal " + strconv.Quote(text)}
	}
	v, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return token{}, 0, &SyntaxError{Pos: start, Msg: "integer literal out of range " + strconv.Quote(text)}
	}
	return token{kind: tokInt, pos: start, text: text, ival: v}, j - start, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }
