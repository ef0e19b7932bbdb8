package modal

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SyntaxError reports malformed formula text.
type SyntaxError struct {
	Input string
	Pos   int    // byte offset of the offending token
	Token string // offending token text; empty at end of input
	Msg   string
}

func (e *SyntaxError) Error() string {
	near := fmt.Sprintf("%q", e.Token)
	if e.Token == "" {
		near = "end of input"
	}
	return fmt.Sprintf("syntax error at offset %d near %s: %s", e.Pos, near, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNot
	tokBox
	tokDiamond
	tokAnd
	tokOr
	tokImplies
	tokIff
	tokLParen
	tokRParen
)

var tokenNames = map[tokenKind]string{
	tokEOF:     "end of input",
	tokIdent:   "identifier",
	tokNot:     "'~'",
	tokBox:     "'[]'",
	tokDiamond: "'<>'",
	tokAnd:     "'&'",
	tokOr:      "'|'",
	tokImplies: "'->'",
	tokIff:     "'<->'",
	tokLParen:  "'('",
	tokRParen:  "')'",
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, input[start:i], start})
		case c == '~':
			toks = append(toks, token{tokNot, "~", i})
			i++
		case c == '&':
			toks = append(toks, token{tokAnd, "&", i})
			i++
		case c == '|':
			toks = append(toks, token{tokOr, "|", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case strings.HasPrefix(input[i:], "[]"):
			toks = append(toks, token{tokBox, "[]", i})
			i += 2
		case strings.HasPrefix(input[i:], "<->"):
			toks = append(toks, token{tokIff, "<->", i})
			i += 3
		case strings.HasPrefix(input[i:], "<>"):
			toks = append(toks, token{tokDiamond, "<>", i})
			i += 2
		case strings.HasPrefix(input[i:], "->"):
			toks = append(toks, token{tokImplies, "->", i})
			i += 2
		default:
			r, _ := utf8.DecodeRuneInString(input[i:])
			return nil, &SyntaxError{Input: input, Pos: i, Token: string(r), Msg: "unexpected character"}
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type parser struct {
	input string
	toks  []token
	pos   int
}

// Parse turns formula source text into a Formula.
func Parse(input string) (Formula, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	f, err := p.equivalence()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "expected end of input, found %s", tokenNames[t.kind])
	}
	return f, nil
}

// MustParse is Parse for trusted, compiled-in formulas. It panics on error.
func MustParse(input string) Formula {
	f, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Input: p.input, Pos: t.pos, Token: t.text, Msg: fmt.Sprintf(format, args...)}
}

// chain parses operand (op operand)* and folds the result to the left.
func (p *parser) chain(op tokenKind, operand func() (Formula, error), build func(l, r Formula) Formula) (Formula, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == op {
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = build(left, right)
	}
	return left, nil
}

func (p *parser) equivalence() (Formula, error) {
	return p.chain(tokIff, p.implication, func(l, r Formula) Formula { return Equivalence{l, r} })
}

func (p *parser) implication() (Formula, error) {
	return p.chain(tokImplies, p.disjunction, func(l, r Formula) Formula { return Implication{l, r} })
}

func (p *parser) disjunction() (Formula, error) {
	return p.chain(tokOr, p.conjunction, func(l, r Formula) Formula { return Disjunction{l, r} })
}

func (p *parser) conjunction() (Formula, error) {
	return p.chain(tokAnd, p.negation, func(l, r Formula) Formula { return Conjunction{l, r} })
}

func (p *parser) negation() (Formula, error) {
	if p.peek().kind == tokNot {
		p.next()
		f, err := p.negation()
		if err != nil {
			return nil, err
		}
		return Negation{f}, nil
	}
	return p.modal()
}

func (p *parser) modal() (Formula, error) {
	switch p.peek().kind {
	case tokBox:
		p.next()
		f, err := p.negation()
		if err != nil {
			return nil, err
		}
		return Necessity{f}, nil
	case tokDiamond:
		p.next()
		f, err := p.negation()
		if err != nil {
			return nil, err
		}
		return Possibility{f}, nil
	}
	return p.atom()
}

func (p *parser) atom() (Formula, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return Proposition{Name: t.text}, nil
	case tokLParen:
		f, err := p.equivalence()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')' to close '(' at offset %d, found %s", t.pos, tokenNames[closing.kind])
		}
		return f, nil
	}
	return nil, p.errorf(t, "expected proposition or '(', found %s", tokenNames[t.kind])
}
