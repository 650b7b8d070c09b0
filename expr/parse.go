package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// indexedNames are callables that denote indexed symbols rather than
// function calls: THETA(1) is one symbol, not an application.
var indexedNames = map[string]bool{
	"THETA": true,
	"ETA":   true,
	"EPS":   true,
	"ERR":   true,
	"A":     true,
	"DADT":  true,
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type exprLexer struct {
	input string
	pos   int
}

func (l *exprLexer) next() (token, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ch == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case ch == '*':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '*' {
			l.pos += 2
			return token{kind: tokOp, text: "**", pos: start}, nil
		}
		l.pos++
		return token{kind: tokOp, text: "*", pos: start}, nil
	case ch == '+' || ch == '-' || ch == '/':
		l.pos++
		return token{kind: tokOp, text: string(ch), pos: start}, nil
	case ch == '.':
		// Either a dotted operator (.GT.) or a number starting with a dot.
		if l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			return l.lexNumber()
		}
		end := strings.IndexByte(l.input[l.pos+1:], '.')
		if end < 0 {
			return token{}, fmt.Errorf("unterminated operator at %q", l.input[start:])
		}
		op := strings.ToUpper(l.input[l.pos : l.pos+end+2])
		l.pos += end + 2
		switch Op(op) {
		case OpEQ, OpNE, OpLT, OpGT, OpLE, OpGE, OpAnd, OpOr, OpNot:
			return token{kind: tokOp, text: op, pos: start}, nil
		}
		return token{}, fmt.Errorf("unknown operator %s", op)
	case isDigit(ch):
		return l.lexNumber()
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: strings.ToUpper(l.input[start:l.pos]), pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q", string(ch))
}

func (l *exprLexer) lexNumber() (token, error) {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isDigit(ch) {
			l.pos++
			continue
		}
		if ch == '.' && !seenDot {
			// A dot followed by a letter starts a dotted operator, not a
			// decimal point: 5.GT. must split after the 5.
			if l.pos+1 < len(l.input) && isIdentStart(l.input[l.pos+1]) {
				break
			}
			seenDot = true
			l.pos++
			continue
		}
		if ch == 'E' || ch == 'e' || ch == 'D' || ch == 'd' {
			// Exponent part, possibly signed.
			next := l.pos + 1
			if next < len(l.input) && (l.input[next] == '+' || l.input[next] == '-') {
				next++
			}
			if next < len(l.input) && isDigit(l.input[next]) {
				l.pos = next + 1
				for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
					l.pos++
				}
			}
			break
		}
		break
	}
	return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil
}

func isDigit(ch byte) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch byte) bool { return ch == '_' || (ch|0x20 >= 'a' && ch|0x20 <= 'z') }
func isIdentChar(ch byte) bool  { return isIdentStart(ch) || isDigit(ch) }

// parser is a recursive descent parser over NMTRAN expression syntax.
type parser struct {
	lex  *exprLexer
	tok  token
	err  error
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.tok, p.err = p.lex.next()
}

// Parse parses a single NMTRAN expression. Both dotted FORTRAN operators
// (.GT., .AND.) and their symbolic forms (>, ==) are accepted on input;
// printing always uses the dotted forms.
func Parse(input string) (Expr, error) {
	// Normalize the symbolic comparison forms up front so the lexer only
	// deals with dotted operators.
	replacer := strings.NewReplacer(
		"==", ".EQ.", "/=", ".NE.", "<=", ".LE.", ">=", ".GE.", "<", ".LT.", ">", ".GT.",
	)
	p := &parser{lex: &exprLexer{input: replacer.Replace(input)}}
	p.advance()
	e := p.parseOr()
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("trailing input at %q", input[min(p.tok.pos, len(input)):])
	}
	return e, nil
}

// MustParse parses an expression and panics on failure. Intended for
// fixed template expressions in builders and tests.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) parseOr() Expr {
	e := p.parseAnd()
	for p.err == nil && p.tok.kind == tokOp && Op(p.tok.text) == OpOr {
		p.advance()
		e = Binary{Op: OpOr, L: e, R: p.parseAnd()}
	}
	return e
}

func (p *parser) parseAnd() Expr {
	e := p.parseNot()
	for p.err == nil && p.tok.kind == tokOp && Op(p.tok.text) == OpAnd {
		p.advance()
		e = Binary{Op: OpAnd, L: e, R: p.parseNot()}
	}
	return e
}

func (p *parser) parseNot() Expr {
	if p.err == nil && p.tok.kind == tokOp && Op(p.tok.text) == OpNot {
		p.advance()
		return Unary{Op: OpNot, X: p.parseNot()}
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() Expr {
	e := p.parseAdditive()
	if p.err == nil && p.tok.kind == tokOp {
		switch op := Op(p.tok.text); op {
		case OpEQ, OpNE, OpLT, OpGT, OpLE, OpGE:
			p.advance()
			return Binary{Op: op, L: e, R: p.parseAdditive()}
		}
	}
	return e
}

func (p *parser) parseAdditive() Expr {
	e := p.parseTerm()
	for p.err == nil && p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := Op(p.tok.text)
		p.advance()
		e = Binary{Op: op, L: e, R: p.parseTerm()}
	}
	return e
}

func (p *parser) parseTerm() Expr {
	e := p.parseUnary()
	for p.err == nil && p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := Op(p.tok.text)
		p.advance()
		e = Binary{Op: op, L: e, R: p.parseUnary()}
	}
	return e
}

func (p *parser) parseUnary() Expr {
	if p.err == nil && p.tok.kind == tokOp {
		switch p.tok.text {
		case "-":
			p.advance()
			return Unary{Op: OpNeg, X: p.parseUnary()}
		case "+":
			p.advance()
			return p.parseUnary()
		}
	}
	return p.parsePower()
}

func (p *parser) parsePower() Expr {
	e := p.parsePrimary()
	if p.err == nil && p.tok.kind == tokOp && p.tok.text == "**" {
		p.advance()
		// Right associative.
		return Binary{Op: OpPow, L: e, R: p.parseUnary()}
	}
	return e
}

func (p *parser) parsePrimary() Expr {
	if p.err != nil {
		return Number{}
	}
	switch p.tok.kind {
	case tokNumber:
		lit := p.tok.text
		v, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(lit), 64)
		if err != nil {
			p.err = fmt.Errorf("bad number %q: %w", lit, err)
			return Number{}
		}
		p.advance()
		return Number{Value: v, Lit: lit}
	case tokIdent:
		name := p.tok.text
		p.advance()
		if p.tok.kind != tokLParen {
			return Symbol{Name: name}
		}
		p.advance()
		var args []Expr
		if p.tok.kind != tokRParen {
			args = append(args, p.parseOr())
			for p.err == nil && p.tok.kind == tokComma {
				p.advance()
				args = append(args, p.parseOr())
			}
		}
		if p.err == nil && p.tok.kind != tokRParen {
			p.err = fmt.Errorf("expected ) after arguments of %s", name)
			return Number{}
		}
		p.advance()
		if indexedNames[name] && len(args) == 1 {
			if n, ok := args[0].(Number); ok && n.Value == float64(int(n.Value)) {
				return Symbol{Name: fmt.Sprintf("%s(%d)", name, int(n.Value))}
			}
		}
		return Call{Name: name, Args: args}
	case tokLParen:
		p.advance()
		e := p.parseOr()
		if p.err == nil && p.tok.kind != tokRParen {
			p.err = fmt.Errorf("missing closing parenthesis")
			return Number{}
		}
		p.advance()
		return e
	}
	p.err = fmt.Errorf("unexpected token %q in expression", p.tok.text)
	return Number{}
}
