// Package expr implements the small symbolic expression kernel used by the
// NONMEM abbreviated code layer. Expressions are immutable trees of symbols,
// numeric literals, operator applications, function calls and piecewise
// branches. The kernel supports the operations the round-trip engine needs:
// printing back to NMTRAN syntax, substitution by symbol name, and free
// symbol collection.
package expr

import (
	"sort"
	"strconv"
	"strings"
)

// Expr is a symbolic expression node.
type Expr interface {
	// String renders the expression in NMTRAN abbreviated-code syntax.
	String() string
	// Subs returns a copy with every symbol found in the map replaced.
	Subs(m map[string]Expr) Expr
	// precedence is used for minimal parenthesization when printing.
	precedence() int
	collectFree(set map[string]struct{})
}

// Operator precedence levels, loosest first.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precPow
	precAtom
)

// Symbol is a named symbol. Indexed NONMEM names such as THETA(1), ETA(2),
// A(3) or DADT(1) are kept as single symbols so that name translation can
// replace them atomically.
type Symbol struct {
	Name string
}

func (s Symbol) String() string                      { return s.Name }
func (s Symbol) precedence() int                     { return precAtom }
func (s Symbol) collectFree(set map[string]struct{}) { set[s.Name] = struct{}{} }

func (s Symbol) Subs(m map[string]Expr) Expr {
	if e, ok := m[s.Name]; ok {
		return e
	}
	return s
}

// Number is a numeric literal. The original token text is preserved when the
// literal came from source so printing does not reformat it.
type Number struct {
	Value float64
	Lit   string
}

func (n Number) String() string {
	if n.Lit != "" {
		return n.Lit
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n Number) precedence() int {
	if n.Value < 0 && n.Lit == "" {
		return precUnary
	}
	return precAtom
}

func (n Number) Subs(map[string]Expr) Expr            { return n }
func (n Number) collectFree(map[string]struct{})      {}

// Int returns an integer literal expression.
func Int(v int) Number {
	return Number{Value: float64(v), Lit: strconv.Itoa(v)}
}

// Num returns a numeric literal expression.
func Num(v float64) Number {
	return Number{Value: v}
}

// Op identifies a binary or unary operator.
type Op string

// Binary and unary operators in NMTRAN syntax.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpPow Op = "**"
	OpNeg Op = "u-"

	OpEQ  Op = ".EQ."
	OpNE  Op = ".NE."
	OpLT  Op = ".LT."
	OpGT  Op = ".GT."
	OpLE  Op = ".LE."
	OpGE  Op = ".GE."
	OpAnd Op = ".AND."
	OpOr  Op = ".OR."
	OpNot Op = ".NOT."
)

func opPrecedence(op Op) int {
	switch op {
	case OpOr:
		return precOr
	case OpAnd:
		return precAnd
	case OpNot:
		return precNot
	case OpEQ, OpNE, OpLT, OpGT, OpLE, OpGE:
		return precCompare
	case OpAdd, OpSub:
		return precAdd
	case OpMul, OpDiv:
		return precMul
	case OpNeg:
		return precUnary
	case OpPow:
		return precPow
	}
	return precAtom
}

// Binary is an infix operator application.
type Binary struct {
	Op   Op
	L, R Expr
}

func (b Binary) precedence() int { return opPrecedence(b.Op) }

func (b Binary) String() string {
	var sb strings.Builder
	p := b.precedence()
	writeOperand(&sb, b.L, p, false)
	if p <= precCompare {
		// Logical and comparison operators keep their dotted form unspaced,
		// matching NMTRAN conventions: A.GT.B
		sb.WriteString(string(b.Op))
	} else {
		sb.WriteByte(' ')
		sb.WriteString(string(b.Op))
		sb.WriteByte(' ')
	}
	writeOperand(&sb, b.R, p, true)
	return sb.String()
}

func (b Binary) Subs(m map[string]Expr) Expr {
	return Binary{Op: b.Op, L: b.L.Subs(m), R: b.R.Subs(m)}
}

func (b Binary) collectFree(set map[string]struct{}) {
	b.L.collectFree(set)
	b.R.collectFree(set)
}

// writeOperand parenthesizes child when its precedence is looser than the
// parent, or equal on the right side of a non-commutative operator.
func writeOperand(sb *strings.Builder, child Expr, parent int, right bool) {
	cp := child.precedence()
	need := cp < parent || (cp == parent && right)
	if need {
		sb.WriteByte('(')
	}
	sb.WriteString(child.String())
	if need {
		sb.WriteByte(')')
	}
}

// Unary is a prefix operator application (negation, .NOT.).
type Unary struct {
	Op Op
	X  Expr
}

func (u Unary) precedence() int { return opPrecedence(u.Op) }

func (u Unary) String() string {
	var sb strings.Builder
	if u.Op == OpNeg {
		sb.WriteByte('-')
	} else {
		sb.WriteString(string(u.Op))
	}
	writeOperand(&sb, u.X, u.precedence(), true)
	return sb.String()
}

func (u Unary) Subs(m map[string]Expr) Expr          { return Unary{Op: u.Op, X: u.X.Subs(m)} }
func (u Unary) collectFree(set map[string]struct{})  { u.X.collectFree(set) }

// Call is a function application such as EXP(X) or LOG(CL).
type Call struct {
	Name string
	Args []Expr
}

func (c Call) precedence() int { return precAtom }

func (c Call) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c Call) Subs(m map[string]Expr) Expr {
	args := make([]Expr, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.Subs(m)
	}
	return Call{Name: c.Name, Args: args}
}

func (c Call) collectFree(set map[string]struct{}) {
	for _, a := range c.Args {
		a.collectFree(set)
	}
}

// Branch is one (value, condition) pair of a Piecewise. A nil condition
// marks the otherwise branch.
type Branch struct {
	Value Expr
	Cond  Expr
}

// Piecewise selects the first branch whose condition holds. It has no direct
// NMTRAN syntax; the statement printer lowers it to IF blocks, and String is
// only used for diagnostics.
type Piecewise struct {
	Branches []Branch
}

func (p Piecewise) precedence() int { return precAtom }

func (p Piecewise) String() string {
	var sb strings.Builder
	sb.WriteString("PIECEWISE(")
	for i, br := range p.Branches {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(br.Value.String())
		if br.Cond != nil {
			sb.WriteString(" IF ")
			sb.WriteString(br.Cond.String())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func (p Piecewise) Subs(m map[string]Expr) Expr {
	branches := make([]Branch, len(p.Branches))
	for i, br := range p.Branches {
		branches[i] = Branch{Value: br.Value.Subs(m)}
		if br.Cond != nil {
			branches[i].Cond = br.Cond.Subs(m)
		}
	}
	return Piecewise{Branches: branches}
}

func (p Piecewise) collectFree(set map[string]struct{}) {
	for _, br := range p.Branches {
		br.Value.collectFree(set)
		if br.Cond != nil {
			br.Cond.collectFree(set)
		}
	}
}

// Sym returns a symbol expression.
func Sym(name string) Symbol { return Symbol{Name: name} }

// Convenience constructors for the rate-expression templates.

func Add(l, r Expr) Expr { return Binary{Op: OpAdd, L: l, R: r} }
func Sub(l, r Expr) Expr { return Binary{Op: OpSub, L: l, R: r} }
func Mul(l, r Expr) Expr { return Binary{Op: OpMul, L: l, R: r} }
func Div(l, r Expr) Expr { return Binary{Op: OpDiv, L: l, R: r} }
func Neg(x Expr) Expr    { return Unary{Op: OpNeg, X: x} }

// AddAll folds a list of terms into a sum. Returns Int(0) for no terms.
func AddAll(terms ...Expr) Expr {
	if len(terms) == 0 {
		return Int(0)
	}
	sum := terms[0]
	for _, t := range terms[1:] {
		sum = Add(sum, t)
	}
	return sum
}

// Free returns the sorted free symbol names of e.
func Free(e Expr) []string {
	set := make(map[string]struct{})
	e.collectFree(set)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether the symbol name occurs free in e.
func Contains(e Expr, name string) bool {
	set := make(map[string]struct{})
	e.collectFree(set)
	_, ok := set[name]
	return ok
}

// Equal reports structural equality of two expressions. Numeric literals
// compare by value, not by original token text.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Symbol:
		y, ok := b.(Symbol)
		return ok && x.Name == y.Name
	case Number:
		y, ok := b.(Number)
		return ok && x.Value == y.Value
	case Binary:
		y, ok := b.(Binary)
		return ok && x.Op == y.Op && Equal(x.L, y.L) && Equal(x.R, y.R)
	case Unary:
		y, ok := b.(Unary)
		return ok && x.Op == y.Op && Equal(x.X, y.X)
	case Call:
		y, ok := b.(Call)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case Piecewise:
		y, ok := b.(Piecewise)
		if !ok || len(x.Branches) != len(y.Branches) {
			return false
		}
		for i := range x.Branches {
			if !Equal(x.Branches[i].Value, y.Branches[i].Value) {
				return false
			}
			xc, yc := x.Branches[i].Cond, y.Branches[i].Cond
			if (xc == nil) != (yc == nil) {
				return false
			}
			if xc != nil && !Equal(xc, yc) {
				return false
			}
		}
		return true
	}
	return false
}

// Rename builds a substitution map from name to name for use with Subs.
func Rename(m map[string]string) map[string]Expr {
	out := make(map[string]Expr, len(m))
	for from, to := range m {
		out[from] = Symbol{Name: to}
	}
	return out
}
