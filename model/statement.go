package model

import (
	"strings"

	"github.com/pharmflow/go-nmtran/expr"
)

// Assignment is one abbreviated-code statement assigning an expression to a
// symbol. A Piecewise right-hand side lowers to IF forms on output. Raw, if
// set, is a line that did not parse as an assignment and is carried through
// verbatim.
type Assignment struct {
	Symbol string
	Expr   expr.Expr
	Raw    string
}

// NewAssignment builds a plain assignment.
func NewAssignment(symbol string, e expr.Expr) Assignment {
	return Assignment{Symbol: symbol, Expr: e}
}

// Subs returns the assignment with symbols substituted in the right-hand
// side. The assigned symbol itself is renamed too when present in the map.
func (a Assignment) Subs(rename map[string]string) Assignment {
	if a.Raw != "" {
		return a
	}
	out := a
	if to, ok := rename[a.Symbol]; ok {
		out.Symbol = to
	}
	out.Expr = a.Expr.Subs(expr.Rename(rename))
	return out
}

// FreeSymbols returns the free symbols of the right-hand side.
func (a Assignment) FreeSymbols() []string {
	if a.Raw != "" {
		return nil
	}
	return expr.Free(a.Expr)
}

// Lines renders the assignment as abbreviated-code lines. Piecewise
// right-hand sides become single-line IF statements when they have one
// conditional branch and no default, and IF/THEN blocks otherwise.
func (a Assignment) Lines() []string {
	if a.Raw != "" {
		return []string{a.Raw}
	}
	pw, ok := a.Expr.(expr.Piecewise)
	if !ok {
		return []string{a.Symbol + " = " + a.Expr.String()}
	}
	if len(pw.Branches) == 1 && pw.Branches[0].Cond != nil {
		b := pw.Branches[0]
		return []string{"IF (" + b.Cond.String() + ") " + a.Symbol + " = " + b.Value.String()}
	}
	var lines []string
	for i, b := range pw.Branches {
		switch {
		case i == 0:
			lines = append(lines, "IF ("+b.Cond.String()+") THEN")
		case b.Cond != nil:
			lines = append(lines, "ELSE IF ("+b.Cond.String()+") THEN")
		default:
			lines = append(lines, "ELSE")
		}
		lines = append(lines, "    "+a.Symbol+" = "+b.Value.String())
	}
	lines = append(lines, "END IF")
	return lines
}

// String renders the assignment, joining multi-line IF blocks with newlines.
func (a Assignment) String() string {
	return strings.Join(a.Lines(), "\n")
}

// ODESystem is the structural part of a model: either a closed-form
// compartmental flow graph or an explicit ODE system.
type ODESystem interface {
	// AmountNames returns the amount function names in compartment order.
	AmountNames() []string
	odeSystem()
}

// Statements is the full computational sequence of a model: the statements
// before the structural system, the system itself (nil for models without
// one), and the statements after it.
type Statements struct {
	Before []Assignment
	ODE    ODESystem
	After  []Assignment
}

// FindAssignment returns the last assignment to the given symbol across the
// whole sequence.
func (s Statements) FindAssignment(symbol string) (Assignment, bool) {
	for i := len(s.After) - 1; i >= 0; i-- {
		if s.After[i].Symbol == symbol {
			return s.After[i], true
		}
	}
	for i := len(s.Before) - 1; i >= 0; i-- {
		if s.Before[i].Symbol == symbol {
			return s.Before[i], true
		}
	}
	return Assignment{}, false
}

// AssignedSymbols returns every assigned symbol in order of first
// assignment.
func (s Statements) AssignedSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]Assignment{s.Before, s.After} {
		for _, a := range list {
			if a.Raw != "" || seen[a.Symbol] {
				continue
			}
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out
}

// Subs returns the statement sequence with symbols renamed throughout.
func (s Statements) Subs(rename map[string]string) Statements {
	out := Statements{ODE: s.ODE}
	for _, a := range s.Before {
		out.Before = append(out.Before, a.Subs(rename))
	}
	for _, a := range s.After {
		out.After = append(out.After, a.Subs(rename))
	}
	return out
}
