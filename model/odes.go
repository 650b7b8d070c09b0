package model

import (
	"fmt"
	"sort"

	"github.com/pharmflow/go-nmtran/expr"
)

// Output is the reserved name of the elimination sink compartment.
const Output = "OUTPUT"

// Dose describes drug input into a compartment.
type Dose interface {
	doseAdmin()
}

// Bolus is an instantaneous dose.
type Bolus struct {
	Amount expr.Expr
}

func (Bolus) doseAdmin() {}

// Infusion is a dose administered over time, specified by either rate or
// duration (the other nil).
type Infusion struct {
	Amount   expr.Expr
	Rate     expr.Expr
	Duration expr.Expr
}

func (Infusion) doseAdmin() {}

// Compartment is one node of the flow graph. Lag and Bioavailability are
// nil when not modeled.
type Compartment struct {
	Name            string
	Dose            Dose
	Lag             expr.Expr
	Bioavailability expr.Expr
}

// Amount returns the symbolic amount function A_<name>(t).
func (c Compartment) Amount() expr.Expr {
	return expr.Call{Name: "A_" + c.Name, Args: []expr.Expr{expr.Sym("t")}}
}

// Flow is one directed transfer between compartments with a symbolic rate.
type Flow struct {
	From string
	To   string
	Rate expr.Expr
}

// CompartmentalSystem is an immutable compartmental flow graph. Compartment
// order is declaration order; the output sink is a regular compartment named
// Output that always sorts last.
type CompartmentalSystem struct {
	comps []Compartment
	flows []Flow
	index map[string]int
	t     expr.Expr
}

// CompartmentalSystemBuilder accumulates compartments and flows and freezes
// them into a CompartmentalSystem.
type CompartmentalSystemBuilder struct {
	comps []Compartment
	flows []Flow
	index map[string]int
	err   error
}

// NewCompartmentalSystemBuilder returns an empty builder.
func NewCompartmentalSystemBuilder() *CompartmentalSystemBuilder {
	return &CompartmentalSystemBuilder{index: make(map[string]int)}
}

// AddCompartment declares a compartment. Duplicate names are an error
// reported by Build.
func (b *CompartmentalSystemBuilder) AddCompartment(c Compartment) *CompartmentalSystemBuilder {
	if _, dup := b.index[c.Name]; dup {
		b.setErr(fmt.Errorf("duplicate compartment %s", c.Name))
		return b
	}
	b.index[c.Name] = len(b.comps)
	b.comps = append(b.comps, c)
	return b
}

// AddFlow adds a directed transfer between two declared compartments.
func (b *CompartmentalSystemBuilder) AddFlow(from, to string, rate expr.Expr) *CompartmentalSystemBuilder {
	if _, ok := b.index[from]; !ok {
		b.setErr(fmt.Errorf("flow from undeclared compartment %s", from))
		return b
	}
	if _, ok := b.index[to]; !ok {
		b.setErr(fmt.Errorf("flow to undeclared compartment %s", to))
		return b
	}
	b.flows = append(b.flows, Flow{From: from, To: to, Rate: rate})
	return b
}

func (b *CompartmentalSystemBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build freezes the builder. The output compartment, if present, is moved to
// the end of the ordering.
func (b *CompartmentalSystemBuilder) Build() (*CompartmentalSystem, error) {
	if b.err != nil {
		return nil, b.err
	}
	comps := make([]Compartment, len(b.comps))
	copy(comps, b.comps)
	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].Name != Output && comps[j].Name == Output
	})
	index := make(map[string]int, len(comps))
	for i, c := range comps {
		index[c.Name] = i
	}
	flows := make([]Flow, len(b.flows))
	copy(flows, b.flows)
	return &CompartmentalSystem{comps: comps, flows: flows, index: index, t: expr.Sym("t")}, nil
}

// AmountNames implements ODESystem: the amount names of the non-output
// compartments in order.
func (s *CompartmentalSystem) AmountNames() []string {
	var out []string
	for _, c := range s.comps {
		if c.Name == Output {
			continue
		}
		out = append(out, "A_"+c.Name)
	}
	return out
}

func (*CompartmentalSystem) odeSystem() {}

// Compartments returns the compartments in order, output last.
func (s *CompartmentalSystem) Compartments() []Compartment {
	out := make([]Compartment, len(s.comps))
	copy(out, s.comps)
	return out
}

// Compartment returns the named compartment.
func (s *CompartmentalSystem) Compartment(name string) (Compartment, bool) {
	i, ok := s.index[name]
	if !ok {
		return Compartment{}, false
	}
	return s.comps[i], true
}

// Number returns the 1-based position of the named compartment; the output
// compartment counts last.
func (s *CompartmentalSystem) Number(name string) (int, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return i + 1, true
}

// Flows returns every transfer in declaration order.
func (s *CompartmentalSystem) Flows() []Flow {
	out := make([]Flow, len(s.flows))
	copy(out, s.flows)
	return out
}

// Flow returns the rate of the transfer from one compartment to another.
func (s *CompartmentalSystem) Flow(from, to string) (expr.Expr, bool) {
	for _, f := range s.flows {
		if f.From == from && f.To == to {
			return f.Rate, true
		}
	}
	return nil, false
}

// OutFlows returns transfers leaving the named compartment.
func (s *CompartmentalSystem) OutFlows(name string) []Flow {
	var out []Flow
	for _, f := range s.flows {
		if f.From == name {
			out = append(out, f)
		}
	}
	return out
}

// InFlows returns transfers entering the named compartment.
func (s *CompartmentalSystem) InFlows(name string) []Flow {
	var out []Flow
	for _, f := range s.flows {
		if f.To == name {
			out = append(out, f)
		}
	}
	return out
}

// Dosing returns the compartment carrying a dose.
func (s *CompartmentalSystem) Dosing() (Compartment, bool) {
	for _, c := range s.comps {
		if c.Dose != nil {
			return c, true
		}
	}
	return Compartment{}, false
}

// Central returns the compartment that flows into the output sink, which in
// every closed-form model is the observation compartment.
func (s *CompartmentalSystem) Central() (Compartment, bool) {
	for _, f := range s.flows {
		if f.To == Output {
			c, ok := s.Compartment(f.From)
			return c, ok
		}
	}
	return Compartment{}, false
}

// Peripherals returns the compartments that exchange bidirectionally with
// the central compartment, in order.
func (s *CompartmentalSystem) Peripherals() []Compartment {
	central, ok := s.Central()
	if !ok {
		return nil
	}
	var out []Compartment
	for _, c := range s.comps {
		if c.Name == central.Name || c.Name == Output {
			continue
		}
		_, toC := s.Flow(c.Name, central.Name)
		_, fromC := s.Flow(central.Name, c.Name)
		if toC && fromC {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of compartments including the output sink.
func (s *CompartmentalSystem) Len() int {
	return len(s.comps)
}

// ODEs materializes the flow graph as differential equations, one per
// non-output compartment, in compartment order. Each equation is the sum of
// inflow rate terms minus outflow rate terms, with every rate multiplied by
// its source amount.
func (s *CompartmentalSystem) ODEs() []ODE {
	var out []ODE
	for _, c := range s.comps {
		if c.Name == Output {
			continue
		}
		var rhs expr.Expr
		for _, f := range s.InFlows(c.Name) {
			src, _ := s.Compartment(f.From)
			term := expr.Mul(f.Rate, src.Amount())
			if rhs == nil {
				rhs = term
			} else {
				rhs = expr.Add(rhs, term)
			}
		}
		for _, f := range s.OutFlows(c.Name) {
			term := expr.Mul(f.Rate, c.Amount())
			if rhs == nil {
				rhs = expr.Neg(term)
			} else {
				rhs = expr.Sub(rhs, term)
			}
		}
		if rhs == nil {
			rhs = expr.Int(0)
		}
		out = append(out, ODE{Amount: "A_" + c.Name, RHS: rhs})
	}
	return out
}

// ODE is one differential equation d Amount / dt = RHS.
type ODE struct {
	Amount string
	RHS    expr.Expr
}

// ExplicitODESystem is a structural system written as raw differential
// equations, as produced from $DES code.
type ExplicitODESystem struct {
	Equations []ODE
	// InitialConditions maps amount names to t=0 values; absent means zero.
	InitialConditions map[string]expr.Expr
	// DoseCompartment is the 1-based dosing compartment number.
	DoseCompartment int
}

// AmountNames implements ODESystem.
func (s *ExplicitODESystem) AmountNames() []string {
	out := make([]string, len(s.Equations))
	for i, eq := range s.Equations {
		out[i] = eq.Amount
	}
	return out
}

func (*ExplicitODESystem) odeSystem() {}
