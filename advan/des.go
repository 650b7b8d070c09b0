package advan

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
)

var dadtRe = regexp.MustCompile(`^DADT\((\d+)\)$`)

// explicitSystem converts a $DES block into an explicit ODE system. Amount
// references A(i) are renamed to the declared compartment amounts, helper
// assignments are inlined, and a mass-balance equation for the output sink
// is synthesized so the system conserves total amount. Infusion doses enter
// the first equation as a piecewise input term.
func explicitSystem(doc *nmtran.Document, des *nmtran.CodeRecord, dose func(int) model.Dose) (*Result, error) {
	var modrec *nmtran.ModelRecord
	for _, rec := range doc.Records {
		if m, ok := rec.(*nmtran.ModelRecord); ok {
			modrec = m
			break
		}
	}
	if modrec == nil {
		return nil, nmtran.NewModelSyntaxError("$DES without $MODEL record")
	}
	decls := modrec.Compartments()
	if len(decls) == 0 {
		return nil, nmtran.NewModelSyntaxError("$MODEL declares no compartments")
	}

	rename := make(map[string]expr.Expr, len(decls))
	amountNames := make([]string, len(decls))
	for i, decl := range decls {
		rename[fmt.Sprintf("A(%d)", i+1)] = expr.Sym(fmt.Sprintf("A_%s(t)", decl.Name))
		amountNames[i] = "A_" + decl.Name
	}

	stmts, err := des.Statements()
	if err != nil {
		return nil, err
	}

	// Helper assignments are inlined into subsequent equations; DADT lines
	// are collected per compartment.
	aux := make(map[string]expr.Expr)
	eqByComp := make(map[int]expr.Expr)
	for _, stmt := range stmts {
		if stmt.Raw != "" {
			continue
		}
		rhs := stmt.Expr.Subs(rename).Subs(aux)
		m := dadtRe.FindStringSubmatch(stmt.Symbol)
		if m == nil {
			aux[stmt.Symbol] = rhs
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > len(decls) {
			return nil, nmtran.NewModelSyntaxError("DADT(%d) has no matching compartment", n)
		}
		eqByComp[n] = rhs
	}
	if _, ok := eqByComp[1]; !ok {
		return nil, nmtran.NewModelSyntaxError("$DES defines no equation for the dosing compartment")
	}

	// The output sink receives whatever the declared compartments lose,
	// computed before any infusion input is added.
	var total expr.Expr
	for i := 1; i <= len(decls); i++ {
		rhs, ok := eqByComp[i]
		if !ok {
			return nil, nmtran.NewModelSyntaxError("$DES defines no equation for compartment %d", i)
		}
		if total == nil {
			total = rhs
		} else {
			total = expr.Add(total, rhs)
		}
	}
	outputRHS := expr.Neg(total)

	d := dose(1)
	ics := map[string]expr.Expr{}
	doseEq := eqByComp[1]
	switch dd := d.(type) {
	case model.Bolus:
		ics[amountNames[0]] = dd.Amount
	case model.Infusion:
		var rate, duration expr.Expr
		if dd.Duration != nil {
			rate = expr.Div(dd.Amount, dd.Duration)
			duration = dd.Duration
		} else {
			rate = dd.Rate
			duration = expr.Div(dd.Amount, dd.Rate)
		}
		input := expr.Piecewise{Branches: []expr.Branch{
			{Value: rate, Cond: expr.Binary{Op: expr.OpGT, L: duration, R: expr.Sym("t")}},
			{Value: expr.Int(0)},
		}}
		doseEq = expr.Add(doseEq, input)
	}

	eqs := make([]model.ODE, 0, len(decls)+1)
	eqs = append(eqs, model.ODE{Amount: amountNames[0], RHS: doseEq})
	for i := 2; i <= len(decls); i++ {
		eqs = append(eqs, model.ODE{Amount: amountNames[i-1], RHS: eqByComp[i]})
	}
	eqs = append(eqs, model.ODE{Amount: "A_" + model.Output, RHS: outputRHS})

	ode := &model.ExplicitODESystem{
		Equations:         eqs,
		InitialConditions: ics,
		DoseCompartment:   1,
	}
	compMap := make(map[string]int, len(decls)+1)
	for i, decl := range decls {
		compMap[decl.Name] = i + 1
	}
	compMap[model.Output] = len(decls) + 1
	return &Result{ODE: ode, FLink: fLinkExpr(doc, expr.Sym("A_CENTRAL")), CompMap: compMap}, nil
}
