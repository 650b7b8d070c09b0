// Package advan reconstructs the structural model from a control stream:
// the subroutine and parameterization selected by $SUBROUTINES, the
// compartment declarations of $MODEL and the rate constants assigned in $PK
// are turned into a compartmental flow graph, or an explicit ODE system when
// the model uses $DES.
package advan

import (
	"fmt"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
)

// Result is the reconstructed structural model: the ODE system, the
// assignment linking the observation function F to an amount, and the map
// from compartment name to its number in the control stream.
type Result struct {
	ODE     model.ODESystem
	FLink   model.Assignment
	CompMap map[string]int
}

// Compartmental builds the structural model for the given subroutine and
// parameterization. dose resolves the dose for a 1-based compartment number
// from the dataset. Returns nil for subroutines without a compartmental
// interpretation and no $DES block.
func Compartmental(doc *nmtran.Document, advan, trans string, dose func(int) model.Dose) (*Result, error) {
	switch advan {
	case "ADVAN1":
		return oneComp(doc, dose, advan1and2Trans(trans), false)
	case "ADVAN2":
		return oneComp(doc, dose, advan1and2Trans(trans), true)
	case "ADVAN3":
		k, k12, k21 := advan3Trans(trans)
		return twoComp(doc, dose, k, k12, k21, false)
	case "ADVAN4":
		k, k23, k32 := advan4Trans(trans)
		return twoComp(doc, dose, k, k23, k32, true)
	case "ADVAN5", "ADVAN7":
		return generalTopology(doc, dose)
	case "ADVAN10":
		return michaelisMenten(doc, dose)
	case "ADVAN11":
		k, k12, k21, k13, k31 := advan11Trans(trans)
		return threeComp(doc, dose, k, k12, k21, k13, k31, false)
	case "ADVAN12":
		k, k23, k32, k24, k42 := advan12Trans(trans)
		return threeComp(doc, dose, k, k23, k32, k24, k42, true)
	}
	if des := doc.Code("DES"); des != nil {
		return explicitSystem(doc, des, dose)
	}
	return nil, nil
}

// oneComp covers ADVAN1 (iv) and ADVAN2 (first-order absorption).
func oneComp(doc *nmtran.Document, dose func(int) model.Dose, elim expr.Expr, depot bool) (*Result, error) {
	cb := model.NewCompartmentalSystemBuilder()
	compMap := map[string]int{}
	n := 1
	if depot {
		cb.AddCompartment(model.Compartment{
			Name: "DEPOT", Dose: dose(1), Lag: alag(doc, 1), Bioavailability: bioavailability(doc, 1),
		})
		compMap["DEPOT"] = n
		n++
	}
	centralDose := dose(1)
	if depot {
		centralDose = nil
	}
	central := model.Compartment{
		Name: "CENTRAL", Dose: centralDose, Lag: alag(doc, n), Bioavailability: bioavailability(doc, n),
	}
	cb.AddCompartment(central)
	cb.AddCompartment(model.Compartment{Name: model.Output})
	compMap["CENTRAL"] = n
	compMap[model.Output] = n + 1
	cb.AddFlow("CENTRAL", model.Output, elim)
	if depot {
		cb.AddFlow("DEPOT", "CENTRAL", expr.Sym("KA"))
	}
	sys, err := cb.Build()
	if err != nil {
		return nil, err
	}
	return &Result{ODE: sys, FLink: fLink(doc, central), CompMap: compMap}, nil
}

// twoComp covers ADVAN3 and ADVAN4.
func twoComp(doc *nmtran.Document, dose func(int) model.Dose, k, kcp, kpc expr.Expr, depot bool) (*Result, error) {
	cb := model.NewCompartmentalSystemBuilder()
	compMap := map[string]int{}
	n := 1
	if depot {
		cb.AddCompartment(model.Compartment{
			Name: "DEPOT", Dose: dose(1), Lag: alag(doc, 1), Bioavailability: bioavailability(doc, 1),
		})
		compMap["DEPOT"] = n
		n++
	}
	centralDose := dose(1)
	if depot {
		centralDose = nil
	}
	central := model.Compartment{
		Name: "CENTRAL", Dose: centralDose, Lag: alag(doc, n), Bioavailability: bioavailability(doc, n),
	}
	cb.AddCompartment(central)
	cb.AddCompartment(model.Compartment{
		Name: "PERIPHERAL", Lag: alag(doc, n+1), Bioavailability: bioavailability(doc, n+1),
	})
	cb.AddCompartment(model.Compartment{Name: model.Output})
	compMap["CENTRAL"] = n
	compMap["PERIPHERAL"] = n + 1
	compMap[model.Output] = n + 2
	if depot {
		cb.AddFlow("DEPOT", "CENTRAL", expr.Sym("KA"))
	}
	cb.AddFlow("CENTRAL", model.Output, k)
	cb.AddFlow("CENTRAL", "PERIPHERAL", kcp)
	cb.AddFlow("PERIPHERAL", "CENTRAL", kpc)
	sys, err := cb.Build()
	if err != nil {
		return nil, err
	}
	return &Result{ODE: sys, FLink: fLink(doc, central), CompMap: compMap}, nil
}

// threeComp covers ADVAN11 and ADVAN12.
func threeComp(doc *nmtran.Document, dose func(int) model.Dose, k, kc1, k1c, kc2, k2c expr.Expr, depot bool) (*Result, error) {
	cb := model.NewCompartmentalSystemBuilder()
	compMap := map[string]int{}
	n := 1
	if depot {
		cb.AddCompartment(model.Compartment{
			Name: "DEPOT", Dose: dose(1), Lag: alag(doc, 1), Bioavailability: bioavailability(doc, 1),
		})
		compMap["DEPOT"] = n
		n++
	}
	centralDose := dose(1)
	if depot {
		centralDose = nil
	}
	central := model.Compartment{
		Name: "CENTRAL", Dose: centralDose, Lag: alag(doc, n), Bioavailability: bioavailability(doc, n),
	}
	cb.AddCompartment(central)
	cb.AddCompartment(model.Compartment{
		Name: "PERIPHERAL1", Lag: alag(doc, n+1), Bioavailability: bioavailability(doc, n+1),
	})
	cb.AddCompartment(model.Compartment{
		Name: "PERIPHERAL2", Lag: alag(doc, n+2), Bioavailability: bioavailability(doc, n+2),
	})
	cb.AddCompartment(model.Compartment{Name: model.Output})
	compMap["CENTRAL"] = n
	compMap["PERIPHERAL1"] = n + 1
	compMap["PERIPHERAL2"] = n + 2
	compMap[model.Output] = n + 3
	if depot {
		cb.AddFlow("DEPOT", "CENTRAL", expr.Sym("KA"))
	}
	cb.AddFlow("CENTRAL", model.Output, k)
	cb.AddFlow("CENTRAL", "PERIPHERAL1", kc1)
	cb.AddFlow("PERIPHERAL1", "CENTRAL", k1c)
	cb.AddFlow("CENTRAL", "PERIPHERAL2", kc2)
	cb.AddFlow("PERIPHERAL2", "CENTRAL", k2c)
	sys, err := cb.Build()
	if err != nil {
		return nil, err
	}
	return &Result{ODE: sys, FLink: fLink(doc, central), CompMap: compMap}, nil
}

// michaelisMenten covers ADVAN10: saturable elimination with rate
// VM/(KM + A_CENTRAL(t)).
func michaelisMenten(doc *nmtran.Document, dose func(int) model.Dose) (*Result, error) {
	cb := model.NewCompartmentalSystemBuilder()
	central := model.Compartment{
		Name: "CENTRAL", Dose: dose(1), Lag: alag(doc, 1), Bioavailability: bioavailability(doc, 1),
	}
	cb.AddCompartment(central)
	cb.AddCompartment(model.Compartment{Name: model.Output})
	rate := expr.Div(expr.Sym("VM"), expr.Add(expr.Sym("KM"), central.Amount()))
	cb.AddFlow("CENTRAL", model.Output, rate)
	sys, err := cb.Build()
	if err != nil {
		return nil, err
	}
	compMap := map[string]int{"CENTRAL": 1, model.Output: 2}
	return &Result{ODE: sys, FLink: fLink(doc, central), CompMap: compMap}, nil
}

// generalTopology covers ADVAN5 and ADVAN7: compartments come from $MODEL
// and flows from K-rate assignments in $PK.
func generalTopology(doc *nmtran.Document, dose func(int) model.Dose) (*Result, error) {
	var modrec *nmtran.ModelRecord
	for _, rec := range doc.Records {
		if m, ok := rec.(*nmtran.ModelRecord); ok {
			modrec = m
			break
		}
	}
	if modrec == nil {
		return nil, nmtran.NewModelSyntaxError("general subroutine without $MODEL record")
	}
	decls := modrec.Compartments()

	defobs, defdose := "", ""
	central, depot, firstDose := "", "", ""
	doseNo, depotNo, firstDoseNo := -1, -1, -1
	names := make([]string, 0, len(decls)+1)
	for i, decl := range decls {
		if decl.HasOption("DEFOBSERVATION") {
			defobs = decl.Name
		}
		if decl.HasOption("DEFDOSE") {
			defdose = decl.Name
			doseNo = i + 1
		}
		switch decl.Name {
		case "CENTRAL":
			central = decl.Name
		case "DEPOT":
			depot = decl.Name
			depotNo = i + 1
		}
		if firstDose == "" && !decl.HasOption("NODOSE") {
			firstDose = decl.Name
			firstDoseNo = i + 1
		}
		names = append(names, decl.Name)
	}
	names = append(names, model.Output)

	if defobs == "" {
		if central != "" {
			defobs = central
		} else {
			defobs = names[0]
		}
	}
	if defdose == "" {
		switch {
		case depot != "":
			defdose = depot
			doseNo = depotNo
		case firstDose != "":
			defdose = firstDose
			doseNo = firstDoseNo
		default:
			return nil, nmtran.NewModelSyntaxError("dosing compartment is unknown")
		}
	}

	cb := model.NewCompartmentalSystemBuilder()
	compMap := make(map[string]int, len(names))
	var obsComp model.Compartment
	for i, name := range names {
		compMap[name] = i + 1
		if name == model.Output {
			cb.AddCompartment(model.Compartment{Name: name})
			break
		}
		var d model.Dose
		if name == defdose {
			d = dose(doseNo)
		}
		comp := model.Compartment{
			Name: name, Dose: d, Lag: alag(doc, i+1), Bioavailability: bioavailability(doc, i+1),
		}
		cb.AddCompartment(comp)
		if name == defobs {
			obsComp = comp
		}
	}
	rates, err := FindRates(doc, len(names))
	if err != nil {
		return nil, err
	}
	for _, r := range rates {
		cb.AddFlow(names[r.From-1], names[r.To-1], expr.Sym(r.Name))
	}
	sys, err := cb.Build()
	if err != nil {
		return nil, err
	}
	return &Result{ODE: sys, FLink: fLink(doc, obsComp), CompMap: compMap}, nil
}

// fLink builds the F assignment linking the observation to the compartment
// amount, scaled by S1 when the $PK block defines it.
func fLink(doc *nmtran.Document, comp model.Compartment) model.Assignment {
	return fLinkExpr(doc, comp.Amount())
}

func fLinkExpr(doc *nmtran.Document, amount expr.Expr) model.Assignment {
	f := amount
	if pk := doc.Code("PK"); pk != nil {
		if _, ok := pk.FindAssignment("S1"); ok {
			f = expr.Div(f, expr.Sym("S1"))
		}
	}
	return model.NewAssignment("F", f)
}

// alag returns the symbolic lag time for compartment n when ALAGn is
// assigned in $PK, else nil.
func alag(doc *nmtran.Document, n int) expr.Expr {
	pk := doc.Code("PK")
	if pk == nil {
		return nil
	}
	name := fmt.Sprintf("ALAG%d", n)
	if _, ok := pk.FindAssignment(name); ok {
		return expr.Sym(name)
	}
	return nil
}

// bioavailability returns the symbolic bioavailability for compartment n
// when Fn is assigned in $PK, else nil (meaning complete availability).
func bioavailability(doc *nmtran.Document, n int) expr.Expr {
	pk := doc.Code("PK")
	if pk == nil {
		return nil
	}
	name := fmt.Sprintf("F%d", n)
	if _, ok := pk.FindAssignment(name); ok {
		return expr.Sym(name)
	}
	return nil
}
