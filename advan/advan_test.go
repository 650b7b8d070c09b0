package advan

import (
	"sort"
	"strings"
	"testing"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
)

func parseDoc(t *testing.T, text string) *nmtran.Document {
	t.Helper()
	doc, err := nmtran.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func bolus(int) model.Dose {
	return model.Bolus{Amount: expr.Sym("AMT")}
}

func compartmentNames(sys *model.CompartmentalSystem) []string {
	var names []string
	for _, c := range sys.Compartments() {
		names = append(names, c.Name)
	}
	return names
}

func TestAdvan1Trans2(t *testing.T) {
	doc := parseDoc(t, "$SUBROUTINES ADVAN1 TRANS2\n$PK\nCL=THETA(1)\nV=THETA(2)\nS1=V\n")
	res, err := Compartmental(doc, "ADVAN1", "TRANS2", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	sys := res.ODE.(*model.CompartmentalSystem)

	names := compartmentNames(sys)
	if len(names) != 2 || names[0] != "CENTRAL" || names[1] != model.Output {
		t.Fatalf("Expected [CENTRAL OUTPUT], got %v", names)
	}
	rate, ok := sys.Flow("CENTRAL", model.Output)
	if !ok {
		t.Fatal("Expected elimination flow")
	}
	want := expr.Div(expr.Sym("CL"), expr.Sym("V"))
	if !expr.Equal(rate, want) {
		t.Errorf("Expected elimination CL/V, got %s", rate)
	}

	central, _ := sys.Compartment("CENTRAL")
	if central.Dose == nil {
		t.Error("Expected dose on the central compartment")
	}
	// S1 assigned in $PK scales the observation.
	if res.FLink.Symbol != "F" || !expr.Contains(res.FLink.Expr, "S1") {
		t.Errorf("Expected F link scaled by S1, got %s", res.FLink)
	}
}

func TestAdvan2HasDepot(t *testing.T) {
	doc := parseDoc(t, "$SUBROUTINES ADVAN2 TRANS2\n$PK\nKA=THETA(3)\nCL=THETA(1)\nV=THETA(2)\n")
	res, err := Compartmental(doc, "ADVAN2", "TRANS2", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	sys := res.ODE.(*model.CompartmentalSystem)

	depot, ok := sys.Compartment("DEPOT")
	if !ok {
		t.Fatal("Expected DEPOT compartment")
	}
	if depot.Dose == nil {
		t.Error("Expected dose on the depot")
	}
	central, _ := sys.Compartment("CENTRAL")
	if central.Dose != nil {
		t.Error("Central must not carry the dose when a depot exists")
	}
	rate, ok := sys.Flow("DEPOT", "CENTRAL")
	if !ok || !expr.Equal(rate, expr.Sym("KA")) {
		t.Errorf("Expected absorption flow KA, got %v", rate)
	}
	if res.CompMap["DEPOT"] != 1 || res.CompMap["CENTRAL"] != 2 {
		t.Errorf("Unexpected compartment numbering: %v", res.CompMap)
	}
}

func TestAdvan4FourCompartmentStructure(t *testing.T) {
	doc := parseDoc(t, "$SUBROUTINES ADVAN4 TRANS1\n$PK\nK=THETA(1)\nK23=THETA(2)\nK32=THETA(3)\nKA=THETA(4)\n")
	res, err := Compartmental(doc, "ADVAN4", "TRANS1", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	sys := res.ODE.(*model.CompartmentalSystem)
	if sys.Len() != 4 {
		t.Fatalf("Expected 4 compartments, got %d", sys.Len())
	}

	var rateNames []string
	for _, f := range sys.Flows() {
		rateNames = append(rateNames, f.Rate.String())
	}
	sort.Strings(rateNames)
	want := []string{"K", "K23", "K32", "KA"}
	if len(rateNames) != len(want) {
		t.Fatalf("Expected rates %v, got %v", want, rateNames)
	}
	for i := range want {
		if rateNames[i] != want[i] {
			t.Errorf("Expected rates %v, got %v", want, rateNames)
			break
		}
	}

	per := sys.Peripherals()
	if len(per) != 1 || per[0].Name != "PERIPHERAL" {
		t.Errorf("Expected one peripheral compartment, got %v", per)
	}
}

func TestAdvan10MichaelisMenten(t *testing.T) {
	doc := parseDoc(t, "$SUBROUTINES ADVAN10\n$PK\nVM=THETA(1)\nKM=THETA(2)\n")
	res, err := Compartmental(doc, "ADVAN10", "", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	sys := res.ODE.(*model.CompartmentalSystem)
	rate, ok := sys.Flow("CENTRAL", model.Output)
	if !ok {
		t.Fatal("Expected elimination flow")
	}
	central, _ := sys.Compartment("CENTRAL")
	want := expr.Div(expr.Sym("VM"), expr.Add(expr.Sym("KM"), central.Amount()))
	if !expr.Equal(rate, want) {
		t.Errorf("Expected saturable elimination, got %s", rate)
	}
}

func TestAdvan5GeneralTopology(t *testing.T) {
	doc := parseDoc(t, `$MODEL COMP=(DEPOT DEFDOSE) COMP=(CENTRAL DEFOBSERVATION) COMP=(METAB)
$SUBROUTINES ADVAN5 TRANS1
$PK
K12=THETA(1)
K23=THETA(2)
K20=THETA(3)
`)
	res, err := Compartmental(doc, "ADVAN5", "TRANS1", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	sys := res.ODE.(*model.CompartmentalSystem)

	if _, ok := sys.Flow("DEPOT", "CENTRAL"); !ok {
		t.Error("Expected K12 flow DEPOT -> CENTRAL")
	}
	if _, ok := sys.Flow("CENTRAL", "METAB"); !ok {
		t.Error("Expected K23 flow CENTRAL -> METAB")
	}
	// K20: a destination of zero addresses the output compartment.
	if _, ok := sys.Flow("CENTRAL", model.Output); !ok {
		t.Error("Expected K20 flow CENTRAL -> OUTPUT")
	}
	depot, _ := sys.Compartment("DEPOT")
	if depot.Dose == nil {
		t.Error("Expected dose on the DEFDOSE compartment")
	}
}

func TestFindRates(t *testing.T) {
	t.Run("packed two digit", func(t *testing.T) {
		doc := parseDoc(t, "$PK\nK23=THETA(1)\n")
		rates, err := FindRates(doc, 4)
		if err != nil {
			t.Fatalf("FindRates failed: %v", err)
		}
		if len(rates) != 1 || rates[0].From != 2 || rates[0].To != 3 {
			t.Errorf("Expected K23 as 2->3, got %+v", rates)
		}
	})

	t.Run("explicit KiTj", func(t *testing.T) {
		doc := parseDoc(t, "$PK\nK2T13=THETA(1)\n")
		rates, err := FindRates(doc, 14)
		if err != nil {
			t.Fatalf("FindRates failed: %v", err)
		}
		if len(rates) != 1 || rates[0].From != 2 || rates[0].To != 13 {
			t.Errorf("Expected K2T13 as 2->13, got %+v", rates)
		}
	})

	t.Run("ambiguous three digit", func(t *testing.T) {
		doc := parseDoc(t, "$PK\nK123=THETA(1)\n")
		_, err := FindRates(doc, 25)
		if err == nil {
			t.Fatal("Expected ambiguity error for K123 with both splits in range")
		}
		if !strings.Contains(err.Error(), "K123") {
			t.Errorf("Expected the rate name in the error, got %q", err)
		}
	})

	t.Run("three digit resolved by range", func(t *testing.T) {
		doc := parseDoc(t, "$PK\nK123=THETA(1)\n")
		rates, err := FindRates(doc, 13)
		if err != nil {
			t.Fatalf("FindRates failed: %v", err)
		}
		// With 13 compartments only the 12->3 split is in range.
		if len(rates) != 1 || rates[0].From != 12 || rates[0].To != 3 {
			t.Errorf("Expected K123 as 12->3, got %+v", rates)
		}
	})

	t.Run("zero destination is output", func(t *testing.T) {
		doc := parseDoc(t, "$PK\nK20=THETA(1)\n")
		rates, err := FindRates(doc, 3)
		if err != nil {
			t.Fatalf("FindRates failed: %v", err)
		}
		if len(rates) != 1 || rates[0].From != 2 || rates[0].To != 3 {
			t.Errorf("Expected K20 as 2->output, got %+v", rates)
		}
	})
}

func TestDosing(t *testing.T) {
	if _, ok := Dosing(nil, false, 1).(model.Bolus); !ok {
		t.Error("Expected bolus without a RATE column")
	}
	if _, ok := Dosing([]float64{0, 0, 0}, true, 1).(model.Bolus); !ok {
		t.Error("Expected bolus for an all-zero RATE column")
	}
	inf, ok := Dosing([]float64{0, -1}, true, 1).(model.Infusion)
	if !ok || !expr.Equal(inf.Rate, expr.Sym("R1")) {
		t.Errorf("Expected modeled rate R1, got %+v", inf)
	}
	inf, ok = Dosing([]float64{-2, 0}, true, 2).(model.Infusion)
	if !ok || !expr.Equal(inf.Duration, expr.Sym("D2")) {
		t.Errorf("Expected modeled duration D2, got %+v", inf)
	}
	inf, ok = Dosing([]float64{0, 12.5}, true, 1).(model.Infusion)
	if !ok || !expr.Equal(inf.Rate, expr.Sym("RATE")) {
		t.Errorf("Expected dataset rate, got %+v", inf)
	}
}

func TestExplicitSystemFromDES(t *testing.T) {
	doc := parseDoc(t, `$MODEL COMP=(CENTRAL DEFDOSE)
$PK
CL=THETA(1)
V=THETA(2)
$DES
KE=CL/V
DADT(1)=-KE*A(1)
`)
	res, err := Compartmental(doc, "", "", bolus)
	if err != nil {
		t.Fatalf("Compartmental failed: %v", err)
	}
	ode, ok := res.ODE.(*model.ExplicitODESystem)
	if !ok {
		t.Fatalf("Expected explicit ODE system, got %T", res.ODE)
	}
	if len(ode.Equations) != 2 {
		t.Fatalf("Expected central + output equations, got %d", len(ode.Equations))
	}

	// The helper KE is inlined and A(1) renamed to the declared amount.
	eq := ode.Equations[0]
	if eq.Amount != "A_CENTRAL" {
		t.Errorf("Expected A_CENTRAL equation, got %s", eq.Amount)
	}
	if expr.Contains(eq.RHS, "KE") {
		t.Errorf("Expected helper KE inlined, got %s", eq.RHS)
	}
	for _, sym := range []string{"CL", "V", "A_CENTRAL(t)"} {
		if !expr.Contains(eq.RHS, sym) {
			t.Errorf("Expected %s in RHS, got %s", sym, eq.RHS)
		}
	}

	// Mass balance: the output gains what the compartments lose.
	out := ode.Equations[1]
	if out.Amount != "A_OUTPUT" {
		t.Errorf("Expected A_OUTPUT equation, got %s", out.Amount)
	}
	if !expr.Equal(out.RHS, expr.Neg(eq.RHS)) {
		t.Errorf("Expected negated total %s, got %s", expr.Neg(eq.RHS), out.RHS)
	}

	if !expr.Equal(ode.InitialConditions["A_CENTRAL"], expr.Sym("AMT")) {
		t.Errorf("Expected bolus initial condition, got %v", ode.InitialConditions)
	}
}
