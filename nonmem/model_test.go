package nonmem

import (
	"math"
	"strings"
	"testing"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
)

const phenoModel = `$PROBLEM PHENOBARB SIMPLE MODEL
$DATA pheno.dta IGNORE=@
$INPUT ID TIME AMT WGT APGR DV
$SUBROUTINES ADVAN1 TRANS2

$PK
CL=THETA(1)*EXP(ETA(1))
V=THETA(2)*EXP(ETA(2))
S1=V

$ERROR
Y=F+F*EPS(1)

$THETA (0,0.00469307) ; TVCL
$THETA (0,1.00916) ; TVV
$OMEGA 0.0309626  ; IVCL
$OMEGA 0.031128  ; IVV
$SIGMA 0.013241
$ESTIMATION METHOD=1 INTERACTION
`

func parseModel(t *testing.T, text string) *Model {
	t.Helper()
	m, err := ParseModel(text, DefaultConfig())
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	return m
}

func TestParseModelResolvedNames(t *testing.T) {
	m := parseModel(t, phenoModel)
	got := m.Parameters().Names()
	want := []string{"TVCL", "TVV", "IVCL", "IVV", "SIGMA(1,1)"}
	if len(got) != len(want) {
		t.Fatalf("Expected parameters %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected parameters %v, got %v", want, got)
			break
		}
	}

	p, ok := m.Parameters().Get("TVCL")
	if !ok {
		t.Fatal("Expected TVCL parameter")
	}
	if p.Init != 0.00469307 || p.Lower != 0 {
		t.Errorf("Expected TVCL (0,0.00469307), got %+v", p)
	}
}

func TestParseModelRandomVariables(t *testing.T) {
	m := parseModel(t, phenoModel)
	rvs := m.RandomVariables()
	etas := rvs.EtaNames()
	if len(etas) != 2 || etas[0] != "ETA(1)" || etas[1] != "ETA(2)" {
		t.Errorf("Expected etas [ETA(1) ETA(2)], got %v", etas)
	}
	eps := rvs.EpsilonNames()
	if len(eps) != 1 || eps[0] != "EPS(1)" {
		t.Errorf("Expected epsilons [EPS(1)], got %v", eps)
	}
	d := rvs.Etas()[0]
	if v, ok := d.Variance("ETA(1)"); !ok || v != "IVCL" {
		t.Errorf("Expected ETA(1) variance IVCL, got %q", v)
	}
}

func TestParseModelEstimationSteps(t *testing.T) {
	m := parseModel(t, phenoModel)
	steps := m.EstimationSteps()
	if len(steps) != 1 {
		t.Fatalf("Expected 1 estimation step, got %d", len(steps))
	}
	step := steps[0]
	if step.Method != "FOCE" {
		t.Errorf("Expected METHOD=1 parsed as FOCE, got %s", step.Method)
	}
	if !step.Interaction {
		t.Error("Expected interaction")
	}
	if step.Covariance {
		t.Error("Expected no covariance step without $COVARIANCE")
	}
}

func TestEstimationToolOptions(t *testing.T) {
	m := parseModel(t, strings.Replace(phenoModel,
		"$ESTIMATION METHOD=1 INTERACTION",
		"$ESTIMATION METHOD=1 INTERACTION MCETA=1 PRINT=5", 1))
	step := m.EstimationSteps()[0]
	if step.ToolOptions["MCETA"] != "1" || step.ToolOptions["PRINT"] != "5" {
		t.Errorf("Expected unconsumed options passed through, got %v", step.ToolOptions)
	}
	if _, ok := step.ToolOptions["INTERACTION"]; ok {
		t.Errorf("Expected consumed options excluded, got %v", step.ToolOptions)
	}
}

func TestParseModelStatements(t *testing.T) {
	m := parseModel(t, phenoModel)
	stmts := m.Statements()
	if len(stmts.Before) != 3 {
		t.Fatalf("Expected 3 statements before the system, got %d", len(stmts.Before))
	}
	cl := stmts.Before[0]
	want := expr.Mul(expr.Sym("TVCL"), expr.Call{Name: "EXP", Args: []expr.Expr{expr.Sym("ETA(1)")}})
	if cl.Symbol != "CL" || !expr.Equal(cl.Expr, want) {
		t.Errorf("Expected CL = TVCL * EXP(ETA(1)), got %s = %s", cl.Symbol, cl.Expr)
	}

	if _, ok := stmts.ODE.(*model.CompartmentalSystem); !ok {
		t.Fatalf("Expected compartmental system, got %T", stmts.ODE)
	}
	if stmts.After[0].Symbol != "F" {
		t.Errorf("Expected observation link first after the system, got %s", stmts.After[0].Symbol)
	}
}

func TestSubsSpellingOfSubroutines(t *testing.T) {
	m := parseModel(t, strings.Replace(phenoModel, "$SUBROUTINES", "$SUBS", 1))
	if _, ok := m.ODESystem().(*model.CompartmentalSystem); !ok {
		t.Fatalf("Expected $SUBS to select the structural model, got %T", m.ODESystem())
	}
	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if !strings.Contains(code, "$SUBS ADVAN1 TRANS2") {
		t.Errorf("Expected the $SUBS spelling preserved, got:\n%s", code)
	}
}

func TestCodeUnchangedIsIdentity(t *testing.T) {
	m := parseModel(t, phenoModel)
	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if code != phenoModel {
		t.Errorf("Unedited model must render byte for byte:\n--- want\n%s--- got\n%s", phenoModel, code)
	}
}

func TestCodeMinimalEdit(t *testing.T) {
	m := parseModel(t, phenoModel)
	if !m.Parameters().SetInit("TVCL", 0.75) {
		t.Fatal("SetInit failed")
	}
	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	want := strings.Replace(phenoModel, "0.00469307", "0.75", 1)
	if code != want {
		t.Errorf("Expected only the changed init rewritten:\n--- want\n%s--- got\n%s", want, code)
	}
}

func TestCodeDummyEtaSynthesis(t *testing.T) {
	m := parseModel(t, phenoModel)
	eps := m.RandomVariables().Epsilons()
	m.SetRandomVariables(model.NewRandomVariables(eps...))

	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if !strings.Contains(code, "$OMEGA  0 FIX ; DUMMYOMEGA") {
		t.Errorf("Expected dummy omega record, got:\n%s", code)
	}
	if !strings.Contains(code, "DUMMYETA = ETA(1)") {
		t.Errorf("Expected dummy eta statement, got:\n%s", code)
	}
	if strings.Contains(code, "IVCL") || strings.Contains(code, "IVV") {
		t.Errorf("Expected old omega records removed, got:\n%s", code)
	}
}

func TestSameBlockLiftsToIOV(t *testing.T) {
	m := parseModel(t, `$PROBLEM iov
$PRED
Y = THETA(1) + ETA(1) + ETA(2) + EPS(1)
$THETA 0.1
$OMEGA BLOCK(1) 0.02
$OMEGA BLOCK(1) SAME
$SIGMA 1
`)
	rvs := m.RandomVariables()
	if rvs.Len() != 3 {
		t.Fatalf("Expected 3 distributions, got %d", rvs.Len())
	}
	for i := 0; i < 2; i++ {
		d := rvs.All()[i]
		if d.Level() != model.LevelIOV {
			t.Errorf("Distribution %d: expected IOV after SAME, got %s", i, d.Level())
		}
	}
	// The repeated block shares the original's variance parameter.
	if v, ok := rvs.All()[1].Variance("ETA(2)"); !ok || v != "OMEGA(1,1)" {
		t.Errorf("Expected ETA(2) to reuse OMEGA(1,1), got %q", v)
	}
}

func TestZeroFixOmegaExcluded(t *testing.T) {
	m := parseModel(t, `$PROBLEM zf
$PRED
Y = THETA(1) + ETA(1) + EPS(1)
$THETA 0.1
$OMEGA 0.1
$OMEGA 0 FIX
$SIGMA 1
`)
	etas := m.RandomVariables().EtaNames()
	if len(etas) != 1 || etas[0] != "ETA(1)" {
		t.Errorf("Expected zero-fixed eta excluded, got %v", etas)
	}
	// The variance parameter itself still parses.
	if !m.Parameters().Has("OMEGA(2,2)") {
		t.Error("Expected OMEGA(2,2) parameter kept")
	}
}

func TestVarianceRepairWarns(t *testing.T) {
	m := parseModel(t, `$PROBLEM psd
$PRED
Y = THETA(1) + ETA(1) + ETA(2) + EPS(1)
$THETA 0.1
$OMEGA BLOCK(2)
 0.1
 0.2 0.1
$SIGMA 1
`)
	var found bool
	for _, w := range m.Warnings() {
		if strings.Contains(w, "positive semidefinite") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected repair warning, got %v", m.Warnings())
	}
	p, _ := m.Parameters().Get("OMEGA(2,1)")
	if math.Abs(p.Init-0.1) > 1e-12 {
		t.Errorf("Expected covariance shrunk to 0.1, got %g", p.Init)
	}
}

func TestTranslations(t *testing.T) {
	m := parseModel(t, phenoModel)
	trans := m.ParameterTranslation(false, true)
	if trans["THETA(1)"] != "TVCL" || trans["OMEGA(1,1)"] != "IVCL" {
		t.Errorf("Unexpected forward translation %v", trans)
	}
	if _, ok := trans["SIGMA(1,1)"]; ok {
		t.Error("Idempotent mappings must be dropped")
	}
	rev := m.ParameterTranslation(true, true)
	if rev["TVCL"] != "THETA(1)" {
		t.Errorf("Unexpected reverse translation %v", rev)
	}

	rv := m.RVTranslation(false, false)
	if rv["ETA(1)"] != "ETA(1)" || rv["EPS(1)"] != "EPS(1)" {
		t.Errorf("Unexpected rv translation %v", rv)
	}
}

func TestAbbreviatedReplaceNames(t *testing.T) {
	cfg := Config{ParameterNames: []string{NameAbbr, NameComment, NameBasic}}
	m, err := ParseModel(`$PROBLEM abbr
$ABBREVIATED REPLACE THETA(CL)=THETA(1)
$PRED
Y = THETA(1) + EPS(1)
$THETA 0.1
$SIGMA 1
`, cfg)
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	if !m.Parameters().Has("THETA_CL") {
		t.Errorf("Expected THETA_CL from REPLACE alias, got %v", m.Parameters().Names())
	}
	y := m.Statements().Before[0]
	if !expr.Contains(y.Expr, "THETA_CL") {
		t.Errorf("Expected alias applied in statements, got %s", y.Expr)
	}
}

func TestWriteEtasInAbbr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteEtasInAbbr = true
	m, err := ParseModel(phenoModel, cfg)
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	rename := map[string]string{"ETA(1)": "ETA_CL"}
	m.SetRandomVariables(m.RandomVariables().Subs(rename))
	m.SetStatements(m.Statements().Subs(rename))

	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if !strings.Contains(code, "$ABBREVIATED REPLACE ETA(CL)=ETA(1)") {
		t.Errorf("Expected an alias record for the renamed eta, got:\n%s", code)
	}
	if !strings.Contains(code, "EXP(ETA_CL)") {
		t.Errorf("Expected the resolved name kept in $PK, got:\n%s", code)
	}
}

func TestWriteEtasInAbbrDisabled(t *testing.T) {
	m := parseModel(t, phenoModel)
	rename := map[string]string{"ETA(1)": "ETA_CL"}
	m.SetRandomVariables(m.RandomVariables().Subs(rename))
	m.SetStatements(m.Statements().Subs(rename))

	code, err := m.Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if strings.Contains(code, "$ABBREVIATED") {
		t.Errorf("Expected no alias record without the option, got:\n%s", code)
	}
	if !strings.Contains(code, "EXP(ETA(1))") {
		t.Errorf("Expected the positional name restored in $PK, got:\n%s", code)
	}
}

func TestModelCopyIsIndependent(t *testing.T) {
	m := parseModel(t, phenoModel)
	c, err := m.Copy()
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	c.Parameters().SetInit("TVCL", 99)
	p, _ := m.Parameters().Get("TVCL")
	if p.Init == 99 {
		t.Error("Editing the copy must not touch the original")
	}
}
