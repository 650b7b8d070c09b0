package nmtran

import (
	"strings"
	"testing"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
)

func codeRecord(t *testing.T, text string) *CodeRecord {
	t.Helper()
	doc := parseOne(t, text)
	for _, rec := range doc.Records {
		if c, ok := rec.(*CodeRecord); ok {
			return c
		}
	}
	t.Fatal("no code record in document")
	return nil
}

func TestCodeStatements(t *testing.T) {
	rec := codeRecord(t, "$PK\nCL=THETA(1)*EXP(ETA(1))\nV=THETA(2)\nS1=V ; scaling\n")
	stmts, err := rec.Statements()
	if err != nil {
		t.Fatalf("Statements failed: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(stmts))
	}
	if stmts[0].Symbol != "CL" {
		t.Errorf("Expected first symbol CL, got %s", stmts[0].Symbol)
	}
	want := expr.Mul(expr.Sym("THETA(1)"), expr.Call{Name: "EXP", Args: []expr.Expr{expr.Sym("ETA(1)")}})
	if !expr.Equal(stmts[0].Expr, want) {
		t.Errorf("Expected %s, got %s", want, stmts[0].Expr)
	}
	if stmts[2].Symbol != "S1" {
		t.Errorf("Comment must not swallow the assignment: %v", stmts[2])
	}
}

func TestCodeSingleLineIf(t *testing.T) {
	rec := codeRecord(t, "$PK\nBTIME=0\nIF (AMT.GT.0) BTIME=TIME\n")
	stmts, err := rec.Statements()
	if err != nil {
		t.Fatalf("Statements failed: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(stmts))
	}
	pw, ok := stmts[1].Expr.(expr.Piecewise)
	if !ok {
		t.Fatalf("Expected piecewise, got %T", stmts[1].Expr)
	}
	if len(pw.Branches) != 1 || pw.Branches[0].Cond == nil {
		t.Fatalf("Expected one conditional branch, got %v", pw.Branches)
	}
	if got := stmts[1].String(); got != "IF (AMT.GT.0) BTIME = TIME" {
		t.Errorf("Unexpected rendering %q", got)
	}
}

func TestCodeIfBlock(t *testing.T) {
	rec := codeRecord(t, `$ERROR
IF (DVID.EQ.1) THEN
    Y = F + F*EPS(1)
ELSE IF (DVID.EQ.2) THEN
    Y = F + F*EPS(2)
ELSE
    Y = F
END IF
`)
	stmts, err := rec.Statements()
	if err != nil {
		t.Fatalf("Statements failed: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("Expected 1 merged statement, got %d", len(stmts))
	}
	pw, ok := stmts[0].Expr.(expr.Piecewise)
	if !ok {
		t.Fatalf("Expected piecewise, got %T", stmts[0].Expr)
	}
	if len(pw.Branches) != 3 {
		t.Fatalf("Expected 3 branches, got %d", len(pw.Branches))
	}
	if pw.Branches[2].Cond != nil {
		t.Error("Expected final branch to be the default")
	}

	lines := stmts[0].Lines()
	wantFirst := "IF (DVID.EQ.1) THEN"
	if lines[0] != wantFirst {
		t.Errorf("Expected %q, got %q", wantFirst, lines[0])
	}
	if lines[len(lines)-1] != "END IF" {
		t.Errorf("Expected END IF terminator, got %q", lines[len(lines)-1])
	}
}

func TestCodeUnmatchedTerminator(t *testing.T) {
	rec := codeRecord(t, "$PK\nENDIF\n")
	if _, err := rec.Statements(); err == nil {
		t.Fatal("Expected error for unmatched ENDIF")
	}
}

func TestCodeRawLinesSurvive(t *testing.T) {
	rec := codeRecord(t, "$PK\nCALLFL=1\nCL=THETA(1)\nWRITE (6,*) CL\n")
	stmts, err := rec.Statements()
	if err != nil {
		t.Fatalf("Statements failed: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(stmts))
	}
	last := stmts[2]
	if last.Raw == "" || !strings.Contains(last.Raw, "WRITE") {
		t.Errorf("Expected WRITE kept as raw statement, got %+v", last)
	}
}

func TestCodeSetStatements(t *testing.T) {
	rec := codeRecord(t, "$PK\nCL=THETA(1)\n")
	rec.SetStatements([]model.Assignment{
		model.NewAssignment("CL", expr.Mul(expr.Sym("TVCL"), expr.Call{Name: "EXP", Args: []expr.Expr{expr.Sym("ETA(1)")}})),
		model.NewAssignment("V", expr.Sym("TVV")),
	})
	got := rec.String()
	if !strings.HasPrefix(got, "$PK\n") {
		t.Errorf("Expected record to keep its name token, got %q", got)
	}
	if !strings.Contains(got, "CL = TVCL * EXP(ETA(1))\n") {
		t.Errorf("Expected regenerated CL line, got %q", got)
	}
	if !strings.HasSuffix(got, "V = TVV\n") {
		t.Errorf("Expected regenerated V line last, got %q", got)
	}
}

func TestCodeFindAssignment(t *testing.T) {
	rec := codeRecord(t, "$PK\nS1=V\nS1=V/1000\n")
	a, ok := rec.FindAssignment("S1")
	if !ok {
		t.Fatal("Expected S1 assignment")
	}
	want := expr.Div(expr.Sym("V"), expr.Int(1000))
	if !expr.Equal(a.Expr, want) {
		t.Errorf("Expected last assignment to win: got %s", a.Expr)
	}
}
