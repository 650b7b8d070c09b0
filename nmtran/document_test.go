package nmtran

import (
	"strings"
	"testing"
)

const pheno = `$PROBLEM PHENOBARB SIMPLE MODEL
$DATA pheno.dta IGNORE=@
$INPUT ID TIME AMT WGT APGR DV
$SUBROUTINES ADVAN1 TRANS2

$PK
CL=THETA(1)*EXP(ETA(1))
V=THETA(2)*EXP(ETA(2))
S1=V

$ERROR
Y=F+F*EPS(1)

$THETA (0,0.00469307) ; CL
$THETA (0,1.00916) ; V
$OMEGA 0.0309626  ; IVCL
$OMEGA 0.031128  ; IVV
$SIGMA 0.013241
$ESTIMATION METHOD=1 INTERACTION
`

func TestParseRenderIdentity(t *testing.T) {
	doc, err := Parse(pheno)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := doc.Render(); got != pheno {
		t.Errorf("Render does not reproduce the input:\n--- want\n%s--- got\n%s", pheno, got)
	}
}

func TestRenderIdentityPreservesOddFormatting(t *testing.T) {
	texts := []string{
		"; leading comment\n$PROBLEM test\n$THETA\t(0, 1 ,  2)   FIX ;x\n",
		"$PROB a\r\n$THETA 1\r\n",
		"$THETA 2 ; no trailing newline",
	}
	for _, text := range texts {
		doc, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", text, err)
		}
		if got := doc.Render(); got != text {
			t.Errorf("Render mismatch for %q: got %q", text, got)
		}
	}
}

func TestRecordNameAbbreviation(t *testing.T) {
	tests := []struct {
		tok  string
		kind string
	}{
		{"THETA", "THETA"},
		{"THET", "THETA"},
		{"THE", "THETA"},
		{"PK", "PK"},
		{"EST", "ESTIMATION"},
		{"ESTIMATION", "ESTIMATION"},
		{"SUBS", "SUBROUTINES"},
		{"SIM", "SIMULATION"},
		{"SIML", "SIMULATION"},
		{"SIMULATE", "SIMULATION"},
		{"TH", ""},   // too short
		{"ES", ""},   // too short
		{"XYZZY", ""}, // unknown
	}
	for _, tt := range tests {
		if got := canonicalKind(tt.tok); got != tt.kind {
			t.Errorf("canonicalKind(%s): expected %q, got %q", tt.tok, tt.kind, got)
		}
	}
}

func TestNodeWalk(t *testing.T) {
	tree := Tree("root", Leaf("A", "a"), Tree("mid", Leaf("B", "b"), Leaf("C", "c")))
	var visited []string
	tree.Walk(func(n *Node) bool {
		visited = append(visited, n.Rule)
		return n.Rule != "B"
	})
	want := []string{"root", "A", "mid", "B"}
	if len(visited) != len(want) {
		t.Fatalf("Expected visits %v, got %v", want, visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("Expected visits %v, got %v", want, visited)
			break
		}
	}
	if leaf := tree.FirstLeaf(); leaf == nil || leaf.Value != "a" {
		t.Errorf("Expected first leaf a, got %v", leaf)
	}
}

func TestAbbreviatedRecordRoundTrip(t *testing.T) {
	text := "$THET 1.5\n$OMEG 0.1\n"
	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Thetas()) != 1 || len(doc.Omegas()) != 1 {
		t.Fatalf("Abbreviated record tokens not resolved")
	}
	if got := doc.Render(); got != text {
		t.Errorf("Abbreviated tokens must render as written: %q", got)
	}
}

func TestDocumentAppendAndRemove(t *testing.T) {
	doc, err := Parse("$PROBLEM test\n$THETA 1\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rec, err := doc.Append("$OMEGA 0.1\n")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if rec.Kind() != "OMEGA" {
		t.Errorf("Expected OMEGA record, got %s", rec.Kind())
	}
	if !strings.HasSuffix(doc.Render(), "$OMEGA 0.1\n") {
		t.Errorf("Expected appended record at end, got %q", doc.Render())
	}

	doc.Remove(rec)
	if got := doc.Render(); got != "$PROBLEM test\n$THETA 1\n" {
		t.Errorf("Remove left %q", got)
	}
}

func TestDataRecord(t *testing.T) {
	doc, err := Parse("$DATA pheno.dta IGNORE=@ IGNORE=(DV.EQ.0) NULL=1\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rec := doc.First("DATA").(*DataRecord)
	if rec.Filename() != "pheno.dta" {
		t.Errorf("Expected filename pheno.dta, got %s", rec.Filename())
	}
	if rec.IgnoreCharacter() != "@" {
		t.Errorf("Expected ignore character @, got %q", rec.IgnoreCharacter())
	}
	filters := rec.Ignore()
	if len(filters) != 1 || filters[0] != "DV.EQ.0" {
		t.Errorf("Expected filter [DV.EQ.0], got %v", filters)
	}
	if rec.NullValue() != "1" {
		t.Errorf("Expected NULL=1, got %q", rec.NullValue())
	}

	rec.RemoveIgnore()
	if len(rec.Ignore()) != 0 {
		t.Error("Expected row filters removed")
	}
	if rec.IgnoreCharacter() != "@" {
		t.Error("Ignore character must survive filter removal")
	}

	rec.SetFilename("new data.csv")
	if !strings.Contains(rec.String(), "'new data.csv'") {
		t.Errorf("Expected quoted filename, got %q", rec.String())
	}
}

func TestOptionRecord(t *testing.T) {
	doc, err := Parse("$ESTIMATION METHOD=1 INTERACTION MAXEVAL=9999\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rec := doc.First("ESTIMATION").(*OptionRecord)
	if v, ok := rec.GetOption("METHOD"); !ok || v != "1" {
		t.Errorf("Expected METHOD=1, got %q ok=%v", v, ok)
	}
	if !rec.HasOption("INTERACTION") {
		t.Error("Expected INTERACTION present")
	}

	rec.SetOption("MAXEVAL", "0")
	if !strings.Contains(rec.String(), "MAXEVAL=0") {
		t.Errorf("Expected MAXEVAL rewritten, got %q", rec.String())
	}

	rec.SetOption("MCETA", "1")
	if !strings.Contains(rec.String(), "MCETA=1") {
		t.Errorf("Expected MCETA appended, got %q", rec.String())
	}
	if !strings.HasSuffix(rec.String(), "\n") {
		t.Errorf("Appending must keep the trailing newline: %q", rec.String())
	}
}

func TestNameMapBijection(t *testing.T) {
	nm := NewNameMap()
	nm.Set("CL", 1)
	nm.Set("V", 2)

	if err := nm.Rename("CL", "V"); err == nil {
		t.Error("Renaming onto an existing name must fail")
	}
	if err := nm.Rename("CL", "CLEARANCE"); err != nil {
		t.Errorf("Rename failed: %v", err)
	}
	if idx, _ := nm.Index("CLEARANCE"); idx != 1 {
		t.Errorf("Expected CLEARANCE at 1, got %d", idx)
	}

	// Binding a new name to a used index evicts the old name.
	nm.Set("VOLUME", 2)
	if _, ok := nm.Index("V"); ok {
		t.Error("Expected V evicted after rebinding index 2")
	}

	nm.Remove("CLEARANCE")
	nm.Renumber(1)
	if idx, _ := nm.Index("VOLUME"); idx != 1 {
		t.Errorf("Expected VOLUME renumbered to 1, got %d", idx)
	}
}
