package table

import (
	"os"
	"path/filepath"
	"testing"
)

const extText = `TABLE NO.     1: First Order Conditional Estimation with Interaction
 ITERATION    THETA1       THETA2       SIGMA(1,1)   OMEGA(1,1)   OMEGA(2,2)   OBJ
            0  4.69307E-03  1.00916E+00  1.32410E-02  3.09626E-02  3.11280E-02    587.36109
            5  5.55000E-03  1.33000E+00  1.32410E-02  2.50000E-02  2.80000E-02    586.27605
  -1000000000  5.55000E-03  1.33000E+00  1.32410E-02  2.50000E-02  2.80000E-02    586.27605
  -1000000001  2.00000E-04  7.00000E-02  4.00000E-03  1.00000E-02  1.00000E-02    0.00000
`

func TestParseExt(t *testing.T) {
	f, err := Parse(extText)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(f.Tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(f.Tables))
	}
	tab := f.Last()
	if tab.Number != 1 {
		t.Errorf("Expected table number 1, got %d", tab.Number)
	}
	if tab.Name != "First Order Conditional Estimation with Interaction" {
		t.Errorf("Unexpected table name %q", tab.Name)
	}
	if len(tab.Columns) != 7 || tab.Columns[0] != "ITERATION" || tab.Columns[6] != "OBJ" {
		t.Errorf("Unexpected columns %v", tab.Columns)
	}
	if len(tab.Rows) != 4 {
		t.Errorf("Expected 4 rows, got %d", len(tab.Rows))
	}

	col, ok := tab.Column("THETA2")
	if !ok || col[0] != 1.00916 {
		t.Errorf("Expected THETA2 column starting 1.00916, got %v ok=%v", col, ok)
	}
	row, ok := tab.Row("ITERATION", ExtStandardErrors)
	if !ok || row[1] != 2.0e-4 {
		t.Errorf("Expected standard error row, got %v ok=%v", row, ok)
	}
}

func TestParseHeaderlessTable(t *testing.T) {
	f, err := Parse(" ID DV\n 1 17.3\n 1 31.0\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(f.Tables) != 1 || f.Tables[0].Number != 1 {
		t.Fatalf("Expected single implicit table, got %+v", f.Tables)
	}
	if len(f.Tables[0].Rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(f.Tables[0].Rows))
	}
}

func TestParseSkipsRepeatedHeaders(t *testing.T) {
	f, err := Parse("TABLE NO. 1\n ID DV\n 1 17.3\n ID DV\n 2 9.7\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tab := f.Last()
	if len(tab.Rows) != 2 {
		t.Errorf("Expected repeated header skipped, got rows %v", tab.Rows)
	}
}

func TestFinalEstimates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run1.ext")
	if err := os.WriteFile(path, []byte(extText), 0o644); err != nil {
		t.Fatal(err)
	}
	est, err := FinalEstimates(path)
	if err != nil {
		t.Fatalf("FinalEstimates failed: %v", err)
	}
	if est["THETA1"] != 5.55e-3 {
		t.Errorf("Expected THETA1 5.55e-3, got %g", est["THETA1"])
	}
	if est["OMEGA(2,2)"] != 2.8e-2 {
		t.Errorf("Expected OMEGA(2,2) 2.8e-2, got %g", est["OMEGA(2,2)"])
	}
	if est["OBJ"] != 586.27605 {
		t.Errorf("Expected final objective, got %g", est["OBJ"])
	}
}

func TestFinalEstimatesMissingSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run1.ext")
	text := "TABLE NO. 1\n ITERATION THETA1 OBJ\n 0 1.0 500.0\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := FinalEstimates(path); err == nil {
		t.Fatal("Expected error when no final estimate row exists")
	}
}

func TestPhiRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run1.phi")
	ids := []float64{1, 2, 3}
	values := map[string][]float64{
		"ETA(1)": {0.1, -0.2, 0.05},
		"ETA(2)": {-0.01, 0.3, 0},
	}
	if err := WritePhi(path, ids, []string{"ETA(1)", "ETA(2)"}, values); err != nil {
		t.Fatalf("WritePhi failed: %v", err)
	}

	gotIDs, etas, err := ReadPhi(path)
	if err != nil {
		t.Fatalf("ReadPhi failed: %v", err)
	}
	if len(gotIDs) != 3 || gotIDs[0] != 1 || gotIDs[2] != 3 {
		t.Errorf("Expected IDs [1 2 3], got %v", gotIDs)
	}
	if len(etas) != 2 {
		t.Fatalf("Expected 2 eta columns, got %v", etas)
	}
	for name, want := range values {
		got := etas[name]
		if len(got) != len(want) {
			t.Fatalf("Column %s: expected %v, got %v", name, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Column %s row %d: expected %g, got %g", name, i, want[i], got[i])
			}
		}
	}
}
