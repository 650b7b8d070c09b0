package nmtran

import (
	"testing"
)

func TestOmegaDiagonal(t *testing.T) {
	doc := parseOne(t, "$OMEGA 0.0309626 0.031128\n")
	rec := doc.Omegas()[0]
	entries, next := rec.Parameters(1, false, nil, nil)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if next != 3 {
		t.Errorf("Expected next index 3, got %d", next)
	}
	for i, e := range entries {
		if e.Row != i+1 || e.Col != i+1 {
			t.Errorf("Entry %d: expected diagonal (%d,%d), got (%d,%d)", i, i+1, i+1, e.Row, e.Col)
		}
	}
	if entries[0].Name != "OMEGA(1,1)" || entries[1].Name != "OMEGA(2,2)" {
		t.Errorf("Expected basic names, got %s %s", entries[0].Name, entries[1].Name)
	}
}

func TestOmegaBlock(t *testing.T) {
	doc := parseOne(t, "$OMEGA BLOCK(2)\n 0.1\n 0.01 0.2\n")
	rec := doc.Omegas()[0]
	size, isBlock := rec.Block()
	if !isBlock || size != 2 {
		t.Fatalf("Expected BLOCK(2), got size=%d block=%v", size, isBlock)
	}
	entries, next := rec.Parameters(1, false, nil, nil)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries in lower triangle, got %d", len(entries))
	}
	if next != 3 {
		t.Errorf("Expected next index 3, got %d", next)
	}
	wantPos := [][2]int{{1, 1}, {2, 1}, {2, 2}}
	wantInit := []float64{0.1, 0.01, 0.2}
	for i, e := range entries {
		if e.Row != wantPos[i][0] || e.Col != wantPos[i][1] {
			t.Errorf("Entry %d: expected (%d,%d), got (%d,%d)", i, wantPos[i][0], wantPos[i][1], e.Row, e.Col)
		}
		if e.Init != wantInit[i] {
			t.Errorf("Entry %d: expected init %g, got %g", i, wantInit[i], e.Init)
		}
	}
}

func TestOmegaBlockFixAppliesToAllEntries(t *testing.T) {
	doc := parseOne(t, "$OMEGA BLOCK(2)\n 0.1 FIX\n 0.01 0.2\n")
	rec := doc.Omegas()[0]
	entries, _ := rec.Parameters(1, false, nil, nil)
	for i, e := range entries {
		if !e.Fix {
			t.Errorf("Entry %d: expected Fix in a FIX block", i)
		}
	}
}

func TestOmegaSame(t *testing.T) {
	doc := parseOne(t, "$OMEGA BLOCK(1) 0.1\n$OMEGA BLOCK(1) SAME\n")
	recs := doc.Omegas()
	if recs[0].Same() {
		t.Error("First record should not report SAME")
	}
	if !recs[1].Same() {
		t.Error("Second record should report SAME")
	}
}

func TestOmegaZeroFix(t *testing.T) {
	doc := parseOne(t, "$OMEGA 0.1\n$OMEGA 0 FIX\n")
	recs := doc.Omegas()
	if names := recs[0].ZeroFix(1); len(names) != 0 {
		t.Errorf("Expected no zero-fix entries, got %v", names)
	}
	names := recs[1].ZeroFix(2)
	if len(names) != 1 || names[0] != "ETA(2)" {
		t.Errorf("Expected [ETA(2)], got %v", names)
	}
}

func TestSigmaUsesEpsNames(t *testing.T) {
	doc := parseOne(t, "$SIGMA 0.013241\n")
	rec := doc.Sigmas()[0]
	entries, _ := rec.Parameters(1, false, nil, nil)
	if entries[0].Name != "SIGMA(1,1)" {
		t.Errorf("Expected SIGMA(1,1), got %s", entries[0].Name)
	}
	em := rec.EtaMap()
	if _, ok := em.Index("EPS(1)"); !ok {
		t.Errorf("Expected eta map to hold EPS(1), got %v", em.Names())
	}
}

func TestOmegaUpdate(t *testing.T) {
	text := "$OMEGA  0.0309626  ; IIV CL\n"
	doc := parseOne(t, text)
	rec := doc.Omegas()[0]
	rec.Parameters(1, false, nil, nil)

	rec.Update(map[string]ParamValue{"OMEGA(1,1)": {Init: 0.04}})
	want := "$OMEGA  0.04  ; IIV CL\n"
	if got := doc.Render(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestOmegaRemoveDiagonalEntry(t *testing.T) {
	doc := parseOne(t, "$OMEGA 0.1 0.2 0.3\n")
	rec := doc.Omegas()[0]
	rec.Parameters(1, false, nil, nil)

	rec.Remove([]string{"OMEGA(2,2)"})
	if rec.Len() != 2 {
		t.Fatalf("Expected 2 entries after removal, got %d", rec.Len())
	}
	entries, _ := rec.Parameters(1, false, nil, nil)
	if entries[0].Init != 0.1 || entries[1].Init != 0.3 {
		t.Errorf("Expected inits [0.1 0.3], got [%g %g]", entries[0].Init, entries[1].Init)
	}
}
