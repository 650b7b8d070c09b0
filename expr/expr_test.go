package expr

import (
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"symbol", "CL", "CL"},
		{"integer", "2", "2"},
		{"decimal keeps literal", ".99", ".99"},
		{"product", "THETA(1)*WGT", "THETA(1) * WGT"},
		{"exp call", "TVCL*EXP(ETA(1))", "TVCL * EXP(ETA(1))"},
		{"division chain", "CL/V", "CL / V"},
		{"parenthesized", "Q/(VSS-V)", "Q / (VSS - V)"},
		{"power", "WGT**0.75", "WGT ** 0.75"},
		{"comparison", "APGR.LT.5", "APGR.LT.5"},
		{"symbolic comparison normalized", "APGR<5", "APGR.LT.5"},
		{"logic", "A.GT.0.AND.B.LE.2", "A.GT.0.AND.B.LE.2"},
		{"unary minus", "-(KA*A(1))", "-(KA * A(1))"},
		{"sum keeps order", "THETA(4) + THETA(5)", "THETA(4) + THETA(5)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got := e.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIndexedSymbolsAreAtomic(t *testing.T) {
	e := MustParse("THETA(1)*WGT + ETA(2)")
	free := Free(e)
	want := []string{"ETA(2)", "THETA(1)", "WGT"}
	if len(free) != len(want) {
		t.Fatalf("Free() = %v, want %v", free, want)
	}
	for i := range want {
		if free[i] != want[i] {
			t.Errorf("Free()[%d] = %q, want %q", i, free[i], want[i])
		}
	}
}

func TestSubsRenamesSymbols(t *testing.T) {
	e := MustParse("TVCL*EXP(ETA(1))")
	out := e.Subs(Rename(map[string]string{"ETA(1)": "ETA_CL"}))
	if got := out.String(); got != "TVCL * EXP(ETA_CL)" {
		t.Errorf("Subs result = %q", got)
	}
	// The original expression is unchanged.
	if got := e.String(); got != "TVCL * EXP(ETA(1))" {
		t.Errorf("original mutated: %q", got)
	}
}

func TestEqualComparesByValue(t *testing.T) {
	a := MustParse("0.1")
	b := MustParse(".1")
	if !Equal(a, b) {
		t.Error("0.1 and .1 should compare equal")
	}
	if Equal(MustParse("CL/V"), MustParse("V/CL")) {
		t.Error("CL/V and V/CL must not compare equal")
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"CL +", "(A", "A..B", "1.2.3.XX."} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestContains(t *testing.T) {
	e := MustParse("VM/(KM + A(2)/VC)")
	if !Contains(e, "A(2)") {
		t.Error("expected A(2) to occur free")
	}
	if Contains(e, "CL") {
		t.Error("CL should not occur")
	}
}
