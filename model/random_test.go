package model

import (
	"math"
	"testing"
)

func TestRandomVariablesPartition(t *testing.T) {
	rvs := NewRandomVariables(
		NormalDistribution{Name: "ETA(1)", Lvl: LevelIIV, VarParam: "IVCL"},
		NormalDistribution{Name: "ETA(2)", Lvl: LevelIOV, VarParam: "OMEGA(2,2)"},
		NormalDistribution{Name: "EPS(1)", Lvl: LevelRUV, VarParam: "SIGMA(1,1)"},
	)
	if got := rvs.EtaNames(); len(got) != 2 || got[0] != "ETA(1)" || got[1] != "ETA(2)" {
		t.Errorf("Expected two etas, got %v", got)
	}
	if got := rvs.EpsilonNames(); len(got) != 1 || got[0] != "EPS(1)" {
		t.Errorf("Expected one epsilon, got %v", got)
	}
	if !rvs.Has("ETA(2)") || rvs.Has("ETA(3)") {
		t.Error("Has reports wrong membership")
	}
}

func TestJointDistributionVariance(t *testing.T) {
	joint := JointDistribution{
		VarNames: []string{"ETA(1)", "ETA(2)"},
		Lvl:      LevelIIV,
		Covariance: [][]string{
			{"OMEGA(1,1)", "OMEGA(2,1)"},
			{"OMEGA(2,1)", "OMEGA(2,2)"},
		},
	}
	if v, ok := joint.Variance("ETA(2)"); !ok || v != "OMEGA(2,2)" {
		t.Errorf("Expected OMEGA(2,2), got %q ok=%v", v, ok)
	}
	params := NewRandomVariables(joint).VarianceParams()
	want := map[string]bool{"OMEGA(1,1)": true, "OMEGA(2,1)": true, "OMEGA(2,2)": true}
	if len(params) != 3 {
		t.Fatalf("Expected 3 variance parameters, got %v", params)
	}
	for _, p := range params {
		if !want[p] {
			t.Errorf("Unexpected variance parameter %s", p)
		}
	}
}

func TestNearestValidClampsNegativeVariance(t *testing.T) {
	rvs := NewRandomVariables(
		NormalDistribution{Name: "ETA(1)", Lvl: LevelIIV, VarParam: "IVCL"},
	)
	fixed := rvs.NearestValid(map[string]float64{"IVCL": -0.1})
	if v, ok := fixed["IVCL"]; !ok || v != 0 {
		t.Errorf("Expected IVCL clamped to 0, got %v", fixed)
	}
	if len(rvs.NearestValid(map[string]float64{"IVCL": 0.1})) != 0 {
		t.Error("A valid variance must not be adjusted")
	}
}

func TestNearestValidShrinksCovariance(t *testing.T) {
	joint := JointDistribution{
		VarNames: []string{"ETA(1)", "ETA(2)"},
		Lvl:      LevelIIV,
		Covariance: [][]string{
			{"OMEGA(1,1)", "OMEGA(2,1)"},
			{"OMEGA(2,1)", "OMEGA(2,2)"},
		},
	}
	rvs := NewRandomVariables(joint)
	inits := map[string]float64{"OMEGA(1,1)": 0.04, "OMEGA(2,2)": 0.09, "OMEGA(2,1)": -0.1}
	fixed := rvs.NearestValid(inits)
	bound := math.Sqrt(0.04 * 0.09)
	if v, ok := fixed["OMEGA(2,1)"]; !ok || v != -bound {
		t.Errorf("Expected covariance shrunk to %g preserving sign, got %v", -bound, fixed)
	}
	if _, ok := fixed["OMEGA(1,1)"]; ok {
		t.Error("Diagonals within bounds must not change")
	}
	if err := rvs.ValidateVariances(inits); err == nil {
		t.Error("Expected validation error for the unadjusted matrix")
	}
}

func TestSubsRenamesVariablesAndParams(t *testing.T) {
	rvs := NewRandomVariables(
		NormalDistribution{Name: "ETA(1)", Lvl: LevelIIV, VarParam: "OMEGA(1,1)"},
	)
	out := rvs.Subs(map[string]string{"ETA(1)": "ETA_CL", "OMEGA(1,1)": "IVCL"})
	d := out.All()[0].(NormalDistribution)
	if d.Name != "ETA_CL" || d.VarParam != "IVCL" {
		t.Errorf("Expected renamed distribution, got %+v", d)
	}
	// The original collection is untouched.
	if rvs.All()[0].(NormalDistribution).Name != "ETA(1)" {
		t.Error("Subs must not mutate the receiver")
	}
}
