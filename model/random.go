package model

import (
	"fmt"
	"math"

	"github.com/pharmflow/go-nmtran/expr"
)

// Level is the variability level a random effect acts on.
type Level string

const (
	// LevelIIV is between-subject variability.
	LevelIIV Level = "IIV"
	// LevelIOV is between-occasion variability.
	LevelIOV Level = "IOV"
	// LevelRUV is residual unexplained variability.
	LevelRUV Level = "RUV"
)

// Distribution is one normal or joint-normal random effect block.
type Distribution interface {
	// Names returns the random variable names in declaration order.
	Names() []string
	// Level returns the variability level.
	Level() Level
	// Variance returns the variance parameter name of the named variable.
	Variance(name string) (string, bool)
	// Subs returns a copy with variable and parameter names substituted.
	Subs(rename map[string]string) Distribution
}

// NormalDistribution is a univariate zero-mean normal random effect.
type NormalDistribution struct {
	Name     string
	Lvl      Level
	VarParam string
}

// Names implements Distribution.
func (d NormalDistribution) Names() []string { return []string{d.Name} }

// Level implements Distribution.
func (d NormalDistribution) Level() Level { return d.Lvl }

// Variance implements Distribution.
func (d NormalDistribution) Variance(name string) (string, bool) {
	if name != d.Name {
		return "", false
	}
	return d.VarParam, true
}

// Subs implements Distribution.
func (d NormalDistribution) Subs(rename map[string]string) Distribution {
	if to, ok := rename[d.Name]; ok {
		d.Name = to
	}
	if to, ok := rename[d.VarParam]; ok {
		d.VarParam = to
	}
	return d
}

// JointDistribution is a correlated zero-mean multivariate normal block.
// Covariance holds parameter names for the full symmetric matrix, indexed
// [row][col] over Names order.
type JointDistribution struct {
	VarNames   []string
	Lvl        Level
	Covariance [][]string
}

// Names implements Distribution.
func (d JointDistribution) Names() []string { return d.VarNames }

// Level implements Distribution.
func (d JointDistribution) Level() Level { return d.Lvl }

// Variance implements Distribution.
func (d JointDistribution) Variance(name string) (string, bool) {
	for i, n := range d.VarNames {
		if n == name {
			return d.Covariance[i][i], true
		}
	}
	return "", false
}

// Subs implements Distribution.
func (d JointDistribution) Subs(rename map[string]string) Distribution {
	names := make([]string, len(d.VarNames))
	for i, n := range d.VarNames {
		if to, ok := rename[n]; ok {
			n = to
		}
		names[i] = n
	}
	cov := make([][]string, len(d.Covariance))
	for i, row := range d.Covariance {
		cov[i] = make([]string, len(row))
		for j, p := range row {
			if to, ok := rename[p]; ok {
				p = to
			}
			cov[i][j] = p
		}
	}
	return JointDistribution{VarNames: names, Lvl: d.Lvl, Covariance: cov}
}

// RandomVariables is the ordered collection of random-effect distributions
// of a model. Etas (IIV/IOV) precede epsilons (RUV) in NONMEM order but the
// collection itself preserves declaration order.
type RandomVariables struct {
	dists []Distribution
}

// NewRandomVariables builds a collection from distributions in order.
func NewRandomVariables(dists ...Distribution) *RandomVariables {
	return &RandomVariables{dists: dists}
}

// Add appends a distribution.
func (rvs *RandomVariables) Add(d Distribution) {
	rvs.dists = append(rvs.dists, d)
}

// All returns the distributions in declaration order.
func (rvs *RandomVariables) All() []Distribution {
	if rvs == nil {
		return nil
	}
	return rvs.dists
}

// ReplaceAt swaps the distribution at position i.
func (rvs *RandomVariables) ReplaceAt(i int, d Distribution) {
	rvs.dists[i] = d
}

// Etas returns the distributions at the IIV or IOV level.
func (rvs *RandomVariables) Etas() []Distribution {
	var out []Distribution
	for _, d := range rvs.All() {
		if d.Level() != LevelRUV {
			out = append(out, d)
		}
	}
	return out
}

// Epsilons returns the distributions at the RUV level.
func (rvs *RandomVariables) Epsilons() []Distribution {
	var out []Distribution
	for _, d := range rvs.All() {
		if d.Level() == LevelRUV {
			out = append(out, d)
		}
	}
	return out
}

// Names returns every random variable name in declaration order.
func (rvs *RandomVariables) Names() []string {
	var out []string
	for _, d := range rvs.All() {
		out = append(out, d.Names()...)
	}
	return out
}

// EtaNames returns the names of the IIV/IOV variables.
func (rvs *RandomVariables) EtaNames() []string {
	var out []string
	for _, d := range rvs.Etas() {
		out = append(out, d.Names()...)
	}
	return out
}

// EpsilonNames returns the names of the RUV variables.
func (rvs *RandomVariables) EpsilonNames() []string {
	var out []string
	for _, d := range rvs.Epsilons() {
		out = append(out, d.Names()...)
	}
	return out
}

// Has reports whether a random variable with the given name exists.
func (rvs *RandomVariables) Has(name string) bool {
	for _, n := range rvs.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// VarianceParams returns the variance parameter names referenced by any
// distribution, including off-diagonal covariances.
func (rvs *RandomVariables) VarianceParams() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, d := range rvs.All() {
		switch dd := d.(type) {
		case NormalDistribution:
			add(dd.VarParam)
		case JointDistribution:
			for i, row := range dd.Covariance {
				for j := 0; j <= i; j++ {
					add(row[j])
				}
			}
		}
	}
	return out
}

// Subs returns a copy with variable and parameter names substituted.
func (rvs *RandomVariables) Subs(rename map[string]string) *RandomVariables {
	out := &RandomVariables{dists: make([]Distribution, len(rvs.dists))}
	for i, d := range rvs.dists {
		out.dists[i] = d.Subs(rename)
	}
	return out
}

// Copy returns a deep copy.
func (rvs *RandomVariables) Copy() *RandomVariables {
	return rvs.Subs(nil)
}

// Len returns the number of distributions.
func (rvs *RandomVariables) Len() int {
	if rvs == nil {
		return 0
	}
	return len(rvs.dists)
}

// SymbolFor returns the symbolic form of a random variable for use in
// statements.
func SymbolFor(name string) expr.Expr {
	return expr.Sym(name)
}

// NearestValid adjusts initial estimates so every covariance block is
// positive semidefinite: negative diagonal variances are clamped to zero and
// off-diagonal covariances are shrunk until each pair satisfies
// |cov| <= sqrt(v_i*v_j). The input map is not modified; the returned map
// contains only changed entries.
func (rvs *RandomVariables) NearestValid(inits map[string]float64) map[string]float64 {
	fixed := make(map[string]float64)
	get := func(p string) float64 {
		if v, ok := fixed[p]; ok {
			return v
		}
		return inits[p]
	}
	for _, d := range rvs.All() {
		switch dd := d.(type) {
		case NormalDistribution:
			if v := get(dd.VarParam); v < 0 {
				fixed[dd.VarParam] = 0
			}
		case JointDistribution:
			n := len(dd.Covariance)
			for i := 0; i < n; i++ {
				if v := get(dd.Covariance[i][i]); v < 0 {
					fixed[dd.Covariance[i][i]] = 0
				}
			}
			// Pairwise shrink; repeated until stable for chains of
			// violations across a larger block.
			for pass := 0; pass < n; pass++ {
				changed := false
				for i := 1; i < n; i++ {
					for j := 0; j < i; j++ {
						vi := get(dd.Covariance[i][i])
						vj := get(dd.Covariance[j][j])
						cov := get(dd.Covariance[i][j])
						bound := math.Sqrt(vi * vj)
						if math.Abs(cov) > bound {
							fixed[dd.Covariance[i][j]] = math.Copysign(bound, cov)
							changed = true
						}
					}
				}
				if !changed {
					break
				}
			}
		}
	}
	return fixed
}

// ValidateVariances returns an error if any diagonal variance initial is
// negative or any pairwise covariance exceeds its PSD bound.
func (rvs *RandomVariables) ValidateVariances(inits map[string]float64) error {
	if len(rvs.NearestValid(inits)) != 0 {
		return fmt.Errorf("covariance matrix of random effects is not positive semidefinite")
	}
	return nil
}
