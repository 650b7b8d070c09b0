package nonmem

import (
	"fmt"

	"github.com/pharmflow/go-nmtran/advan"
	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
)

// parseParameters folds the $THETA, $OMEGA and $SIGMA records in document
// order into one parameter set. Positional indices continue across records
// of the same kind; each record receives the first index and reports the
// next.
func parseParameters(doc *nmtran.Document, cfg Config, warn func(string)) (*model.Parameters, error) {
	useLabels := cfg.useSource(NameComment)
	seen := make(map[string]bool)
	params := &model.Parameters{}

	next := 1
	for _, rec := range doc.Thetas() {
		for _, p := range rec.Parameters(next, useLabels, seen, warn) {
			err := params.Add(model.Parameter{
				Name: p.Name, Init: p.Init, Lower: p.Lower, Upper: p.Upper, Fix: p.Fix,
			})
			if err != nil {
				return nil, nmtran.NewModelSyntaxError("%s", err)
			}
		}
		next += rec.Len()
	}

	for _, records := range [][]*nmtran.OmegaRecord{doc.Omegas(), doc.Sigmas()} {
		next = 1
		for _, rec := range records {
			entries, n := rec.Parameters(next, useLabels, seen, warn)
			for _, e := range entries {
				lower := float64(nmtran.MinLowerBound)
				if e.Row == e.Col {
					lower = 0
				}
				err := params.Add(model.Parameter{
					Name: e.Name, Init: e.Init, Lower: lower,
					Upper: nmtran.MaxUpperBound, Fix: e.Fix,
				})
				if err != nil {
					return nil, nmtran.NewModelSyntaxError("%s", err)
				}
			}
			next = n
		}
	}
	return params, nil
}

// parseRandomVariables builds the random-effect distributions from the
// $OMEGA and $SIGMA records. Diagonal entries become univariate normals,
// BLOCK records joint normals, and a SAME record repeats the previous block
// at the occasion level, lifting the original block to that level too.
// Fixed-to-zero diagonal entries are dummy terms and are excluded.
func parseRandomVariables(doc *nmtran.Document) (*model.RandomVariables, error) {
	rvs := model.NewRandomVariables()
	if err := collectDists(rvs, doc.Omegas(), "ETA", model.LevelIIV); err != nil {
		return nil, err
	}
	if err := collectDists(rvs, doc.Sigmas(), "EPS", model.LevelRUV); err != nil {
		return nil, err
	}
	return rvs, nil
}

func collectDists(rvs *model.RandomVariables, records []*nmtran.OmegaRecord, etaPrefix string, level model.Level) error {
	next := 1
	var prevJoint *model.JointDistribution
	prevJointIdx := -1
	for _, rec := range records {
		if rec.Same() {
			if prevJoint == nil {
				return nmtran.NewModelSyntaxError("SAME without a preceding BLOCK record")
			}
			size := len(prevJoint.VarNames)
			names := make([]string, size)
			for i := range names {
				names[i] = fmt.Sprintf("%s(%d)", etaPrefix, next+i)
			}
			// Repetition across records means occasion-level variability for
			// both the original block and its repeats.
			if prevJointIdx >= 0 {
				lifted := *prevJoint
				lifted.Lvl = model.LevelIOV
				rvs.ReplaceAt(prevJointIdx, lifted)
			}
			repeat := model.JointDistribution{
				VarNames: names, Lvl: model.LevelIOV, Covariance: prevJoint.Covariance,
			}
			rvs.Add(repeat)
			next += size
			continue
		}

		entries, n := rec.Parameters(next, false, nil, nil)
		resolved := func(pos int) string {
			if name, ok := rec.NameMap().NameOf(pos); ok {
				return name
			}
			return entries[pos-1].Name
		}
		if size, isBlock := rec.Block(); isBlock {
			names := make([]string, size)
			for i := range names {
				names[i] = fmt.Sprintf("%s(%d)", etaPrefix, next+i)
			}
			cov := make([][]string, size)
			for i := range cov {
				cov[i] = make([]string, size)
			}
			for pos, e := range entries {
				r, c := e.Row-next+1, e.Col-next+1
				cov[r-1][c-1] = resolved(pos + 1)
				cov[c-1][r-1] = cov[r-1][c-1]
			}
			joint := model.JointDistribution{VarNames: names, Lvl: level, Covariance: cov}
			rvs.Add(joint)
			prevJoint = &joint
			prevJointIdx = rvs.Len() - 1
		} else {
			prevJoint = nil
			prevJointIdx = -1
			for pos, e := range entries {
				if e.ZeroFix {
					continue
				}
				rvs.Add(model.NormalDistribution{
					Name:     fmt.Sprintf("%s(%d)", etaPrefix, e.Row),
					Lvl:      level,
					VarParam: resolved(pos + 1),
				})
			}
		}
		next = n
	}
	return nil
}

// subroutines returns the ADVAN and TRANS selections from $SUBROUTINES.
func subroutines(doc *nmtran.Document) (advanID, trans string) {
	rec := doc.First("SUBROUTINES")
	if rec == nil {
		return "", ""
	}
	opt, ok := rec.(*nmtran.OptionRecord)
	if !ok {
		return "", ""
	}
	for _, o := range opt.AllOptions() {
		key := o.Key
		switch {
		case len(key) > 5 && key[:5] == "ADVAN":
			advanID = key
		case len(key) > 5 && key[:5] == "TRANS":
			trans = key
		case key == "ADVAN" && o.Value != "":
			advanID = "ADVAN" + o.Value
		case key == "TRANS" && o.Value != "":
			trans = "TRANS" + o.Value
		}
	}
	return advanID, trans
}

// parseStatements assembles the full statement sequence: $PK (or $PRED)
// statements, the structural system, and the $ERROR statements with the
// observation link first.
func parseStatements(m *Model) (model.Statements, error) {
	doc := m.doc
	var stmts model.Statements
	if pred := doc.Code("PRED"); pred != nil {
		before, err := pred.Statements()
		if err != nil {
			return stmts, err
		}
		stmts.Before = before
		return stmts, nil
	}

	if pk := doc.Code("PK"); pk != nil {
		before, err := pk.Statements()
		if err != nil {
			return stmts, err
		}
		stmts.Before = before
	}

	advanID, trans := subroutines(doc)
	result, err := advan.Compartmental(doc, advanID, trans, m.doseForCompartment)
	if err != nil {
		return stmts, err
	}
	if result != nil {
		stmts.ODE = result.ODE
		m.compMap = result.CompMap
		stmts.After = append(stmts.After, result.FLink)
	}

	if errRec := doc.Code("ERROR"); errRec != nil {
		after, err := errRec.Statements()
		if err != nil {
			return stmts, err
		}
		stmts.After = append(stmts.After, after...)
	}
	return stmts, nil
}

// doseForCompartment resolves dosing from the dataset RATE column, falling
// back to a bolus when the dataset cannot be read.
func (m *Model) doseForCompartment(compNo int) model.Dose {
	ds, err := m.Dataset()
	if err != nil || ds == nil {
		return advan.Dosing(nil, false, compNo)
	}
	hasRate := ds.HasColumn("RATE")
	if col, ok := m.datainfo.Column("RATE"); ok && col.Drop {
		hasRate = false
	}
	var rates []float64
	if hasRate {
		rates, _ = ds.FloatColumn("RATE")
	}
	return advan.Dosing(rates, hasRate, compNo)
}
