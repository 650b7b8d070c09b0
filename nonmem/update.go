package nonmem

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
	"github.com/pharmflow/go-nmtran/table"
)

// UpdateOptions controls artifact side effects of UpdateSource.
type UpdateOptions struct {
	// NoFiles suppresses writing datasets and phi files; records are still
	// rewritten to reference the paths they would have.
	NoFiles bool
	// OutputDir overrides where artifacts are written. Defaults to the model
	// file's directory, then the configured default output path.
	OutputDir string
}

// UpdateSource folds the symbolic edits made since parse (or since the last
// call) back into the document as textual changes. Parameter and
// random-variable reconciliation runs before statement regeneration so the
// statements are written with the final name translation; unrelated text is
// left untouched.
func (m *Model) UpdateSource(opts UpdateOptions) error {
	if err := m.updateInitialIndividualEstimates(opts); err != nil {
		return err
	}

	m.synthesizeDummyEta()

	if err := m.updateRandomVariables(); err != nil {
		return err
	}
	m.oldRVs = m.rvs.Copy()

	if err := m.updateParameters(); err != nil {
		return err
	}
	m.oldParameters = m.parameters.Copy()

	if err := m.updateStatements(); err != nil {
		return err
	}
	m.oldStatements = m.statements

	if err := m.updateDataset(opts); err != nil {
		return err
	}

	if m.name != m.oldName {
		m.renameArtifacts()
		m.oldName = m.name
	}
	return nil
}

// synthesizeDummyEta keeps $OMEGA non-empty when every eta has been
// removed: estimation-tool grammars require at least one random effect, so
// a fixed-to-zero omega, a dummy eta and a statement referencing it are
// injected. The construct is synthetic and named accordingly.
func (m *Model) synthesizeDummyEta() {
	if len(m.rvs.Etas()) > 0 {
		return
	}
	omega := model.Parameter{Name: "DUMMYOMEGA", Init: 0, Fix: true, Upper: nmtran.MaxUpperBound}
	if !m.parameters.Has(omega.Name) {
		_ = m.parameters.Add(omega)
	}
	eta := model.NormalDistribution{Name: "eta_dummy", Lvl: model.LevelIIV, VarParam: omega.Name}
	m.rvs.Add(eta)
	stmt := model.NewAssignment("DUMMYETA", expr.Sym(eta.Name))
	m.statements.Before = append([]model.Assignment{stmt}, m.statements.Before...)
}

// updateRandomVariables reconciles the $OMEGA/$SIGMA structure with the
// current random-variable collection: removed etas drop their variance
// parameters, new distributions get fresh records, and the eta maps are
// rebound to the current names.
func (m *Model) updateRandomVariables() error {
	oldVar := make(map[string]bool)
	for _, p := range m.oldRVs.VarianceParams() {
		oldVar[p] = true
	}
	newVar := make(map[string]bool)
	for _, p := range m.rvs.VarianceParams() {
		newVar[p] = true
	}
	// Variance parameters orphaned by removed etas leave the parameter set
	// too, which makes the parameter pass delete their record entries.
	for p := range oldVar {
		if !newVar[p] {
			m.parameters.Remove(p)
		}
	}

	// New joint distributions need whole BLOCK records; new univariate
	// distributions are handled by the parameter pass as appended diagonal
	// entries.
	oldNames := make(map[string]bool)
	for _, n := range m.oldRVs.Names() {
		oldNames[n] = true
	}
	for _, d := range m.rvs.All() {
		joint, ok := d.(model.JointDistribution)
		if !ok {
			continue
		}
		isNew := false
		for _, n := range joint.Names() {
			if !oldNames[n] {
				isNew = true
			}
		}
		if !isNew {
			continue
		}
		if err := m.appendBlockRecord(joint); err != nil {
			return err
		}
	}
	return nil
}

// appendBlockRecord renders and appends a $OMEGA BLOCK(n) (or $SIGMA)
// record for a new joint distribution.
func (m *Model) appendBlockRecord(joint model.JointDistribution) error {
	kind := "OMEGA"
	if joint.Level() == model.LevelRUV {
		kind = "SIGMA"
	}
	n := len(joint.VarNames)
	var sb strings.Builder
	fmt.Fprintf(&sb, "$%s BLOCK(%d)\n", kind, n)
	inits := m.parameters.Inits()
	for r := 0; r < n; r++ {
		sb.WriteString(" ")
		for c := 0; c <= r; c++ {
			sb.WriteString(" ")
			sb.WriteString(nmtran.FormatNumeric(inits[joint.Covariance[r][c]]))
		}
		sb.WriteString("\n")
	}
	_, err := m.doc.Append(sb.String())
	return err
}

// updateParameters diffs the old and new parameter sets by name and patches
// the $THETA/$OMEGA/$SIGMA records: removed entries are deleted and the
// numbering compacted, added entries get new clauses or records, and
// changed values rewrite only the tokens that differ.
func (m *Model) updateParameters() error {
	varianceParams := make(map[string]bool)
	for _, p := range m.rvs.VarianceParams() {
		varianceParams[p] = true
	}
	for _, p := range m.oldRVs.VarianceParams() {
		varianceParams[p] = true
	}

	newNames := make(map[string]bool)
	for _, name := range m.parameters.Names() {
		newNames[name] = true
	}

	if err := m.updateThetaRecords(newNames, varianceParams); err != nil {
		return err
	}
	if err := m.updateVarianceRecords(m.doc.Omegas(), "OMEGA", newNames); err != nil {
		return err
	}
	if err := m.updateVarianceRecords(m.doc.Sigmas(), "SIGMA", newNames); err != nil {
		return err
	}
	m.reconcileEtaMaps()
	return nil
}

func (m *Model) updateThetaRecords(newNames, varianceParams map[string]bool) error {
	records := m.doc.Thetas()

	// Remove clauses for parameters no longer present.
	inRecords := make(map[string]bool)
	for _, rec := range records {
		nm := rec.NameMap()
		if nm == nil {
			continue
		}
		var removed []string
		for _, name := range nm.Names() {
			inRecords[name] = true
			if !newNames[name] {
				removed = append(removed, name)
			}
		}
		if len(removed) > 0 {
			rec.Remove(removed)
			if rec.Len() == 0 {
				m.doc.Remove(rec)
			}
		}
	}

	// Compact numbering across records.
	records = m.doc.Thetas()
	next := 1
	for _, rec := range records {
		if nm := rec.NameMap(); nm != nil {
			rec.Renumber(next)
		}
		next += rec.Len()
	}

	// Append new thetas: parameters that are neither in a record nor
	// variance parameters of any distribution.
	var anchor nmtran.Record
	if len(records) > 0 {
		anchor = records[len(records)-1]
	}
	for _, p := range m.parameters.All() {
		if inRecords[p.Name] || varianceParams[p.Name] {
			continue
		}
		if m.isVarianceStyleName(p.Name) {
			continue
		}
		rec := nmtran.NewThetaRecord(nmtran.ThetaParam{
			Name: p.Name, Init: p.Init, Lower: p.Lower, Upper: p.Upper, Fix: p.Fix,
			Label: labelFromName(p.Name),
		})
		rec.Parameters(next, false, nil, nil)
		rec.NameMap().Set(p.Name, next)
		next += rec.Len()
		m.doc.InsertAfter(anchor, rec)
		anchor = rec
	}

	// Patch changed values in place.
	values := make(map[string]nmtran.ParamValue)
	for _, p := range m.parameters.All() {
		old, ok := m.oldParameters.Get(p.Name)
		if ok && old == p {
			continue
		}
		values[p.Name] = nmtran.ParamValue{
			Init: p.Init, Fix: p.Fix, Lower: p.Lower, Upper: p.Upper, HasBounds: true,
		}
	}
	if len(values) > 0 {
		for _, rec := range m.doc.Thetas() {
			if nm := rec.NameMap(); nm != nil {
				rec.Update(values, nm.FirstIndex())
			}
		}
	}
	return nil
}

// isVarianceStyleName reports a basic OMEGA(i,j)/SIGMA(i,j) name, which can
// never become a theta clause.
func (m *Model) isVarianceStyleName(name string) bool {
	return strings.HasPrefix(name, "OMEGA(") || strings.HasPrefix(name, "SIGMA(")
}

// labelFromName returns the comment label to write for a resolved name; a
// basic THETA(i) name gets no label.
func labelFromName(name string) string {
	if strings.HasPrefix(name, "THETA(") {
		return ""
	}
	return name
}

func (m *Model) updateVarianceRecords(records []*nmtran.OmegaRecord, kind string, newNames map[string]bool) error {
	inRecords := make(map[string]bool)
	for _, rec := range records {
		nm := rec.NameMap()
		if nm == nil {
			continue
		}
		var removed []string
		for _, name := range nm.Names() {
			inRecords[name] = true
			if !newNames[name] {
				removed = append(removed, name)
			}
		}
		if len(removed) > 0 {
			if _, isBlock := rec.Block(); isBlock {
				// A block shrinks only by replacing the whole record.
				m.doc.Remove(rec)
				continue
			}
			rec.Remove(removed)
			if rec.Len() == 0 {
				m.doc.Remove(rec)
			}
		}
	}

	// Append diagonal entries for new univariate variance parameters.
	var anchor nmtran.Record
	if recs := m.varianceRecords(kind); len(recs) > 0 {
		anchor = recs[len(recs)-1]
	}
	for _, d := range m.rvs.All() {
		nd, ok := d.(model.NormalDistribution)
		if !ok {
			continue
		}
		isSigma := nd.Level() == model.LevelRUV
		if (kind == "SIGMA") != isSigma {
			continue
		}
		if inRecords[nd.VarParam] {
			continue
		}
		if _, seen := m.findVarianceEntry(kind, nd.VarParam); seen {
			continue
		}
		p, ok := m.parameters.Get(nd.VarParam)
		if !ok {
			p = model.Parameter{Name: nd.VarParam, Init: 0.09}
		}
		rec := nmtran.NewOmegaRecord(kind, p.Init, p.Fix, labelFromVarianceName(nd.VarParam))
		rec.Parameters(1, false, nil, nil)
		rec.NameMap().Set(nd.VarParam, 1)
		m.doc.InsertAfter(anchor, rec)
		anchor = rec
		inRecords[nd.VarParam] = true
	}

	// Patch changed values.
	values := make(map[string]nmtran.ParamValue)
	for _, p := range m.parameters.All() {
		old, ok := m.oldParameters.Get(p.Name)
		if ok && old == p {
			continue
		}
		values[p.Name] = nmtran.ParamValue{Init: p.Init, Fix: p.Fix}
	}
	if len(values) > 0 {
		for _, rec := range m.varianceRecords(kind) {
			if rec.NameMap() != nil {
				rec.Update(values)
			}
		}
	}
	return nil
}

func labelFromVarianceName(name string) string {
	if strings.HasPrefix(name, "OMEGA(") || strings.HasPrefix(name, "SIGMA(") {
		return ""
	}
	return name
}

func (m *Model) varianceRecords(kind string) []*nmtran.OmegaRecord {
	if kind == "SIGMA" {
		return m.doc.Sigmas()
	}
	return m.doc.Omegas()
}

// findVarianceEntry reports whether any record of the kind binds the name.
func (m *Model) findVarianceEntry(kind, name string) (*nmtran.OmegaRecord, bool) {
	for _, rec := range m.varianceRecords(kind) {
		if nm := rec.NameMap(); nm != nil {
			if _, ok := nm.Index(name); ok {
				return rec, true
			}
		}
	}
	return nil, false
}

// reconcileEtaMaps rebinds the eta/eps maps to the current random-variable
// names in collection order so translation stays a bijection after
// add/remove.
func (m *Model) reconcileEtaMaps() {
	m.bindEtaMaps(m.doc.Omegas(), m.rvs.EtaNames())
	m.bindEtaMaps(m.doc.Sigmas(), m.rvs.EpsilonNames())
}

func (m *Model) bindEtaMaps(records []*nmtran.OmegaRecord, names []string) {
	next := 1
	i := 0
	for _, rec := range records {
		rec.Parameters(next, false, nil, nil)
		n := rec.Len()
		em := rec.EtaMap()
		for d := 0; d < n && i < len(names); d++ {
			em.Set(names[i], next+d)
			i++
		}
		next += n
	}
}

// updateStatements regenerates the code records when the statement
// sequence changed, using the final reverse translation so resolved names
// become positional ones again. Untouched statement sequences leave the
// records byte for byte.
func (m *Model) updateStatements() error {
	if statementsEqual(m.oldStatements, m.statements) {
		return nil
	}
	trans := m.ParameterTranslation(true, true)
	rv := m.RVTranslation(true, true)
	if m.cfg.WriteEtasInAbbr {
		var err error
		rv, err = m.writeAbbrEtas(rv)
		if err != nil {
			return err
		}
	}
	for k, v := range rv {
		trans[k] = v
	}

	if pred := m.doc.Code("PRED"); pred != nil {
		pred.SetStatements(subsAll(m.statements.Before, trans))
		return nil
	}
	if pk := m.doc.Code("PK"); pk != nil {
		pk.SetStatements(subsAll(m.statements.Before, trans))
	}
	if errRec := m.doc.Code("ERROR"); errRec != nil {
		errRec.SetStatements(subsAll(m.errorStatements(), trans))
	}
	if des := m.doc.Code("DES"); des != nil {
		if ode, ok := m.statements.ODE.(*model.ExplicitODESystem); ok {
			des.SetStatements(m.desStatements(ode))
		}
	}
	return nil
}

// errorStatements is the $ERROR content: the After sequence minus the
// synthetic observation-link assignment produced by the structural builder.
func (m *Model) errorStatements() []model.Assignment {
	var out []model.Assignment
	for _, a := range m.statements.After {
		if a.Symbol == "F" && a.Raw == "" && strings.Contains(a.Expr.String(), "A_") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// desStatements renders an explicit ODE system back to DADT lines with
// amounts in the positional A(i) spelling.
func (m *Model) desStatements(ode *model.ExplicitODESystem) []model.Assignment {
	back := make(map[string]string)
	for name, no := range m.compMap {
		back[fmt.Sprintf("A_%s(t)", name)] = fmt.Sprintf("A(%d)", no)
	}
	var out []model.Assignment
	for i, eq := range ode.Equations {
		if eq.Amount == "A_"+model.Output {
			continue
		}
		out = append(out, model.Assignment{
			Symbol: fmt.Sprintf("DADT(%d)", i+1),
			Expr:   eq.RHS.Subs(expr.Rename(back)),
		})
	}
	return out
}

func subsAll(stmts []model.Assignment, trans map[string]string) []model.Assignment {
	out := make([]model.Assignment, len(stmts))
	for i, a := range stmts {
		out[i] = a.Subs(trans)
	}
	return out
}

func statementsEqual(a, b model.Statements) bool {
	if len(a.Before) != len(b.Before) || len(a.After) != len(b.After) || a.ODE != b.ODE {
		return false
	}
	for i := range a.Before {
		if a.Before[i].String() != b.Before[i].String() {
			return false
		}
	}
	for i := range a.After {
		if a.After[i].String() != b.After[i].String() {
			return false
		}
	}
	return true
}

// updateDataset rewrites $INPUT and $DATA when the dataset or its column
// metadata changed: columns are redeclared positionally, row filters are
// cleared (they cannot be carried across a dataset change), the header
// ignore character is set from the first column label, and a pathless
// dataset is written out and referenced.
func (m *Model) updateDataset(opts UpdateOptions) error {
	if !m.datasetUpdated && m.datainfo.Equal(m.oldDatainfo) {
		return nil
	}
	rec := m.dataRecord()
	if rec == nil || len(m.datainfo.Columns) == 0 {
		return nil
	}

	if m.datainfo.Path == "" {
		dir := opts.OutputDir
		if dir == "" && m.path != "" {
			dir = filepath.Dir(m.path)
		}
		if dir == "" {
			dir = m.cfg.DefaultOutputPath
		}
		datapath := filepath.Join(dir, m.name+".csv")
		if !opts.NoFiles && m.dataset != nil {
			// The file is fully written before $DATA starts referencing it.
			if err := m.dataset.WriteCSV(datapath); err != nil {
				return err
			}
		}
		m.datainfo.Path = datapath
	}

	rec.SetIgnoreCharacterFromHeader(m.datainfo.Columns[0].Name)

	if input := m.inputRecord(); input != nil {
		var cols []nmtran.Option
		for _, c := range m.datainfo.Columns {
			opt := nmtran.Option{Key: c.Name}
			if c.Drop || c.Datatype == "nmtran-date" {
				opt.Value = "DROP"
			}
			cols = append(cols, opt)
		}
		input.ReplaceColumns(cols)
	}

	rec.RemoveIgnore()
	rec.RemoveAccept()
	rec.SetFilename(m.datainfo.Path)

	m.datasetUpdated = false
	m.oldDatainfo = m.datainfo.Copy()
	return nil
}

// updateInitialIndividualEstimates writes the per-individual etas to a phi
// file, points $ETAS at it and forces MCETA=1 on the first estimation step.
func (m *Model) updateInitialIndividualEstimates(opts UpdateOptions) error {
	if !m.etasUpdated || m.individualEtas == nil {
		return nil
	}
	dir := opts.OutputDir
	if dir == "" && m.path != "" {
		dir = filepath.Dir(m.path)
	}
	phiPath := filepath.Join(dir, m.name+"_input.phi")

	etas := m.individualEtas
	// Zero-fixed etas are not in the random-variable collection but NONMEM
	// still expects their columns.
	zeroFix := m.zeroFixEtas()
	for _, name := range zeroFix {
		if !containsName(etas.Names, name) {
			etas.Names = append(etas.Names, name)
			etas.Values[name] = make([]float64, len(etas.IDs))
		}
	}

	if !opts.NoFiles {
		if err := table.WritePhi(phiPath, etas.IDs, etas.Names, etas.Values); err != nil {
			return err
		}
	}

	var etasRec *nmtran.OptionRecord
	if rec := m.doc.First("ETAS"); rec != nil {
		etasRec, _ = rec.(*nmtran.OptionRecord)
	}
	if etasRec == nil {
		rec, err := m.doc.Append("$ETAS FILE=" + phiPath + "\n")
		if err != nil {
			return err
		}
		etasRec, _ = rec.(*nmtran.OptionRecord)
	} else {
		etasRec.SetOption("FILE", phiPath)
	}

	if est := m.doc.First("ESTIMATION"); est != nil {
		if opt, ok := est.(*nmtran.OptionRecord); ok && !opt.HasOption("MCETA") {
			opt.SetOption("MCETA", "1")
		}
	}
	m.etasUpdated = false
	return nil
}

// zeroFixEtas returns the eta names whose variances are fixed to zero.
func (m *Model) zeroFixEtas() []string {
	var out []string
	next := 1
	for _, rec := range m.doc.Omegas() {
		out = append(out, rec.ZeroFix(next)...)
		next += rec.Len()
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// renameArtifacts rewrites FILE= options referencing the old model name in
// $TABLE and $ETAS records.
func (m *Model) renameArtifacts() {
	for _, kind := range []string{"TABLE", "ETAS"} {
		for _, rec := range m.doc.RecordsOf(kind) {
			opt, ok := rec.(*nmtran.OptionRecord)
			if !ok {
				continue
			}
			if v, has := opt.GetOption("FILE"); has && strings.Contains(v, m.oldName) {
				opt.SetOption("FILE", strings.ReplaceAll(v, m.oldName, m.name))
			}
		}
	}
}
