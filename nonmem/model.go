package nonmem

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nmtran"
)

// Model is the facade over one control stream: the lossless document plus
// the symbolic view (parameters, random variables, statements) extracted
// from it. Edits happen on the symbolic view; UpdateSource folds them back
// into the document as minimal textual changes.
type Model struct {
	cfg  Config
	doc  *nmtran.Document
	path string
	name string

	oldName string

	parameters *model.Parameters
	rvs        *model.RandomVariables
	statements model.Statements
	compMap    map[string]int

	oldParameters *model.Parameters
	oldRVs        *model.RandomVariables
	oldStatements model.Statements

	datainfo       *DataInfo
	oldDatainfo    *DataInfo
	dataset        *Dataset
	datasetRead    bool
	datasetUpdated bool

	estimationSteps []EstimationStep

	etasUpdated    bool
	individualEtas *EtaTable

	warnings []string
}

// EtaTable holds per-individual eta estimates keyed by eta name, in ID
// order.
type EtaTable struct {
	IDs    []float64
	Names  []string
	Values map[string][]float64
}

// ParseModel parses control-stream text into a Model.
func ParseModel(code string, cfg Config) (*Model, error) {
	if len(cfg.ParameterNames) == 0 {
		cfg.ParameterNames = DefaultConfig().ParameterNames
	}
	doc, err := nmtran.Parse(code)
	if err != nil {
		return nil, err
	}
	m := &Model{cfg: cfg, doc: doc, name: "run1", oldName: "run1"}

	m.parameters, err = parseParameters(doc, cfg, m.warn)
	if err != nil {
		return nil, err
	}
	m.rvs, err = parseRandomVariables(doc)
	if err != nil {
		return nil, err
	}
	m.applyAbbrNames()

	if err := m.createDataInfo(); err != nil {
		return nil, err
	}

	stmts, err := parseStatements(m)
	if err != nil {
		return nil, err
	}
	m.statements = stmts.Subs(m.statementTranslation())

	m.repairVariances()

	m.estimationSteps = parseEstimationSteps(doc)

	m.oldParameters = m.parameters.Copy()
	m.oldRVs = m.rvs.Copy()
	m.oldStatements = m.statements
	m.oldDatainfo = m.datainfo.Copy()
	return m, nil
}

// ReadModel reads and parses a control-stream file. The model name is the
// file name without extension.
func ReadModel(path string, cfg Config) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseModel(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.path = path
	base := filepath.Base(path)
	m.name = strings.TrimSuffix(base, filepath.Ext(base))
	m.oldName = m.name
	return m, nil
}

// repairVariances clamps non-positive-semidefinite initial omega/sigma
// estimates to the nearest valid values, warning with before and after.
func (m *Model) repairVariances() {
	inits := m.parameters.Inits()
	fixed := m.rvs.NearestValid(inits)
	if len(fixed) == 0 {
		return
	}
	names := make([]string, 0, len(fixed))
	for name := range fixed {
		names = append(names, name)
	}
	sort.Strings(names)
	var before, after []string
	for _, name := range names {
		before = append(before, fmt.Sprintf("%s=%s", name, nmtran.FormatNumeric(inits[name])))
		after = append(after, fmt.Sprintf("%s=%s", name, nmtran.FormatNumeric(fixed[name])))
	}
	m.warn(fmt.Sprintf(
		"adjusting initial estimates to create positive semidefinite omega/sigma matrices; before: %s after: %s",
		strings.Join(before, " "), strings.Join(after, " ")))
	m.parameters.SetInits(fixed)
}

// createDataInfo resolves dataset column metadata: a .datainfo sidecar next
// to the dataset takes precedence over the $INPUT drop flags, with a
// warning on disagreement.
func (m *Model) createDataInfo() error {
	layout, err := columnInfo(m.doc)
	if err != nil {
		return err
	}
	datasetPath := m.datasetPath()
	if datasetPath != "" {
		if side, err := ReadDataInfo(sidecarPath(datasetPath)); err == nil {
			side.Path = datasetPath
			var disagree []string
			for i := range side.Columns {
				if i < len(layout.Drop) && side.Columns[i].Drop != layout.Drop[i] {
					disagree = append(disagree, side.Columns[i].Name)
				}
			}
			if len(disagree) > 0 {
				m.warn(fmt.Sprintf(
					"control stream and dataset .datainfo disagree on DROP for columns %s; using .datainfo",
					strings.Join(disagree, ", ")))
			}
			m.datainfo = side
			return nil
		}
	}
	m.datainfo = deriveDataInfo(layout, datasetPath, m.doc.Code("PK") != nil)
	return nil
}

// datasetPath returns the dataset path from $DATA, resolved against the
// model file's directory when relative.
func (m *Model) datasetPath() string {
	rec := m.dataRecord()
	if rec == nil {
		return ""
	}
	p := rec.Filename()
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && m.path != "" {
		p = filepath.Join(filepath.Dir(m.path), p)
	}
	return p
}

func (m *Model) dataRecord() *nmtran.DataRecord {
	for _, rec := range m.doc.Records {
		if d, ok := rec.(*nmtran.DataRecord); ok {
			return d
		}
	}
	return nil
}

func (m *Model) inputRecord() *nmtran.InputRecord {
	for _, rec := range m.doc.Records {
		if in, ok := rec.(*nmtran.InputRecord); ok {
			return in
		}
	}
	return nil
}

// Dataset lazily reads the dataset referenced by $DATA.
func (m *Model) Dataset() (*Dataset, error) {
	if m.datasetRead {
		return m.dataset, nil
	}
	m.datasetRead = true
	path := m.datasetPath()
	rec := m.dataRecord()
	if path == "" || rec == nil {
		return nil, nil
	}
	layout, err := columnInfo(m.doc)
	if err != nil {
		return nil, err
	}
	ds, err := readDataset(path, rec.IgnoreCharacter(), layout.Names, rec.NullValue())
	if err != nil {
		return nil, err
	}
	m.dataset = ds
	return ds, nil
}

// SetDataset replaces the in-memory dataset. The next UpdateSource rewrites
// $INPUT and $DATA accordingly and clears row filters.
func (m *Model) SetDataset(ds *Dataset) {
	m.dataset = ds
	m.datasetRead = true
	m.datasetUpdated = true
	cols := make([]ColumnInfo, len(ds.Columns))
	for i, name := range ds.Columns {
		if old, ok := m.datainfo.Column(name); ok {
			cols[i] = old
		} else {
			cols[i] = ColumnInfo{Name: name}
		}
	}
	m.datainfo = &DataInfo{Columns: cols}
}

// Document exposes the underlying parse tree.
func (m *Model) Document() *nmtran.Document { return m.doc }

// Config returns the model's configuration.
func (m *Model) Config() Config { return m.cfg }

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// SetName renames the model; artifacts keyed by the name ($TABLE FILE=,
// $ETAS FILE=) are renamed on the next UpdateSource.
func (m *Model) SetName(name string) { m.name = name }

// Path returns the model file path, or "".
func (m *Model) Path() string { return m.path }

// DataInfo returns the dataset column metadata.
func (m *Model) DataInfo() *DataInfo { return m.datainfo }

// Parameters returns the current parameter set. Mutate through the setters
// or replace wholesale with SetParameters.
func (m *Model) Parameters() *model.Parameters { return m.parameters }

// SetParameters replaces the parameter set.
func (m *Model) SetParameters(ps *model.Parameters) { m.parameters = ps }

// RandomVariables returns the current random-effect collection.
func (m *Model) RandomVariables() *model.RandomVariables { return m.rvs }

// SetRandomVariables replaces the random-effect collection.
func (m *Model) SetRandomVariables(rvs *model.RandomVariables) { m.rvs = rvs }

// Statements returns the current statement sequence.
func (m *Model) Statements() model.Statements { return m.statements }

// SetStatements replaces the statement sequence. The corresponding code
// records are regenerated wholesale on the next UpdateSource.
func (m *Model) SetStatements(s model.Statements) { m.statements = s }

// ODESystem returns the structural system, or nil for PRED models.
func (m *Model) ODESystem() model.ODESystem { return m.statements.ODE }

// CompartmentMap returns compartment name to control-stream number.
func (m *Model) CompartmentMap() map[string]int { return m.compMap }

// EstimationSteps returns the parsed $ESTIMATION steps.
func (m *Model) EstimationSteps() []EstimationStep { return m.estimationSteps }

// SetInitialIndividualEstimates replaces the per-individual eta estimates.
// UpdateSource writes them to a phi file and points $ETAS at it.
func (m *Model) SetInitialIndividualEstimates(etas *EtaTable) {
	m.individualEtas = etas
	m.etasUpdated = true
}

// Warnings returns the diagnostics accumulated since parse.
func (m *Model) Warnings() []string {
	out := make([]string, len(m.warnings))
	copy(out, m.warnings)
	return out
}

func (m *Model) warn(msg string) {
	m.warnings = append(m.warnings, msg)
}

// Code applies pending symbolic edits to the document and returns the
// control-stream text.
func (m *Model) Code() (string, error) {
	if err := m.UpdateSource(UpdateOptions{NoFiles: true}); err != nil {
		return "", err
	}
	return m.doc.Render(), nil
}

// Copy returns an independent model: tool workflows mutate copies, never a
// shared instance.
func (m *Model) Copy() (*Model, error) {
	text := m.doc.Render()
	c, err := ParseModel(text, m.cfg)
	if err != nil {
		return nil, err
	}
	c.path = m.path
	c.name = m.name
	c.oldName = m.oldName
	c.parameters = m.parameters.Copy()
	c.rvs = m.rvs.Copy()
	c.statements = m.statements
	c.oldStatements = m.oldStatements
	c.compMap = m.compMap
	c.datainfo = m.datainfo.Copy()
	c.datasetUpdated = m.datasetUpdated
	c.dataset = m.dataset
	c.datasetRead = m.datasetRead
	return c, nil
}
