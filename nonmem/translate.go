package nonmem

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pharmflow/go-nmtran/nmtran"
)

var abbrReplaceRe = regexp.MustCompile(`(?i)REPLACE\s+([A-Za-z_]\w*\(\w+\))\s*=\s*([A-Za-z_]\w*\(\d+\))`)
var parenNameRe = regexp.MustCompile(`\((\w+)\)`)

// abbrReplacements reads the REPLACE aliases from the $ABBREVIATED records:
// alias form -> positional form, e.g. THETA(CL) -> THETA(1).
func abbrReplacements(doc *nmtran.Document) map[string]string {
	out := make(map[string]string)
	for _, rec := range doc.RecordsOf("ABBREVIATED") {
		for _, m := range abbrReplaceRe.FindAllStringSubmatch(rec.String(), -1) {
			out[strings.ToUpper(m[1])] = strings.ToUpper(m[2])
		}
	}
	return out
}

// abbrName flattens an alias form to a plain symbol name:
// THETA(CL) -> THETA_CL, ETA(OCC) -> ETA_OCC.
func abbrName(alias string) string {
	return parenNameRe.ReplaceAllString(alias, "_$1")
}

// applyAbbrNames renames parameters and random variables according to the
// $ABBREVIATED aliases. When the abbr source ranks below the comment source,
// aliases only apply where the name is still the basic positional one.
func (m *Model) applyAbbrNames() {
	if !m.cfg.useSource(NameAbbr) {
		return
	}
	abbrWins := m.cfg.sourceRank(NameAbbr) < m.cfg.sourceRank(NameComment)
	replacements := abbrReplacements(m.doc)
	rvRename := make(map[string]string)
	for alias, positional := range replacements {
		resolved := abbrName(alias)
		switch {
		case strings.HasPrefix(positional, "THETA("):
			current, rec := m.thetaNameAt(positional)
			if current == "" {
				continue
			}
			if !abbrWins && current != positional {
				continue
			}
			if err := rec.NameMap().Rename(current, resolved); err == nil {
				_ = m.parameters.Rename(current, resolved)
			}
		case strings.HasPrefix(positional, "ETA("), strings.HasPrefix(positional, "EPS("):
			if m.renameEta(positional, resolved) {
				rvRename[positional] = resolved
			}
		}
	}
	if len(rvRename) > 0 {
		m.rvs = m.rvs.Subs(rvRename)
	}
}

var abbrEtaRe = regexp.MustCompile(`^ETA_(\w+)$`)

// writeAbbrEtas declares $ABBREVIATED REPLACE aliases for renamed etas so
// that regenerated code keeps the resolved spelling. Entries no alias can
// express come back for plain reverse renaming.
func (m *Model) writeAbbrEtas(rv map[string]string) (map[string]string, error) {
	rest := make(map[string]string)
	existing := abbrReplacements(m.doc)
	resolved := make([]string, 0, len(rv))
	for name := range rv {
		resolved = append(resolved, name)
	}
	sort.Strings(resolved)
	anchor := m.doc.First("PROBLEM")
	for _, name := range resolved {
		g := abbrEtaRe.FindStringSubmatch(name)
		if g == nil || !strings.HasPrefix(rv[name], "ETA(") {
			rest[name] = rv[name]
			continue
		}
		alias := fmt.Sprintf("ETA(%s)", g[1])
		if existing[strings.ToUpper(alias)] == strings.ToUpper(rv[name]) {
			continue
		}
		rec, err := m.doc.Append(fmt.Sprintf("$ABBREVIATED REPLACE %s=%s\n", alias, rv[name]))
		if err != nil {
			return nil, err
		}
		m.doc.Remove(rec)
		m.doc.InsertAfter(anchor, rec)
		anchor = rec
	}
	return rest, nil
}

// thetaNameAt returns the current resolved name bound to a positional
// THETA(i) and the record holding it.
func (m *Model) thetaNameAt(positional string) (string, *nmtran.ThetaRecord) {
	var idx int
	if _, err := fmt.Sscanf(positional, "THETA(%d)", &idx); err != nil {
		return "", nil
	}
	for _, rec := range m.doc.Thetas() {
		if nm := rec.NameMap(); nm != nil {
			if name, ok := nm.NameOf(idx); ok {
				return name, rec
			}
		}
	}
	return "", nil
}

// renameEta rebinds an eta/eps map entry to the resolved name.
func (m *Model) renameEta(positional, resolved string) bool {
	records := m.doc.Omegas()
	if strings.HasPrefix(positional, "EPS(") {
		records = m.doc.Sigmas()
	}
	for _, rec := range records {
		if em := rec.EtaMap(); em != nil {
			if _, ok := em.Index(positional); ok {
				return em.Rename(positional, resolved) == nil
			}
		}
	}
	return false
}

// RVTranslation returns the mapping between positional random-variable
// names (ETA(i)/EPS(i)) and their resolved names. reverse swaps direction;
// removeIdempotent drops self-mappings.
func (m *Model) RVTranslation(reverse, removeIdempotent bool) map[string]string {
	d := make(map[string]string)
	for _, rec := range m.doc.Omegas() {
		collectEtaTranslation(d, rec, "ETA")
	}
	for _, rec := range m.doc.Sigmas() {
		collectEtaTranslation(d, rec, "EPS")
	}
	return finishTranslation(d, reverse, removeIdempotent)
}

func collectEtaTranslation(d map[string]string, rec *nmtran.OmegaRecord, prefix string) {
	em := rec.EtaMap()
	if em == nil {
		return
	}
	for _, name := range em.Names() {
		idx, _ := em.Index(name)
		d[fmt.Sprintf("%s(%d)", prefix, idx)] = name
	}
}

// ParameterTranslation returns the mapping between positional parameter
// names (THETA(i)/OMEGA(i,j)/SIGMA(i,j)) and their resolved names.
func (m *Model) ParameterTranslation(reverse, removeIdempotent bool) map[string]string {
	d := make(map[string]string)
	next := 1
	for _, rec := range m.doc.Thetas() {
		if nm := rec.NameMap(); nm != nil {
			for _, name := range nm.Names() {
				idx, _ := nm.Index(name)
				d[fmt.Sprintf("THETA(%d)", idx)] = name
			}
		}
		next += rec.Len()
	}
	for _, records := range [][]*nmtran.OmegaRecord{m.doc.Omegas(), m.doc.Sigmas()} {
		next = 1
		for _, rec := range records {
			entries, n := rec.Parameters(next, false, nil, nil)
			if nm := rec.NameMap(); nm != nil {
				for pos, e := range entries {
					if name, ok := nm.NameOf(pos + 1); ok {
						d[fmt.Sprintf("%s(%d,%d)", rec.Kind(), e.Row, e.Col)] = name
					}
				}
			}
			next = n
		}
	}
	return finishTranslation(d, reverse, removeIdempotent)
}

func finishTranslation(d map[string]string, reverse, removeIdempotent bool) map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		if removeIdempotent && k == v {
			continue
		}
		if reverse {
			out[v] = k
		} else {
			out[k] = v
		}
	}
	return out
}

// statementTranslation is the substitution applied to parsed statements:
// positional parameter and RV names to resolved names, including the ERR(i)
// spelling of EPS(i).
func (m *Model) statementTranslation() map[string]string {
	trans := m.ParameterTranslation(false, true)
	for k, v := range m.RVTranslation(false, true) {
		trans[k] = v
		if strings.HasPrefix(k, "EPS(") {
			trans["ERR"+k[3:]] = v
		}
	}
	return trans
}
