package nmtran

import (
	"fmt"
	"strconv"
	"strings"
)

// OmegaRecord is the typed accessor shared by $OMEGA and $SIGMA records.
// Each variance value is an "omega" node; BLOCK/DIAGONAL size declarations
// are "size" nodes. The record reports which entries are fixed to zero so
// dummy variance terms can be excluded from the random-variable collection.
type OmegaRecord struct {
	baseRecord
	nameMap *NameMap // parameter names, e.g. OMEGA(1,1) or labels
	etaMap  *NameMap // eta/eps names keyed to diagonal index
}

// OmegaEntry is one variance/covariance value of the record.
type OmegaEntry struct {
	Name    string
	Init    float64
	Fix     bool
	Row     int // 1-based absolute row
	Col     int // 1-based absolute column
	Label   string
	ZeroFix bool
}

func parseOmegaRecord(base baseRecord, content string) (*OmegaRecord, error) {
	toks := scanParamContent(content)
	root := Tree("root")
	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.rule {
		case "KEYWORD":
			up := strings.ToUpper(t.text)
			if up == "BLOCK" || up == "DIAGONAL" || up == "DIAG" {
				node, next, err := assembleSize(toks, i)
				if err != nil {
					return nil, &SyntaxError{Record: base.kind, Text: content, Reason: err.Error()}
				}
				root.AddChildren(node)
				i = next
				continue
			}
			root.AddChildren(Leaf(t.rule, t.text))
			i++
		case "NUMERIC":
			node := Tree("omega", Tree("init", Leaf(t.rule, t.text)))
			i = consumeClauseTail(toks, i+1, node)
			root.AddChildren(node)
		case "LPAREN":
			node, next, err := assembleParenClause(toks, i, "omega")
			if err != nil {
				return nil, &SyntaxError{Record: base.kind, Text: content, Reason: err.Error()}
			}
			i = consumeClauseTail(toks, next, node)
			root.AddChildren(node)
		default:
			root.AddChildren(Leaf(t.rule, t.text))
			i++
		}
	}
	return &OmegaRecord{baseRecord: withRoot(base, root)}, nil
}

// assembleSize builds a "size" node from BLOCK(n) or DIAGONAL(n) tokens.
func assembleSize(toks []scanTok, start int) (*Node, int, error) {
	node := Tree("size", Leaf("KEYWORD", toks[start].text))
	i := start + 1
	for i < len(toks) && toks[i].rule == "WS" {
		node.AddChildren(Leaf("WS", toks[i].text))
		i++
	}
	if i >= len(toks) || toks[i].rule != "LPAREN" {
		// SAME-style or bare DIAGONAL keyword without a size.
		return node, i, nil
	}
	node.AddChildren(Leaf("LPAREN", "("))
	i++
	found := false
	for i < len(toks) {
		t := toks[i]
		if t.rule == "RPAREN" {
			node.AddChildren(Leaf("RPAREN", ")"))
			return node, i + 1, nil
		}
		if t.rule == "NUMERIC" {
			node.AddChildren(Tree("INT", Leaf("NUMERIC", t.text)))
			found = true
		} else {
			node.AddChildren(Leaf(t.rule, t.text))
		}
		i++
	}
	if !found {
		return nil, 0, fmt.Errorf("missing size in BLOCK/DIAGONAL declaration")
	}
	return nil, 0, fmt.Errorf("unclosed BLOCK/DIAGONAL declaration")
}

// Block returns the declared BLOCK size, or ok=false for a diagonal record.
func (r *OmegaRecord) Block() (int, bool) {
	for _, c := range r.root.Children {
		if c.Rule != "size" {
			continue
		}
		kw := c.Find("KEYWORD")
		if kw == nil || !strings.HasPrefix(strings.ToUpper(kw.Value), "BLOCK") {
			continue
		}
		if n := c.Find("INT"); n != nil {
			v, _ := strconv.Atoi(strings.TrimSpace(n.String()))
			return v, true
		}
	}
	return 0, false
}

// Same reports whether the record declares SAME (repeat previous block).
func (r *OmegaRecord) Same() bool {
	for _, c := range r.root.Children {
		if c.Rule == "KEYWORD" && strings.EqualFold(c.Value, "SAME") {
			return true
		}
	}
	return false
}

// prefix returns "OMEGA" or "SIGMA" for parameter naming.
func (r *OmegaRecord) prefix() string { return r.kind }

// etaPrefix returns "ETA" for $OMEGA and "EPS" for $SIGMA.
func (r *OmegaRecord) etaPrefix() string {
	if r.kind == "SIGMA" {
		return "EPS"
	}
	return "ETA"
}

// Parameters returns the variance/covariance entries of this record and the
// next free diagonal index. first is the 1-based diagonal index of this
// record's first entry. Labels resolve names the same way theta labels do.
// For a BLOCK(n) record the values fill the lower triangle row by row.
func (r *OmegaRecord) Parameters(first int, useLabels bool, seen map[string]bool, warn func(string)) ([]OmegaEntry, int) {
	if seen == nil {
		seen = make(map[string]bool)
	}
	var entries []OmegaEntry
	size, isBlock := r.Block()

	var omegaNodes []*Node
	labels := make(map[*Node]string)
	for idx, node := range r.root.Children {
		if node.Rule == "omega" {
			omegaNodes = append(omegaNodes, node)
			labels[node] = clauseLabel(r.root, idx)
		}
	}

	blockFix := false
	if isBlock {
		for _, node := range omegaNodes {
			if node.Find("FIX") != nil {
				blockFix = true
			}
		}
	}

	resolve := func(label, basic string) string {
		if useLabels && label != "" {
			if seen[label] {
				warnf(warn, "The parameter name %s is duplicated. Falling back to basic NONMEM names.", label)
			} else {
				seen[label] = true
				return label
			}
		}
		seen[basic] = true
		return basic
	}

	if isBlock {
		row, col := first, first
		for _, node := range omegaNodes {
			init := leafValue(node.Find("init"))
			basic := fmt.Sprintf("%s(%d,%d)", r.prefix(), row, col)
			name := resolve(labels[node], basic)
			entries = append(entries, OmegaEntry{
				Name:  name,
				Init:  init,
				Fix:   blockFix,
				Row:   row,
				Col:   col,
				Label: labels[node],
			})
			if col == row {
				row++
				col = first
			} else {
				col++
			}
		}
		next := first + size
		r.initNameMaps(entries, first, next)
		return entries, next
	}

	// Diagonal record: every value is a variance; repetitions expand.
	diag := first
	for _, node := range omegaNodes {
		init := leafValue(node.Find("init"))
		fix := node.Find("FIX") != nil
		for k := 0; k < clauseMultiple(node); k++ {
			basic := fmt.Sprintf("%s(%d,%d)", r.prefix(), diag, diag)
			name := resolve(labels[node], basic)
			entries = append(entries, OmegaEntry{
				Name:    name,
				Init:    init,
				Fix:     fix,
				Row:     diag,
				Col:     diag,
				Label:   labels[node],
				ZeroFix: fix && init == 0,
			})
			diag++
		}
	}
	r.initNameMaps(entries, first, diag)
	return entries, diag
}

// initNameMaps seeds the parameter and eta maps on first parse.
func (r *OmegaRecord) initNameMaps(entries []OmegaEntry, first, next int) {
	if r.nameMap == nil {
		r.nameMap = NewNameMap()
		for i, e := range entries {
			r.nameMap.Set(e.Name, i+1) // position within record
		}
	}
	if r.etaMap == nil {
		r.etaMap = NewNameMap()
		for d := first; d < next; d++ {
			r.etaMap.Set(fmt.Sprintf("%s(%d)", r.etaPrefix(), d), d)
		}
	}
}

// NameMap returns the parameter name map (nil before Parameters).
func (r *OmegaRecord) NameMap() *NameMap { return r.nameMap }

// EtaMap returns the eta/eps name map (nil before Parameters).
func (r *OmegaRecord) EtaMap() *NameMap { return r.etaMap }

// ZeroFix returns the eta/eps names of entries fixed to zero; these are
// dummy variance terms excluded from the random-variable collection.
func (r *OmegaRecord) ZeroFix(first int) []string {
	entries, _ := r.Parameters(first, false, nil, nil)
	var out []string
	for _, e := range entries {
		if e.ZeroFix {
			out = append(out, fmt.Sprintf("%s(%d)", r.etaPrefix(), e.Row))
		}
	}
	return out
}

// Len returns the number of diagonal entries this record declares.
func (r *OmegaRecord) Len() int {
	if size, ok := r.Block(); ok {
		return size
	}
	n := 0
	for _, node := range r.root.Children {
		if node.Rule == "omega" {
			n += clauseMultiple(node)
		}
	}
	return n
}

// Update rewrites init and FIX tokens for entries whose values changed,
// leaving everything else untouched. values is keyed by resolved name.
func (r *OmegaRecord) Update(values map[string]ParamValue) {
	pos := 0
	for _, node := range r.root.Children {
		if node.Rule != "omega" {
			continue
		}
		pos++
		name, ok := r.nameMap.NameOf(pos)
		if !ok {
			continue
		}
		v, ok := values[name]
		if !ok {
			continue
		}
		initNode := node.Find("init")
		if leaf := initNode.FirstLeaf(); leaf != nil && parseNumeric(leaf.Value) != v.Init {
			leaf.Value = FormatNumeric(v.Init)
		}
		if _, isBlock := r.Block(); !isBlock {
			setClauseFix(node, v.Fix)
		}
	}
}

// Remove deletes the entries bound to the given names and compacts the name
// map. Only diagonal records support removal; a block record must be
// replaced wholesale.
func (r *OmegaRecord) Remove(names []string) {
	remove := make(map[int]bool, len(names))
	for _, name := range names {
		if pos, ok := r.nameMap.Index(name); ok {
			remove[pos] = true
		}
		r.nameMap.Remove(name)
	}
	var keep []*Node
	pos := 0
	for _, node := range r.root.Children {
		if node.Rule == "omega" {
			pos++
			if !remove[pos] {
				keep = append(keep, node)
			}
		} else {
			keep = append(keep, node)
		}
	}
	r.root.Children = keep
	r.nameMap.Renumber(1)
}

// NewOmegaRecord builds a fresh diagonal $OMEGA or $SIGMA record with a
// single variance entry.
func NewOmegaRecord(kind string, init float64, fix bool, label string) *OmegaRecord {
	var body strings.Builder
	body.WriteString("  ")
	body.WriteString(FormatNumeric(init))
	if fix {
		body.WriteString(" FIX")
	}
	if label != "" {
		body.WriteString(" ; " + label)
	}
	body.WriteByte('\n')
	rec, err := parseOmegaRecord(baseRecord{kind: kind, nameTok: "$" + kind}, body.String())
	if err != nil {
		panic(err)
	}
	return rec
}
