package nmtran

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NONMEM treats missing theta bounds as unbounded; pharmacometric tools
// conventionally clamp them to these sentinels. Explicit INF tokens map to
// the same values.
const (
	MaxUpperBound = 1000000
	MinLowerBound = -1000000
)

// ThetaRecord is the typed accessor over a $THETA record. Each theta clause
// is a "theta" node whose children keep the raw tokens: optional
// (lower[,init[,upper]]) parenthesized form or a bare init, optional FIX,
// optional xN repetition.
type ThetaRecord struct {
	baseRecord
	nameMap *NameMap
}

// ThetaParam is one theta entry as seen by the symbolic layer.
type ThetaParam struct {
	Name  string
	Init  float64
	Lower float64
	Upper float64
	Fix   bool
	Label string // trailing-comment label, if any
}

// ParamValue carries the updatable scalar fields of a parameter. Bounds are
// only rewritten when HasBounds is set and the clause declares the
// corresponding bound token.
type ParamValue struct {
	Init      float64
	Fix       bool
	Lower     float64
	Upper     float64
	HasBounds bool
}

func parseThetaRecord(base baseRecord, content string) (*ThetaRecord, error) {
	toks := scanParamContent(content)
	root := Tree("root")
	i := 0
	for i < len(toks) {
		switch toks[i].rule {
		case "LPAREN":
			node, next, err := assembleParenClause(toks, i, "theta")
			if err != nil {
				return nil, &SyntaxError{Record: "THETA", Text: content, Reason: err.Error()}
			}
			i = consumeClauseTail(toks, next, node)
			root.AddChildren(node)
		case "NUMERIC":
			node := Tree("theta", Tree("init", Leaf(toks[i].rule, toks[i].text)))
			i = consumeClauseTail(toks, i+1, node)
			root.AddChildren(node)
		default:
			root.AddChildren(Leaf(toks[i].rule, toks[i].text))
			i++
		}
	}
	return &ThetaRecord{baseRecord: withRoot(base, root)}, nil
}

func withRoot(base baseRecord, root *Node) baseRecord {
	base.root = root
	return base
}

// assembleParenClause builds a clause node from a parenthesized bound group
// starting at the LPAREN token. The value tokens map to (init), (lower,init)
// or (lower,init,upper) sub-nodes by count.
func assembleParenClause(toks []scanTok, start int, rule string) (*Node, int, error) {
	end := -1
	var values int
	for j := start + 1; j < len(toks); j++ {
		switch toks[j].rule {
		case "RPAREN":
			end = j
		case "NUMERIC", "NEG_INF", "POS_INF":
			values++
		case "NEWLINE":
			// Bound groups do not span lines.
			return nil, 0, fmt.Errorf("unclosed parenthesis in bound group")
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, 0, fmt.Errorf("unclosed parenthesis in bound group")
	}
	var roles []string
	switch values {
	case 1:
		roles = []string{"init"}
	case 2:
		roles = []string{"low", "init"}
	case 3:
		roles = []string{"low", "init", "up"}
	default:
		return nil, 0, fmt.Errorf("expected 1-3 values in bound group, found %d", values)
	}
	node := Tree(rule)
	vi := 0
	for j := start; j <= end; j++ {
		t := toks[j]
		switch t.rule {
		case "NUMERIC", "NEG_INF", "POS_INF":
			node.AddChildren(Tree(roles[vi], Leaf(t.rule, t.text)))
			vi++
		default:
			node.AddChildren(Leaf(t.rule, t.text))
		}
	}
	return node, end + 1, nil
}

// consumeClauseTail attaches trailing FIX and xN tokens (with intervening
// whitespace) to a clause node and returns the next unconsumed index.
func consumeClauseTail(toks []scanTok, i int, node *Node) int {
	for {
		j := i
		for j < len(toks) && toks[j].rule == "WS" {
			j++
		}
		if j >= len(toks) {
			return i
		}
		switch toks[j].rule {
		case "FIX":
			for k := i; k <= j; k++ {
				node.AddChildren(Leaf(toks[k].rule, toks[k].text))
			}
			i = j + 1
		case "X":
			for k := i; k < j; k++ {
				node.AddChildren(Leaf(toks[k].rule, toks[k].text))
			}
			n := Tree("n", Leaf("X", toks[j].text))
			node.AddChildren(n)
			i = j + 1
		default:
			return i
		}
	}
}

var labelRe = regexp.MustCompile(`;\s*([A-Za-z_]\w*)`)

// clauseLabel returns the comment label on the same line as the clause at
// position idx among root's children, or "".
func clauseLabel(root *Node, idx int) string {
	for _, sib := range root.Children[idx+1:] {
		switch sib.Rule {
		case "NEWLINE", "theta", "omega":
			return ""
		case "COMMENT":
			if m := labelRe.FindStringSubmatch(sib.Value); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// Parameters returns the theta entries of this record. first is the
// positional number of the record's first theta. When useLabels is set,
// comment labels become names unless they collide with a name in seen; a
// collision falls back to the basic THETA(i) name for that entry only and
// reports through warn. The record's name map is initialized on first call.
func (r *ThetaRecord) Parameters(first int, useLabels bool, seen map[string]bool, warn func(string)) []ThetaParam {
	if seen == nil {
		seen = make(map[string]bool)
	}
	var params []ThetaParam
	current := first
	for idx, node := range r.root.Children {
		if node.Rule != "theta" {
			continue
		}
		init := leafValue(node.Find("init"))
		fix := node.Find("FIX") != nil
		lower := float64(MinLowerBound)
		if low := node.Find("low"); low != nil {
			if low.Find("NEG_INF") != nil {
				lower = MinLowerBound
			} else {
				lower = leafValue(low)
			}
		}
		upper := float64(MaxUpperBound)
		if up := node.Find("up"); up != nil {
			if up.Find("POS_INF") != nil {
				upper = MaxUpperBound
			} else {
				upper = leafValue(up)
			}
		}
		label := clauseLabel(r.root, idx)
		for k := 0; k < clauseMultiple(node); k++ {
			name := ""
			if useLabels && label != "" {
				if seen[label] {
					warnf(warn, "The parameter name %s is duplicated. Falling back to basic NONMEM names.", label)
				} else {
					name = label
				}
			}
			if name == "" {
				name = fmt.Sprintf("THETA(%d)", current)
			}
			seen[name] = true
			params = append(params, ThetaParam{
				Name:  name,
				Init:  init,
				Lower: lower,
				Upper: upper,
				Fix:   fix,
				Label: label,
			})
			current++
		}
	}
	if r.nameMap == nil {
		r.nameMap = NewNameMap()
		for i, p := range params {
			r.nameMap.Set(p.Name, first+i)
		}
	}
	return params
}

func warnf(warn func(string), format string, args ...any) {
	if warn != nil {
		warn(fmt.Sprintf(format, args...))
	}
}

// clauseMultiple returns the xN repetition count of a clause, or 1.
func clauseMultiple(node *Node) int {
	n := node.Find("n")
	if n == nil {
		return 1
	}
	x := n.Find("X")
	if x == nil {
		return 1
	}
	v, err := strconv.Atoi(x.Value[1:])
	if err != nil || v < 1 {
		return 1
	}
	return v
}

// leafValue evaluates the numeric leaf under node.
func leafValue(node *Node) float64 {
	if node == nil {
		return 0
	}
	leaf := node.FirstLeaf()
	if leaf == nil {
		return 0
	}
	return parseNumeric(leaf.Value)
}

func parseNumeric(text string) float64 {
	norm := strings.NewReplacer("D", "E", "d", "e").Replace(text)
	v, _ := strconv.ParseFloat(norm, 64)
	return v
}

// FormatNumeric renders a float the way new record text is written.
func FormatNumeric(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NameMap returns the record's name map. It is nil until Parameters has run.
func (r *ThetaRecord) NameMap() *NameMap { return r.nameMap }

// Len returns the number of thetas declared by this record, counting xN
// repetitions.
func (r *ThetaRecord) Len() int {
	total := 0
	for _, node := range r.root.Children {
		if node.Rule == "theta" {
			total += clauseMultiple(node)
		}
	}
	return total
}

// Update rewrites the init and FIX tokens of thetas whose values changed.
// Unchanged clauses keep their text byte for byte. first is the positional
// number of this record's first theta; values is keyed by resolved name.
func (r *ThetaRecord) Update(values map[string]ParamValue, first int) {
	i := first
	for _, node := range r.root.Children {
		if node.Rule != "theta" {
			continue
		}
		name, ok := r.nameMap.NameOf(i)
		if !ok {
			i += clauseMultiple(node)
			continue
		}
		v, ok := values[name]
		if !ok {
			i += clauseMultiple(node)
			continue
		}
		initNode := node.Find("init")
		if leaf := initNode.FirstLeaf(); leaf != nil && parseNumeric(leaf.Value) != v.Init {
			leaf.Value = FormatNumeric(v.Init)
		}
		if v.HasBounds {
			if low := node.Find("low"); low != nil {
				if leaf := low.FirstLeaf(); leaf != nil && leaf.Rule == "NUMERIC" && parseNumeric(leaf.Value) != v.Lower {
					leaf.Value = FormatNumeric(v.Lower)
				}
			}
			if up := node.Find("up"); up != nil {
				if leaf := up.FirstLeaf(); leaf != nil && leaf.Rule == "NUMERIC" && parseNumeric(leaf.Value) != v.Upper {
					leaf.Value = FormatNumeric(v.Upper)
				}
			}
		}
		setClauseFix(node, v.Fix)
		i += clauseMultiple(node)
	}
}

// setClauseFix toggles the FIX token on a clause node.
func setClauseFix(node *Node, fix bool) {
	has := node.Find("FIX") != nil
	if fix && !has {
		node.AddChildren(Leaf("WS", " "), Leaf("FIX", "FIX"))
	} else if !fix && has {
		removeTokenAndSpace(node, "FIX")
	}
}

// removeTokenAndSpace removes the first token with the given rule along with
// any whitespace token directly before it.
func removeTokenAndSpace(node *Node, rule string) {
	for i, c := range node.Children {
		if c.Rule == rule {
			start := i
			if i > 0 && node.Children[i-1].Rule == "WS" {
				start = i - 1
			}
			node.Children = append(node.Children[:start], node.Children[i+1:]...)
			return
		}
	}
}

// Remove deletes the theta clauses bound to the given names and compacts
// this record's name map. Later records are not renumbered; the caller
// renumbers across records.
func (r *ThetaRecord) Remove(names []string) {
	first := r.nameMap.FirstIndex()
	indices := make(map[int]bool, len(names))
	for _, name := range names {
		if idx, ok := r.nameMap.Index(name); ok {
			indices[idx-first] = true
		}
		r.nameMap.Remove(name)
	}
	var keep []*Node
	i := 0
	for _, node := range r.root.Children {
		if node.Rule == "theta" {
			if !indices[i] {
				keep = append(keep, node)
			}
			i++
		} else {
			keep = append(keep, node)
		}
	}
	r.root.Children = keep
}

// Renumber reassigns this record's name-map indices starting at newStart.
// It has no textual effect until Update runs.
func (r *ThetaRecord) Renumber(newStart int) {
	r.nameMap.Renumber(newStart)
}

// NewThetaRecord builds a fresh $THETA record declaring a single parameter.
func NewThetaRecord(p ThetaParam) *ThetaRecord {
	var body strings.Builder
	body.WriteString("  ")
	explicitBounds := p.Lower != MinLowerBound || p.Upper != MaxUpperBound
	if explicitBounds {
		body.WriteByte('(')
		body.WriteString(FormatNumeric(p.Lower))
		body.WriteByte(',')
		body.WriteString(FormatNumeric(p.Init))
		if p.Upper != MaxUpperBound {
			body.WriteByte(',')
			body.WriteString(FormatNumeric(p.Upper))
		}
		body.WriteByte(')')
	} else {
		body.WriteString(FormatNumeric(p.Init))
	}
	if p.Fix {
		body.WriteString(" FIX")
	}
	if p.Label != "" {
		body.WriteString(" ; " + p.Label)
	}
	body.WriteByte('\n')
	rec, err := parseThetaRecord(baseRecord{kind: "THETA", nameTok: "$THETA"}, body.String())
	if err != nil {
		// The generated text is always well formed.
		panic(err)
	}
	return rec
}
