package nmtran

import (
	"regexp"
	"strings"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
)

// CodeRecord holds an abbreviated-code block: $PK, $PRED, $ERROR, $DES and
// friends. The body is kept verbatim; Statements parses it on demand and
// SetStatements regenerates the whole block, since statement logic is not
// amenable to safe partial patching.
type CodeRecord struct {
	baseRecord
}

func parseCodeRecord(base baseRecord, content string) (*CodeRecord, error) {
	root := Tree("root", Leaf("CODE", content))
	return &CodeRecord{baseRecord: withRoot(base, root)}, nil
}

var assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*(?:\(\s*\d+\s*\))?)\s*=\s*(.+)$`)

// Statements parses the block into a statement list. Lines that are not
// assignments or IF constructs are preserved as raw statements.
func (r *CodeRecord) Statements() ([]model.Assignment, error) {
	lines := strings.Split(r.root.String(), "\n")
	stmts, i, err := parseCodeLines(lines, 0, true)
	if err != nil {
		return nil, err
	}
	if i < len(lines) {
		return nil, NewModelSyntaxError("unexpected %s in %s record", strings.TrimSpace(lines[i]), r.Kind())
	}
	return stmts, nil
}

// parseCodeLines consumes lines until a block terminator (ELSE, ELSEIF,
// ENDIF) or, at the top level, end of input.
func parseCodeLines(lines []string, i int, top bool) ([]model.Assignment, int, error) {
	var stmts []model.Assignment
	for i < len(lines) {
		raw := lines[i]
		line := stripCodeComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			i++
			continue
		}
		upper := strings.ToUpper(trimmed)
		if isBlockTerminator(upper) {
			if top {
				return nil, i, NewModelSyntaxError("unmatched %s", strings.Fields(upper)[0])
			}
			return stmts, i, nil
		}
		if strings.HasPrefix(upper, "IF") {
			cond, rest, ok := splitIfHead(trimmed)
			if ok {
				restUpper := strings.ToUpper(strings.TrimSpace(rest))
				if restUpper == "THEN" {
					blockStmts, next, err := parseIfBlock(lines, i+1, cond)
					if err != nil {
						return nil, 0, err
					}
					stmts = append(stmts, blockStmts...)
					i = next
					continue
				}
				// Single-line guarded assignment.
				a, err := parseAssignLine(strings.TrimSpace(rest))
				if err != nil {
					return nil, 0, err
				}
				if a.Raw == "" {
					a.Expr = expr.Piecewise{Branches: []expr.Branch{{Value: a.Expr, Cond: cond}}}
					stmts = append(stmts, a)
					i++
					continue
				}
			}
		}
		a, err := parseAssignLine(trimmed)
		if err != nil {
			return nil, 0, err
		}
		if a.Raw != "" {
			a.Raw = strings.TrimRight(raw, " \t\r")
		}
		stmts = append(stmts, a)
		i++
	}
	return stmts, i, nil
}

// parseIfBlock consumes the branches of an IF/THEN construct starting after
// its header line and merges per-symbol assignments into piecewise
// expressions.
type ifBranch struct {
	cond  expr.Expr
	stmts []model.Assignment
}

func parseIfBlock(lines []string, i int, cond expr.Expr) ([]model.Assignment, int, error) {
	branches := []ifBranch{{cond: cond}}
	for {
		stmts, next, err := parseCodeLines(lines, i, false)
		if err != nil {
			return nil, 0, err
		}
		branches[len(branches)-1].stmts = stmts
		if next >= len(lines) {
			return nil, 0, NewModelSyntaxError("IF block without END IF")
		}
		term := strings.ToUpper(strings.TrimSpace(stripCodeComment(lines[next])))
		switch {
		case term == "ENDIF" || term == "END IF":
			return mergeIfBranches(branches), next + 1, nil
		case term == "ELSE":
			branches = append(branches, ifBranch{})
			i = next + 1
		default: // ELSEIF / ELSE IF
			head := strings.TrimSpace(stripCodeComment(lines[next]))
			head = strings.TrimSpace(head[len("ELSE"):])
			c, rest, ok := splitIfHead(head)
			if !ok || strings.ToUpper(strings.TrimSpace(rest)) != "THEN" {
				return nil, 0, NewModelSyntaxError("malformed ELSE IF")
			}
			branches = append(branches, ifBranch{cond: c})
			i = next + 1
		}
	}
}

// mergeIfBranches folds branch assignments into one piecewise assignment
// per symbol, ordered by first assignment. Raw statements inside blocks are
// dropped from the merge since they cannot be guarded symbolically.
func mergeIfBranches(branches []ifBranch) []model.Assignment {
	var order []string
	perSym := make(map[string][]expr.Branch)
	for _, b := range branches {
		for _, a := range b.stmts {
			if a.Raw != "" {
				continue
			}
			if _, seen := perSym[a.Symbol]; !seen {
				order = append(order, a.Symbol)
			}
			perSym[a.Symbol] = append(perSym[a.Symbol], expr.Branch{Value: a.Expr, Cond: b.cond})
		}
	}
	out := make([]model.Assignment, 0, len(order))
	for _, sym := range order {
		out = append(out, model.Assignment{Symbol: sym, Expr: expr.Piecewise{Branches: perSym[sym]}})
	}
	return out
}

// splitIfHead splits "IF (cond) rest", returning the parsed condition and
// the remainder after the closing parenthesis.
func splitIfHead(line string) (expr.Expr, string, bool) {
	rest := strings.TrimSpace(line[2:])
	if !strings.HasPrefix(rest, "(") {
		return nil, "", false
	}
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				cond, err := expr.Parse(rest[1:i])
				if err != nil {
					return nil, "", false
				}
				return cond, rest[i+1:], true
			}
		}
	}
	return nil, "", false
}

// parseAssignLine parses "SYM = expr"; anything else comes back as a raw
// statement.
func parseAssignLine(line string) (model.Assignment, error) {
	m := assignRe.FindStringSubmatch(line)
	if m == nil {
		return model.Assignment{Raw: line}, nil
	}
	rhs, err := expr.Parse(m[2])
	if err != nil {
		return model.Assignment{}, NewModelSyntaxError("cannot parse expression %s", m[2])
	}
	sym := strings.ReplaceAll(m[1], " ", "")
	return model.Assignment{Symbol: sym, Expr: rhs}, nil
}

func isBlockTerminator(upper string) bool {
	return upper == "ENDIF" || upper == "END IF" || upper == "ELSE" ||
		strings.HasPrefix(upper, "ELSEIF") || strings.HasPrefix(upper, "ELSE IF")
}

// stripCodeComment removes a trailing ; comment from a code line.
func stripCodeComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// FindAssignment returns the last assignment to the given symbol.
func (r *CodeRecord) FindAssignment(symbol string) (model.Assignment, bool) {
	stmts, err := r.Statements()
	if err != nil {
		return model.Assignment{}, false
	}
	for i := len(stmts) - 1; i >= 0; i-- {
		if stmts[i].Symbol == symbol {
			return stmts[i], true
		}
	}
	return model.Assignment{}, false
}

// SetStatements replaces the whole body with the rendered statement list.
// The record keeps its name token and ends in a newline.
func (r *CodeRecord) SetStatements(stmts []model.Assignment) {
	var sb strings.Builder
	sb.WriteString("\n")
	for _, a := range stmts {
		for _, line := range a.Lines() {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	r.root = Tree("root", Leaf("CODE", sb.String()))
}
