// Package table reads and writes NONMEM result tables: the whitespace
// separated files with TABLE NO. separators used for $TABLE output, .ext
// estimate traces and .phi individual estimates.
package table

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Table is one TABLE NO. section: a header row of column names followed by
// numeric rows.
type Table struct {
	Number  int
	Name    string
	Columns []string
	Rows    [][]float64
}

// File is an ordered sequence of tables.
type File struct {
	Tables []Table
}

// Last returns the final table of the file, or nil for an empty file.
func (f *File) Last() *Table {
	if len(f.Tables) == 0 {
		return nil
	}
	return &f.Tables[len(f.Tables)-1]
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// Row returns the first row whose column has the given value.
func (t *Table) Row(column string, value float64) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == column {
			idx = i
		}
	}
	if idx < 0 {
		return nil, false
	}
	for _, row := range t.Rows {
		if idx < len(row) && row[idx] == value {
			return row, true
		}
	}
	return nil, false
}

// Read reads a table file from disk.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses table-file text. Each section starts with a TABLE NO. line;
// a file without one is treated as a single unnumbered table.
func Parse(text string) (*File, error) {
	f := &File{}
	var cur *Table
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "TABLE NO.") {
			f.Tables = append(f.Tables, Table{})
			cur = &f.Tables[len(f.Tables)-1]
			rest := strings.TrimSpace(trimmed[len("TABLE NO."):])
			numTok := rest
			if i := strings.IndexByte(rest, ':'); i >= 0 {
				numTok = strings.TrimSpace(rest[:i])
				cur.Name = strings.TrimSpace(rest[i+1:])
			}
			n, err := strconv.Atoi(numTok)
			if err != nil {
				return nil, fmt.Errorf("bad table number in %q", trimmed)
			}
			cur.Number = n
			continue
		}
		if cur == nil {
			f.Tables = append(f.Tables, Table{Number: 1})
			cur = &f.Tables[0]
		}
		fields := strings.Fields(trimmed)
		if len(cur.Columns) == 0 {
			cur.Columns = fields
			continue
		}
		row := make([]float64, len(fields))
		numeric := true
		for i, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				numeric = false
				break
			}
			row[i] = v
		}
		if !numeric {
			// A repeated header inside a table (NOHEADER off) is skipped.
			continue
		}
		cur.Rows = append(cur.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Iteration sentinels of .ext files: rows below the iteration trace carry
// summary values.
const (
	ExtFinalEstimates  = -1000000000
	ExtStandardErrors  = -1000000001
	ExtEigenvalues     = -1000000003
	ExtConditionNumber = -1000000004
)

// FinalEstimates reads the final parameter estimates from an .ext file: the
// row of the last table whose ITERATION column is the final-estimates
// sentinel, keyed by column name. The ITERATION and OBJ columns pass
// through so the caller can read the final objective too.
func FinalEstimates(path string) (map[string]float64, error) {
	f, err := Read(path)
	if err != nil {
		return nil, err
	}
	t := f.Last()
	if t == nil {
		return nil, fmt.Errorf("%s: no tables", path)
	}
	row, ok := t.Row("ITERATION", ExtFinalEstimates)
	if !ok {
		return nil, fmt.Errorf("%s: no final estimate row", path)
	}
	out := make(map[string]float64, len(row))
	for i, c := range t.Columns {
		if i < len(row) {
			out[c] = row[i]
		}
	}
	return out, nil
}

// WritePhi writes individual eta estimates as a .phi table: SUBJECT_NO, ID
// and one positional ETA(i) column per name, in the given name order.
func WritePhi(path string, ids []float64, names []string, values map[string][]float64) error {
	var sb strings.Builder
	sb.WriteString("TABLE NO.     1\n")
	sb.WriteString(" SUBJECT_NO  ID          ")
	for i := range names {
		fmt.Fprintf(&sb, " %-12s", fmt.Sprintf("ETA(%d)", i+1))
	}
	sb.WriteString("\n")
	for row, id := range ids {
		fmt.Fprintf(&sb, " %12d %12d", row+1, int(id))
		for _, name := range names {
			v := 0.0
			if col := values[name]; row < len(col) {
				v = col[row]
			}
			fmt.Fprintf(&sb, " %12.5E", v)
		}
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// ReadPhi reads a .phi file into per-column eta values keyed by the file's
// own column names, plus the ID column.
func ReadPhi(path string) (ids []float64, etas map[string][]float64, err error) {
	f, err := Read(path)
	if err != nil {
		return nil, nil, err
	}
	t := f.Last()
	if t == nil {
		return nil, nil, fmt.Errorf("%s: no tables", path)
	}
	ids, _ = t.Column("ID")
	etas = make(map[string][]float64)
	for _, c := range t.Columns {
		if strings.HasPrefix(c, "ETA(") {
			col, _ := t.Column(c)
			etas[c] = col
		}
	}
	return ids, etas, nil
}
