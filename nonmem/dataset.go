package nonmem

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pharmflow/go-nmtran/nmtran"
)

// Dataset is a minimally-parsed rectangular dataset: named columns of string
// cells with numeric access on demand. It carries just enough to answer the
// questions the model layer asks (column presence, RATE values, row counts).
type Dataset struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewDataset builds a dataset from columns and rows.
func NewDataset(columns []string, rows [][]string) *Dataset {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Dataset{Columns: columns, Rows: rows, index: idx}
}

// HasColumn reports whether the named column exists.
func (ds *Dataset) HasColumn(name string) bool {
	_, ok := ds.index[name]
	return ok
}

// Column returns the string values of the named column.
func (ds *Dataset) Column(name string) ([]string, bool) {
	i, ok := ds.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(ds.Rows))
	for r, row := range ds.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out, true
}

// FloatColumn returns the numeric values of the named column; unparseable
// cells read as zero.
func (ds *Dataset) FloatColumn(name string) ([]float64, bool) {
	cells, ok := ds.Column(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err == nil {
			out[i] = v
		}
	}
	return out, true
}

// Len returns the row count.
func (ds *Dataset) Len() int { return len(ds.Rows) }

// WriteCSV writes the dataset with a header row.
func (ds *Dataset) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(ds.Columns); err != nil {
		return err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readDataset reads a NONMEM dataset file. Lines starting with the ignore
// character are skipped (the "@" form skips any line starting with a
// letter), column names come from $INPUT rather than the file, and cells
// equal to the NULL value read as "0". Fields split on commas when present,
// otherwise on whitespace.
func readDataset(path, ignoreChar string, colnames []string, nullValue string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if ignoredLine(line, ignoreChar) {
			continue
		}
		var fields []string
		if strings.ContainsRune(line, ',') {
			fields = strings.Split(line, ",")
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
		} else {
			fields = strings.Fields(line)
		}
		if nullValue != "" {
			for i, f := range fields {
				if f == nullValue || f == "." {
					fields[i] = "0"
				}
			}
		}
		if len(fields) < len(colnames) {
			return nil, &nmtran.DatasetError{
				Msg: fmt.Sprintf("dataset row has %d fields, $INPUT declares %d columns: %s",
					len(fields), len(colnames), line),
			}
		}
		rows = append(rows, fields[:len(colnames)])
	}
	return NewDataset(colnames, rows), nil
}

func ignoredLine(line, ignoreChar string) bool {
	switch ignoreChar {
	case "":
		return false
	case "@":
		ch := line[0]
		return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
	default:
		return strings.HasPrefix(line, ignoreChar)
	}
}
