package nmtran

import "strings"

// InputRecord is the typed accessor over $INPUT: ordered column
// declarations of the form NAME, NAME=SYNONYM or NAME=DROP.
type InputRecord struct {
	OptionRecord
}

// Columns returns the column declarations in dataset order.
func (r *InputRecord) Columns() []Option {
	return r.AllOptions()
}

// ReplaceColumns rewrites the record's option list to declare exactly the
// given columns, preserving surrounding whitespace/comment texture where the
// column at a position is unchanged. Extra old columns are dropped and extra
// new columns appended.
func (r *InputRecord) ReplaceColumns(cols []Option) {
	var keep []*Node
	i := 0
	for _, child := range r.root.Children {
		if child.Rule != "option" {
			keep = append(keep, child)
			continue
		}
		if i < len(cols) {
			old := nodeOption(child)
			if old == cols[i] {
				keep = append(keep, child)
			} else {
				keep = append(keep, NewOptionNode(cols[i].Key, cols[i].Value))
			}
			i++
		} else if len(keep) > 0 && keep[len(keep)-1].Rule == "WS" {
			keep = keep[:len(keep)-1]
		}
	}
	r.root.Children = keep
	for ; i < len(cols); i++ {
		r.AppendOption(cols[i].Key, cols[i].Value)
	}
	if s := r.root.String(); !strings.HasSuffix(s, "\n") {
		r.root.AddChildren(Leaf("NEWLINE", "\n"))
	}
}
