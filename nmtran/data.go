package nmtran

import "strings"

// DataRecord is the typed accessor over $DATA: the dataset filename followed
// by IGNORE/ACCEPT/NULL options. The character form IGNORE=c sets the
// header-comment character; the parenthesized form IGNORE=(...) is a row
// filter.
type DataRecord struct {
	OptionRecord
}

func parseDataRecord(base baseRecord, content string) (*DataRecord, error) {
	// The filename is the first non-blank, non-comment token and may be
	// quoted to include spaces.
	root := Tree("root")
	i := 0
	for i < len(content) {
		ch := content[i]
		if ch == ' ' || ch == '\t' {
			j := i
			for j < len(content) && (content[j] == ' ' || content[j] == '\t') {
				j++
			}
			root.AddChildren(Leaf("WS", content[i:j]))
			i = j
			continue
		}
		if ch == '\n' || ch == '\r' || ch == ';' {
			break
		}
		// Filename token.
		j := i
		if ch == '\'' || ch == '"' {
			j++
			for j < len(content) && content[j] != ch {
				j++
			}
			if j < len(content) {
				j++
			}
		} else {
			for j < len(content) && !strings.ContainsRune(" \t\r\n;", rune(content[j])) {
				j++
			}
		}
		root.AddChildren(Leaf("FILENAME", content[i:j]))
		i = j
		break
	}
	opt, err := parseOptionContent(base, content[i:])
	if err != nil {
		return nil, err
	}
	root.AddChildren(opt.root.Children...)
	return &DataRecord{OptionRecord: OptionRecord{baseRecord: withRoot(base, root)}}, nil
}

// Filename returns the dataset path with any quoting removed.
func (r *DataRecord) Filename() string {
	f := r.root.Find("FILENAME")
	if f == nil {
		return ""
	}
	return strings.Trim(f.Value, `'"`)
}

// SetFilename rewrites the dataset path, quoting when it contains spaces.
func (r *DataRecord) SetFilename(path string) {
	if strings.ContainsAny(path, " \t") {
		path = `'` + path + `'`
	}
	if f := r.root.Find("FILENAME"); f != nil {
		f.Value = path
		return
	}
	r.root.Children = append([]*Node{Leaf("WS", " "), Leaf("FILENAME", path)}, r.root.Children...)
}

// isFilterValue reports whether an IGNORE/ACCEPT value is a row filter
// rather than a single ignore character.
func isFilterValue(v string) bool {
	return strings.HasPrefix(v, "(")
}

// IgnoreCharacter returns the single-character IGNORE value, or "".
func (r *DataRecord) IgnoreCharacter() string {
	for _, opt := range r.AllOptions() {
		if MatchOption([]string{"IGNORE"}, opt.Key) == "IGNORE" && opt.Value != "" && !isFilterValue(opt.Value) {
			return strings.Trim(opt.Value, `'"`)
		}
	}
	return ""
}

// SetIgnoreCharacterFromHeader sets the ignore character from the first
// column label of the dataset header: an alphabetic label means any line
// starting with a letter is a header line (the @ form); otherwise the
// label's first character is used verbatim.
func (r *DataRecord) SetIgnoreCharacterFromHeader(label string) {
	ch := "@"
	if label != "" {
		first := label[0]
		if !(first >= 'A' && first <= 'Z' || first >= 'a' && first <= 'z') {
			ch = string(first)
		}
	}
	if r.IgnoreCharacter() == ch {
		return
	}
	// Replace an existing character-form IGNORE, else insert one.
	for _, c := range r.root.Children {
		if c.Rule != "option" {
			continue
		}
		opt := nodeOption(c)
		if MatchOption([]string{"IGNORE"}, opt.Key) == "IGNORE" && opt.Value != "" && !isFilterValue(opt.Value) {
			c.Find("VALUE").Value = ch
			return
		}
	}
	r.AppendOption("IGNORE", ch)
}

// Ignore returns the IGNORE row-filter expressions.
func (r *DataRecord) Ignore() []string {
	return r.filters("IGNORE")
}

// Accept returns the ACCEPT row-filter expressions.
func (r *DataRecord) Accept() []string {
	return r.filters("ACCEPT")
}

func (r *DataRecord) filters(kind string) []string {
	var out []string
	for _, opt := range r.AllOptions() {
		if MatchOption([]string{kind}, opt.Key) == kind && isFilterValue(opt.Value) {
			inner := strings.TrimSuffix(strings.TrimPrefix(opt.Value, "("), ")")
			for _, f := range strings.Split(inner, ",") {
				out = append(out, strings.TrimSpace(f))
			}
		}
	}
	return out
}

// RemoveIgnore deletes all IGNORE row filters, keeping the ignore
// character.
func (r *DataRecord) RemoveIgnore() {
	r.removeOptions(func(opt Option) bool {
		return MatchOption([]string{"IGNORE"}, opt.Key) == "IGNORE" && isFilterValue(opt.Value)
	})
}

// RemoveAccept deletes all ACCEPT row filters.
func (r *DataRecord) RemoveAccept() {
	r.removeOptions(func(opt Option) bool {
		return MatchOption([]string{"ACCEPT"}, opt.Key) == "ACCEPT" && isFilterValue(opt.Value)
	})
}

// NullValue returns the NULL option value used for missing data, or "".
func (r *DataRecord) NullValue() string {
	v, _ := r.GetOption("NULL")
	return v
}
