package nmtran

import (
	"strings"
)

// Record is a named top-level block of a control stream. Concrete record
// types expose typed accessors over the shared parse tree.
type Record interface {
	// Kind returns the canonical record name, e.g. "THETA" for $THET.
	Kind() string
	// Root returns the mutable parse tree of the record content (everything
	// after the $NAME token).
	Root() *Node
	// String renders the record exactly as it appears in the source.
	String() string
}

type baseRecord struct {
	kind    string
	prefix  string // whitespace before the $ token
	nameTok string // the raw $NAME token as written
	root    *Node
}

func (r *baseRecord) Kind() string { return r.kind }
func (r *baseRecord) Root() *Node  { return r.root }

func (r *baseRecord) String() string {
	return r.prefix + r.nameTok + r.root.String()
}

// RawRecord is a record kind without a dedicated grammar ($PROBLEM,
// $COVARIANCE options are handled generically elsewhere). Its content is a
// single raw leaf.
type RawRecord struct {
	baseRecord
}

// Document is an ordered sequence of records plus any text preceding the
// first record. Rendering an unmodified document reproduces the input.
type Document struct {
	Prelude string
	Records []Record
}

// canonical record names. A record token matches a name if it is the full
// name or an abbreviation of at least three characters ($PK and $AES are
// shorter than three and match exactly).
var recordNames = []string{
	"ABBREVIATED",
	"AESINITIAL",
	"AES",
	"COVARIANCE",
	"DATA",
	"DES",
	"ERROR",
	"ESTIMATION",
	"ETAS",
	"INFN",
	"INPUT",
	"MIX",
	"MODEL",
	"MSFI",
	"OMEGA",
	"PK",
	"PRED",
	"PRIOR",
	"PROBLEM",
	"SIGMA",
	"SIMULATION",
	"SIZES",
	"SUBROUTINES",
	"TABLE",
	"THETA",
	"TOL",
}

// recordAliases are accepted spellings that are not prefixes of the
// canonical name, so the prefix scan can never resolve them.
var recordAliases = map[string]string{
	"SUBS":     "SUBROUTINES",
	"SIML":     "SIMULATION",
	"SIMULATE": "SIMULATION",
}

// canonicalKind resolves a raw record token (without the $) to the canonical
// record name, or "" if unknown.
func canonicalKind(tok string) string {
	up := strings.ToUpper(tok)
	for _, name := range recordNames {
		if up == name {
			return name
		}
	}
	if name, ok := recordAliases[up]; ok {
		return name
	}
	if len(up) < 3 {
		return ""
	}
	match := ""
	for _, name := range recordNames {
		if strings.HasPrefix(name, up) {
			if match != "" {
				return "" // ambiguous abbreviation
			}
			match = name
		}
	}
	return match
}

// Parse parses control-stream text into a Document. The parse is lossless:
// Render of the returned document equals text exactly.
func Parse(text string) (*Document, error) {
	doc := &Document{}
	chunks, prelude := splitRecords(text)
	doc.Prelude = prelude
	for _, ch := range chunks {
		rec, err := parseRecord(ch.prefix, ch.nameTok, ch.content)
		if err != nil {
			return nil, err
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

type recordChunk struct {
	prefix  string
	nameTok string
	content string
}

// splitRecords cuts the text into record chunks. A record starts at a line
// whose first non-blank character is $.
func splitRecords(text string) ([]recordChunk, string) {
	var chunks []recordChunk
	var prelude strings.Builder
	i := 0
	inRecord := false
	var cur recordChunk
	var content strings.Builder

	flush := func() {
		if inRecord {
			cur.content = content.String()
			content.Reset()
			chunks = append(chunks, cur)
		}
	}

	for i < len(text) {
		// Take one line including its newline.
		end := strings.IndexByte(text[i:], '\n')
		var line string
		if end < 0 {
			line = text[i:]
			i = len(text)
		} else {
			line = text[i : i+end+1]
			i += end + 1
		}

		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "$") {
			flush()
			inRecord = true
			prefixLen := len(line) - len(trimmed)
			nameLen := 1
			for nameLen < len(trimmed) && isRecordNameChar(trimmed[nameLen]) {
				nameLen++
			}
			cur = recordChunk{
				prefix:  line[:prefixLen],
				nameTok: trimmed[:nameLen],
			}
			content.WriteString(trimmed[nameLen:])
			continue
		}
		if inRecord {
			content.WriteString(line)
		} else {
			prelude.WriteString(line)
		}
	}
	flush()
	return chunks, prelude.String()
}

func isRecordNameChar(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
}

// parseRecord builds the typed record for one chunk.
func parseRecord(prefix, nameTok string, content string) (Record, error) {
	kind := canonicalKind(nameTok[1:])
	base := baseRecord{
		kind:    kind,
		prefix:  prefix,
		nameTok: nameTok,
		root:    Tree("root", Leaf("raw", content)),
	}
	switch kind {
	case "THETA":
		return parseThetaRecord(base, content)
	case "OMEGA", "SIGMA":
		return parseOmegaRecord(base, content)
	case "MODEL":
		opt, err := parseOptionContent(base, content)
		if err != nil {
			return nil, err
		}
		return &ModelRecord{OptionRecord: *opt}, nil
	case "INPUT":
		opt, err := parseOptionContent(base, content)
		if err != nil {
			return nil, err
		}
		return &InputRecord{OptionRecord: *opt}, nil
	case "DATA":
		return parseDataRecord(base, content)
	case "SUBROUTINES", "ESTIMATION", "TABLE", "ETAS", "ABBREVIATED", "SIZES", "COVARIANCE", "SIMULATION":
		return parseOptionContent(base, content)
	case "PK", "PRED", "ERROR", "DES", "INFN", "AES", "AESINITIAL", "MIX":
		return parseCodeRecord(base, content)
	default:
		// Unknown or free-form record kinds keep their raw content.
		return &RawRecord{baseRecord: base}, nil
	}
}

// Render reproduces the control-stream text.
func (d *Document) Render() string {
	var sb strings.Builder
	sb.WriteString(d.Prelude)
	for _, r := range d.Records {
		sb.WriteString(r.String())
	}
	return sb.String()
}

// RecordsOf returns all records of the given canonical kind in document
// order.
func (d *Document) RecordsOf(kind string) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Kind() == kind {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first record of the given kind, or nil.
func (d *Document) First(kind string) Record {
	for _, r := range d.Records {
		if r.Kind() == kind {
			return r
		}
	}
	return nil
}

// Thetas returns the $THETA records in document order.
func (d *Document) Thetas() []*ThetaRecord {
	var out []*ThetaRecord
	for _, r := range d.Records {
		if t, ok := r.(*ThetaRecord); ok {
			out = append(out, t)
		}
	}
	return out
}

// Omegas returns the $OMEGA records in document order.
func (d *Document) Omegas() []*OmegaRecord {
	return d.omegaKind("OMEGA")
}

// Sigmas returns the $SIGMA records in document order.
func (d *Document) Sigmas() []*OmegaRecord {
	return d.omegaKind("SIGMA")
}

func (d *Document) omegaKind(kind string) []*OmegaRecord {
	var out []*OmegaRecord
	for _, r := range d.Records {
		if o, ok := r.(*OmegaRecord); ok && o.Kind() == kind {
			out = append(out, o)
		}
	}
	return out
}

// Code returns the first code record of the given kind ($PK, $ERROR, $DES,
// $PRED), or nil.
func (d *Document) Code(kind string) *CodeRecord {
	for _, r := range d.Records {
		if c, ok := r.(*CodeRecord); ok && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// Append parses rawText as a new record and appends it to the document. The
// caller is responsible for a leading newline on the preceding record.
func (d *Document) Append(rawText string) (Record, error) {
	chunks, prelude := splitRecords(rawText)
	if len(chunks) != 1 || prelude != "" {
		return nil, &SyntaxError{Record: "", Text: rawText, Reason: "expected exactly one record"}
	}
	rec, err := parseRecord(chunks[0].prefix, chunks[0].nameTok, chunks[0].content)
	if err != nil {
		return nil, err
	}
	// Make sure the previous record ends with a newline so the new record
	// starts on its own line.
	if len(d.Records) > 0 {
		last := d.Records[len(d.Records)-1]
		if s := last.String(); !strings.HasSuffix(s, "\n") {
			last.Root().AddChildren(Leaf("NEWLINE", "\n"))
		}
	}
	d.Records = append(d.Records, rec)
	return rec, nil
}

// Remove deletes a record from the document.
func (d *Document) Remove(rec Record) {
	for i, r := range d.Records {
		if r == rec {
			d.Records = append(d.Records[:i], d.Records[i+1:]...)
			return
		}
	}
}

// InsertAfter inserts rec directly after the given anchor record, or appends
// when the anchor is not found.
func (d *Document) InsertAfter(anchor, rec Record) {
	for i, r := range d.Records {
		if r == anchor {
			d.Records = append(d.Records[:i+1], append([]Record{rec}, d.Records[i+1:]...)...)
			return
		}
	}
	d.Records = append(d.Records, rec)
}
