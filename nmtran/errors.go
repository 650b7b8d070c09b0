package nmtran

import "fmt"

// SyntaxError reports record text the grammar could not parse. The offending
// raw text is carried so the problem can be located in the source file.
type SyntaxError struct {
	Record string // record kind, e.g. "THETA"
	Text   string // offending raw text
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in $%s record: %s (offending text: %q)", e.Record, e.Reason, e.Text)
}

// ModelSyntaxError reports text that parses but is semantically invalid as a
// model: an ambiguous rate-constant name, a missing dosing compartment, or a
// duplicate parameter label that survived fallback.
type ModelSyntaxError struct {
	Msg string
}

func (e *ModelSyntaxError) Error() string { return e.Msg }

// NewModelSyntaxError formats a ModelSyntaxError.
func NewModelSyntaxError(format string, args ...any) *ModelSyntaxError {
	return &ModelSyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// DatasetError reports a column or synonym resolution conflict in $INPUT or
// $DATA.
type DatasetError struct {
	Msg string
}

func (e *DatasetError) Error() string { return e.Msg }
