// Package nonmem ties the record grammar, the symbolic model layer and the
// structural-model builder together into a Model facade: parse a control
// stream, read and edit parameters, random effects and statements by name,
// and write the edits back as minimal textual changes.
package nonmem

// Naming sources for resolved parameter names, in the order Config lists
// them.
const (
	NameAbbr    = "abbr"    // $ABBREVIATED REPLACE aliases
	NameComment = "comment" // trailing ; labels on record clauses
	NameBasic   = "basic"   // positional THETA(i)/OMEGA(i,j) names
)

// Config carries per-model behavior that would otherwise live in process
// globals. A zero Config is usable; DefaultConfig fills in the conventional
// choices.
type Config struct {
	// ParameterNames is the priority order of naming sources. The first
	// source that yields a name for a parameter wins. Basic names are always
	// the final fallback even when not listed.
	ParameterNames []string
	// WriteEtasInAbbr emits $ABBREVIATED REPLACE records for renamed etas on
	// update instead of renaming statement symbols only.
	WriteEtasInAbbr bool
	// DefaultOutputPath is where artifacts (datasets, phi files) are written
	// when the model has no path of its own.
	DefaultOutputPath string
}

// DefaultConfig resolves names from comment labels first, then falls back to
// basic positional names.
func DefaultConfig() Config {
	return Config{ParameterNames: []string{NameComment, NameBasic}}
}

func (c Config) useSource(source string) bool {
	for _, s := range c.ParameterNames {
		if s == source {
			return true
		}
	}
	return false
}

// sourceRank returns the priority position of a naming source, lower is
// stronger. Unlisted sources rank after all listed ones.
func (c Config) sourceRank(source string) int {
	for i, s := range c.ParameterNames {
		if s == source {
			return i
		}
	}
	return len(c.ParameterNames)
}
