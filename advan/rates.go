package advan

import (
	"regexp"
	"strconv"

	"github.com/pharmflow/go-nmtran/nmtran"
)

// Rate is one transfer constant assigned in $PK for the general-topology
// subroutines: Name moves amount from compartment From to compartment To.
type Rate struct {
	From int
	To   int
	Name string
}

var rateRe = regexp.MustCompile(`^K(\d+)(T\d+)?$`)

// FindRates scans the $PK block for rate-constant assignments. Names use
// either the KiTj form or the packed Kij form; for packed three-digit names
// both the 1+2 and 2+1 digit splits are tried and an in-range match on both
// is an error since the intent cannot be recovered. A destination of 0
// addresses the output compartment.
func FindRates(doc *nmtran.Document, ncomps int) ([]Rate, error) {
	pk := doc.Code("PK")
	if pk == nil {
		return nil, nil
	}
	stmts, err := pk.Statements()
	if err != nil {
		return nil, err
	}
	var out []Rate
	for _, stmt := range stmts {
		if stmt.Raw != "" {
			continue
		}
		m := rateRe.FindStringSubmatch(stmt.Symbol)
		if m == nil {
			continue
		}
		var from, to int
		if m[2] != "" {
			from, _ = strconv.Atoi(m[1])
			to, _ = strconv.Atoi(m[2][1:])
		} else {
			digits := m[1]
			switch len(digits) {
			case 2:
				from = int(digits[0] - '0')
				to = int(digits[1] - '0')
			case 3:
				f1 := int(digits[0] - '0')
				t1, _ := strconv.Atoi(digits[1:])
				f2, _ := strconv.Atoi(digits[:2])
				t2 := int(digits[2] - '0')
				q1 := f1 <= ncomps && t1 <= ncomps && t1 != 0
				q2 := f2 <= ncomps && t2 <= ncomps
				switch {
				case q1 && q2:
					return nil, nmtran.NewModelSyntaxError(
						"rate parameter K%s is ambiguous, use the KiTj notation", digits)
				case q1:
					from, to = f1, t1
				case q2:
					from, to = f2, t2
				default:
					// Both splits address compartments outside the model.
					continue
				}
			case 4:
				from, _ = strconv.Atoi(digits[:2])
				to, _ = strconv.Atoi(digits[2:])
			default:
				return nil, nmtran.NewModelSyntaxError("cannot interpret rate parameter K%s", digits)
			}
		}
		if to == 0 {
			to = ncomps
		}
		out = append(out, Rate{From: from, To: to, Name: stmt.Symbol})
	}
	return out, nil
}
