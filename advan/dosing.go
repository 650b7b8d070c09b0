package advan

import (
	"fmt"

	"github.com/pharmflow/go-nmtran/expr"
	"github.com/pharmflow/go-nmtran/model"
)

// Dosing derives the dose for a compartment from the dataset RATE column.
// rates holds the column values; hasRate is false when the dataset has no
// usable RATE column, in which case dosing is a plain bolus of AMT. A column
// of zeros is also a bolus; -1 anywhere selects a modeled rate R<n>, -2 a
// modeled duration D<n>, and anything else an infusion at the recorded
// rate.
func Dosing(rates []float64, hasRate bool, doseComp int) model.Dose {
	amt := expr.Sym("AMT")
	if !hasRate {
		return model.Bolus{Amount: amt}
	}
	allZero := true
	hasMinusOne := false
	hasMinusTwo := false
	for _, r := range rates {
		if r != 0 {
			allZero = false
		}
		if r == -1 {
			hasMinusOne = true
		}
		if r == -2 {
			hasMinusTwo = true
		}
	}
	switch {
	case allZero:
		return model.Bolus{Amount: amt}
	case hasMinusOne:
		return model.Infusion{Amount: amt, Rate: expr.Sym(fmt.Sprintf("R%d", doseComp))}
	case hasMinusTwo:
		return model.Infusion{Amount: amt, Duration: expr.Sym(fmt.Sprintf("D%d", doseComp))}
	default:
		return model.Infusion{Amount: amt, Rate: expr.Sym("RATE")}
	}
}
