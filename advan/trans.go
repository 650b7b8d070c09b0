package advan

import "github.com/pharmflow/go-nmtran/expr"

// The TRANS routines translate reparameterized rate constants back to the
// natural micro-constants of each subroutine. TRANS1 (natural K names) is
// the fallback for every subroutine.

func advan1and2Trans(trans string) expr.Expr {
	if trans == "TRANS2" {
		return expr.Div(expr.Sym("CL"), expr.Sym("V"))
	}
	return expr.Sym("K")
}

func advan3Trans(trans string) (k, k12, k21 expr.Expr) {
	switch trans {
	case "TRANS3":
		return expr.Div(expr.Sym("CL"), expr.Sym("V")),
			expr.Div(expr.Sym("Q"), expr.Sym("V")),
			expr.Div(expr.Sym("Q"), expr.Sub(expr.Sym("VSS"), expr.Sym("V")))
	case "TRANS4":
		return expr.Div(expr.Sym("CL"), expr.Sym("V1")),
			expr.Div(expr.Sym("Q"), expr.Sym("V1")),
			expr.Div(expr.Sym("Q"), expr.Sym("V2"))
	case "TRANS5":
		return expr.Div(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K21")),
			expr.Sub(expr.Sub(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K21")), expr.Sym("K")),
			expr.Div(
				expr.Add(expr.Mul(expr.Sym("AOB"), expr.Sym("BETA")), expr.Sym("ALPHA")),
				expr.Add(expr.Sym("AOB"), expr.Int(1)),
			)
	case "TRANS6":
		return expr.Div(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K21")),
			expr.Sub(expr.Sub(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K21")), expr.Sym("K")),
			expr.Sym("K21")
	}
	return expr.Sym("K"), expr.Sym("K12"), expr.Sym("K21")
}

func advan4Trans(trans string) (k, k23, k32 expr.Expr) {
	switch trans {
	case "TRANS3":
		return expr.Div(expr.Sym("CL"), expr.Sym("V")),
			expr.Div(expr.Sym("Q"), expr.Sym("V")),
			expr.Div(expr.Sym("Q"), expr.Sub(expr.Sym("VSS"), expr.Sym("V")))
	case "TRANS4":
		return expr.Div(expr.Sym("CL"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q"), expr.Sym("V3"))
	case "TRANS5":
		return expr.Div(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K32")),
			expr.Sub(expr.Sub(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K32")), expr.Sym("K")),
			expr.Div(
				expr.Add(expr.Mul(expr.Sym("AOB"), expr.Sym("BETA")), expr.Sym("ALPHA")),
				expr.Add(expr.Sym("AOB"), expr.Int(1)),
			)
	case "TRANS6":
		return expr.Div(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K32")),
			expr.Sub(expr.Sub(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("K32")), expr.Sym("K")),
			expr.Sym("K32")
	}
	return expr.Sym("K"), expr.Sym("K23"), expr.Sym("K32")
}

func advan11Trans(trans string) (k, k12, k21, k13, k31 expr.Expr) {
	switch trans {
	case "TRANS4":
		return expr.Div(expr.Sym("CL"), expr.Sym("V1")),
			expr.Div(expr.Sym("Q2"), expr.Sym("V1")),
			expr.Div(expr.Sym("Q2"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q3"), expr.Sym("V1")),
			expr.Div(expr.Sym("Q3"), expr.Sym("V3"))
	case "TRANS6":
		sum := expr.Add(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("GAMMA"))
		return expr.Div(
				expr.Mul(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("GAMMA")),
				expr.Mul(expr.Sym("K21"), expr.Sym("K31")),
			),
			expr.Sub(expr.Sub(expr.Sub(expr.Sub(sum, expr.Sym("K")), expr.Sym("K13")), expr.Sym("K21")), expr.Sym("K31")),
			expr.Sym("K21"),
			expr.Div(
				expr.Sub(
					expr.Sub(
						expr.AddAll(
							expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")),
							expr.Mul(expr.Sym("ALPHA"), expr.Sym("GAMMA")),
							expr.Mul(expr.Sym("BETA"), expr.Sym("GAMMA")),
							expr.Mul(expr.Sym("K31"), expr.Sym("K31")),
						),
						expr.Mul(expr.Sym("K31"), sum),
					),
					expr.Mul(expr.Sym("K"), expr.Sym("K21")),
				),
				expr.Sub(expr.Sym("K21"), expr.Sym("K31")),
			),
			expr.Sym("K31")
	}
	return expr.Sym("K"), expr.Sym("K12"), expr.Sym("K21"), expr.Sym("K13"), expr.Sym("K31")
}

func advan12Trans(trans string) (k, k23, k32, k24, k42 expr.Expr) {
	switch trans {
	case "TRANS4":
		return expr.Div(expr.Sym("CL"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q3"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q3"), expr.Sym("V3")),
			expr.Div(expr.Sym("Q4"), expr.Sym("V2")),
			expr.Div(expr.Sym("Q4"), expr.Sym("V4"))
	case "TRANS6":
		sum := expr.Add(expr.Add(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("GAMMA"))
		return expr.Div(
				expr.Mul(expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")), expr.Sym("GAMMA")),
				expr.Mul(expr.Sym("K32"), expr.Sym("K42")),
			),
			expr.Sub(expr.Sub(expr.Sub(expr.Sub(sum, expr.Sym("K")), expr.Sym("K24")), expr.Sym("K32")), expr.Sym("K42")),
			expr.Sym("K32"),
			expr.Div(
				expr.Sub(
					expr.Sub(
						expr.AddAll(
							expr.Mul(expr.Sym("ALPHA"), expr.Sym("BETA")),
							expr.Mul(expr.Sym("ALPHA"), expr.Sym("GAMMA")),
							expr.Mul(expr.Sym("BETA"), expr.Sym("GAMMA")),
							expr.Mul(expr.Sym("K42"), expr.Sym("K42")),
						),
						expr.Mul(expr.Sym("K42"), sum),
					),
					expr.Mul(expr.Sym("K"), expr.Sym("K32")),
				),
				expr.Sub(expr.Sym("K32"), expr.Sym("K42")),
			),
			expr.Sym("K42")
	}
	return expr.Sym("K"), expr.Sym("K23"), expr.Sym("K32"), expr.Sym("K24"), expr.Sym("K42")
}
