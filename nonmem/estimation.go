package nonmem

import (
	"strconv"
	"strings"

	"github.com/pharmflow/go-nmtran/nmtran"
)

// EstimationStep is the parsed view of one $ESTIMATION record. This layer
// represents estimation configuration only; running an estimation engine is
// out of scope.
type EstimationStep struct {
	Method             string
	Interaction        bool
	Laplace            bool
	Evaluation         bool
	Covariance         bool
	MaximumEvaluations int
	ISample            int
	NIter              int
	ToolOptions        map[string]string
}

// estimationProtected are the options consumed into EstimationStep fields;
// everything else passes through as a tool option.
var estimationProtected = map[string]bool{
	"METHOD": true, "METH": true,
	"INTERACTION": true, "INTER": true,
	"LAPLACIAN": true, "LAPLACE": true,
	"MAXEVAL": true, "MAXEVALS": true,
	"EONLY": true, "ISAMPLE": true, "NITER": true,
}

// parseEstimationSteps reads every $ESTIMATION record in order. METHOD=0 or
// ZERO is first order, METHOD=1 or COND(ITIONAL) is FOCE; other method
// names pass through unchanged.
func parseEstimationSteps(doc *nmtran.Document) []EstimationStep {
	var steps []EstimationStep
	hasCov := doc.First("COVARIANCE") != nil
	for _, rec := range doc.RecordsOf("ESTIMATION") {
		opt, ok := rec.(*nmtran.OptionRecord)
		if !ok {
			continue
		}
		step := EstimationStep{Covariance: hasCov}
		method := ""
		for _, o := range opt.AllOptions() {
			if nmtran.MatchOption([]string{"METHOD"}, o.Key) == "METHOD" || strings.EqualFold(o.Key, "METH") {
				method = strings.ToUpper(o.Value)
			}
		}
		switch method {
		case "", "0", "ZERO":
			step.Method = "FO"
		case "1", "COND", "CONDITIONAL":
			step.Method = "FOCE"
		default:
			step.Method = method
		}
		if opt.HasOption("INTERACTION") || opt.HasOption("INTER") {
			step.Interaction = true
		}
		if opt.HasOption("LAPLACIAN") || opt.HasOption("LAPLACE") {
			step.Laplace = true
		}
		if v, ok := opt.GetOption("MAXEVAL"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				if n == 0 && (step.Method == "FO" || step.Method == "FOCE") {
					step.Evaluation = true
				} else {
					step.MaximumEvaluations = n
				}
			}
		}
		if v, ok := opt.GetOption("EONLY"); ok && v == "1" {
			step.Evaluation = true
		}
		if v, ok := opt.GetOption("ISAMPLE"); ok {
			step.ISample, _ = strconv.Atoi(v)
		}
		if v, ok := opt.GetOption("NITER"); ok {
			step.NIter, _ = strconv.Atoi(v)
		}
		for key, value := range opt.OptionPairs() {
			up := strings.ToUpper(key)
			if estimationProtected[up] || up == method {
				continue
			}
			if step.ToolOptions == nil {
				step.ToolOptions = make(map[string]string)
			}
			step.ToolOptions[key] = value
		}
		steps = append(steps, step)
	}
	return steps
}
