package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pharmflow/go-nmtran/model"
	"github.com/pharmflow/go-nmtran/nonmem"
)

func summary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nmtran summary <model.mod>

Display a quick overview of a model: structural system, parameters,
random effects and estimation steps.

Examples:
  nmtran summary run1.mod
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("model file required")
	}

	m, err := nonmem.ReadModel(fs.Arg(0), nonmem.DefaultConfig())
	if err != nil {
		return fmt.Errorf("parse model: %w", err)
	}

	fmt.Printf("Model: %s\n", m.Name())

	switch ode := m.ODESystem().(type) {
	case *model.CompartmentalSystem:
		var names []string
		for _, c := range ode.Compartments() {
			names = append(names, c.Name)
		}
		fmt.Printf("Structure: compartmental (%s)\n", strings.Join(names, ", "))
		if per := ode.Peripherals(); len(per) > 0 {
			fmt.Printf("Peripheral compartments: %d\n", len(per))
		}
	case *model.ExplicitODESystem:
		fmt.Printf("Structure: explicit ODE system, %d equations\n", len(ode.Equations))
	default:
		fmt.Println("Structure: none (PRED)")
	}

	fmt.Printf("Parameters: %d\n", m.Parameters().Len())
	rvs := m.RandomVariables()
	fmt.Printf("Random effects: %d eta, %d epsilon\n", len(rvs.EtaNames()), len(rvs.EpsilonNames()))

	for i, step := range m.EstimationSteps() {
		desc := step.Method
		if step.Interaction {
			desc += " INTERACTION"
		}
		if step.Laplace {
			desc += " LAPLACE"
		}
		if step.Evaluation {
			desc += " (evaluation only)"
		}
		fmt.Printf("Estimation step %d: %s\n", i+1, desc)
	}

	if di := m.DataInfo(); di != nil && len(di.Columns) > 0 {
		fmt.Printf("Dataset: %s (%d columns)\n", di.Path, len(di.Columns))
	}
	for _, w := range m.Warnings() {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}
