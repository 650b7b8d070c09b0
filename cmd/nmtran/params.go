package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pharmflow/go-nmtran/nonmem"
)

func params(args []string) error {
	fs := flag.NewFlagSet("params", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "Output parameters as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nmtran params <model.mod> [options]

List model parameters with their initial estimates, bounds and FIX status.
Names are resolved from comment labels and $ABBREVIATED REPLACE aliases.

Options:
`)
		fs.PrintDefaults()
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

	if *outputJSON {
		type paramJSON struct {
			Name  string  `json:"name"`
			Init  float64 `json:"init"`
			Lower float64 `json:"lower"`
			Upper float64 `json:"upper"`
			Fix   bool    `json:"fix,omitempty"`
		}
		var out []paramJSON
		for _, p := range m.Parameters().All() {
			out = append(out, paramJSON{p.Name, p.Init, p.Lower, p.Upper, p.Fix})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-20s %12s %12s %12s %s\n", "NAME", "INIT", "LOWER", "UPPER", "FIX")
	for _, p := range m.Parameters().All() {
		fix := ""
		if p.Fix {
			fix = "FIX"
		}
		fmt.Printf("%-20s %12g %12g %12g %s\n", p.Name, p.Init, p.Lower, p.Upper, fix)
	}
	return nil
}
