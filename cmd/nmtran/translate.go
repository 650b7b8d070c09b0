package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/pharmflow/go-nmtran/nonmem"
)

func translate(args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	reverse := fs.Bool("reverse", false, "Show resolved-to-positional direction")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nmtran translate <model.mod> [options]

Show the name translation between positional NONMEM names (THETA(1),
OMEGA(1,1), ETA(1)) and the resolved names taken from comment labels and
$ABBREVIATED REPLACE aliases.

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

	trans := m.ParameterTranslation(*reverse, false)
	for k, v := range m.RVTranslation(*reverse, false) {
		trans[k] = v
	}
	keys := make([]string, 0, len(trans))
	for k := range trans {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-16s -> %s\n", k, trans[k])
	}
	return nil
}
