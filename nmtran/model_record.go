package nmtran

import (
	"fmt"
	"strings"
)

// ModelRecord is the typed accessor over $MODEL: compartment declarations
// for the general-topology subroutines plus the explicit-ODE case.
type ModelRecord struct {
	OptionRecord
}

// CompartmentDecl is one declared compartment with its recognized option
// tags.
type CompartmentDecl struct {
	Name    string
	Options []string
}

// compartmentOptions are the tags recognized inside a COMPARTMENT group.
var compartmentOptions = []string{
	"INITIALOFF",
	"NOOFF",
	"NODOSE",
	"EQUILIBRIUM",
	"EXCLUDE",
	"DEFOBSERVATION",
	"DEFDOSE",
}

// NComps returns the declared compartment count from NCOMPARTMENTS (or its
// NCOMPS/NCM abbreviations), or ok=false.
func (r *ModelRecord) NComps() (int, bool) {
	for _, key := range []string{"NCOMPARTMENTS", "NCOMPS", "NCM"} {
		if v, ok := r.GetOption(key); ok {
			if n, ok := intOption(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// Compartments returns the declared compartments in order. A count-only
// declaration (NCOMPARTMENTS=n without COMPARTMENT groups) yields the
// default names COMP1..COMPn. Inside a group, unrecognized tokens name the
// compartment and recognized tags (possibly abbreviated) become options.
func (r *ModelRecord) Compartments() []CompartmentDecl {
	lists := r.OptionLists("COMPARTMENT")
	if len(lists) == 0 {
		if n, ok := r.NComps(); ok {
			out := make([]CompartmentDecl, n)
			for i := range out {
				out[i] = CompartmentDecl{Name: fmt.Sprintf("COMP%d", i+1)}
			}
			return out
		}
		return nil
	}
	out := make([]CompartmentDecl, 0, len(lists))
	for i, tokens := range lists {
		decl := CompartmentDecl{Name: fmt.Sprintf("COMP%d", i+1)}
		for _, tok := range tokens {
			if match := MatchOption(compartmentOptions, tok); match != "" {
				decl.Options = append(decl.Options, match)
			} else {
				decl.Name = tok
			}
		}
		out = append(out, decl)
	}
	return out
}

// HasOption reports an option tag on the named compartment.
func (d CompartmentDecl) HasOption(tag string) bool {
	for _, o := range d.Options {
		if o == tag {
			return true
		}
	}
	return false
}

// CompartmentNumber returns the 1-based position of the named compartment.
func (r *ModelRecord) CompartmentNumber(name string) (int, bool) {
	for i, decl := range r.Compartments() {
		if decl.Name == name {
			return i + 1, true
		}
	}
	return 0, false
}

// AddCompartment appends a COMPARTMENT group for name, optionally tagged
// DEFDOSE.
func (r *ModelRecord) AddCompartment(name string, dosing bool) {
	value := "(" + name
	if dosing {
		value += " DEFDOSE"
	}
	value += ")"
	r.AppendOption("COMPARTMENT", value)
}

// RemoveCompartment deletes the COMPARTMENT group for name.
func (r *ModelRecord) RemoveCompartment(name string) {
	n, ok := r.CompartmentNumber(name)
	if !ok {
		return
	}
	count := 0
	r.removeOptions(func(opt Option) bool {
		if MatchOption([]string{"COMPARTMENT"}, opt.Key) != "COMPARTMENT" {
			return false
		}
		count++
		return count == n
	})
}

// SetDosing tags the named compartment with DEFDOSE.
func (r *ModelRecord) SetDosing(name string) {
	n, ok := r.CompartmentNumber(name)
	if !ok {
		return
	}
	r.editCompartmentValue(n, func(fields []string) []string {
		for _, f := range fields {
			if MatchOption(compartmentOptions, f) == "DEFDOSE" {
				return fields
			}
		}
		return append(fields, "DEFDOSE")
	})
}

// MoveDosingFirst removes every DEFDOSE tag and sets it on the first
// compartment.
func (r *ModelRecord) MoveDosingFirst() {
	n := 0
	for _, c := range r.root.Children {
		if c.Rule != "option" {
			continue
		}
		opt := nodeOption(c)
		if MatchOption([]string{"COMPARTMENT"}, opt.Key) != "COMPARTMENT" {
			continue
		}
		n++
		idx := n
		r.editCompartmentValue(idx, func(fields []string) []string {
			var out []string
			for _, f := range fields {
				if MatchOption(compartmentOptions, f) == "DEFDOSE" {
					continue
				}
				out = append(out, f)
			}
			if idx == 1 {
				out = append(out, "DEFDOSE")
			}
			return out
		})
	}
}

// editCompartmentValue rewrites the value of the nth COMPARTMENT group.
func (r *ModelRecord) editCompartmentValue(n int, edit func([]string) []string) {
	count := 0
	for _, c := range r.root.Children {
		if c.Rule != "option" {
			continue
		}
		opt := nodeOption(c)
		if MatchOption([]string{"COMPARTMENT"}, opt.Key) != "COMPARTMENT" {
			continue
		}
		count++
		if count != n {
			continue
		}
		fields := edit(splitOptionList(opt.Value))
		if v := c.Find("VALUE"); v != nil {
			v.Value = "(" + strings.Join(fields, " ") + ")"
		}
		return
	}
}
