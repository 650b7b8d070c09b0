// Package model holds the symbolic side of a pharmacometric model: scalar
// parameters, random-effect distributions, the assignment statement
// sequence, and the compartmental flow graph with dosing attached.
// Everything here is built fresh rather than mutated in place; the
// control-stream layer diffs old against new collections to synthesize
// textual edits.
package model

import "fmt"

// Parameter is a scalar model parameter with initial estimate and bounds.
type Parameter struct {
	Name  string
	Init  float64
	Lower float64
	Upper float64
	Fix   bool
}

// Parameters is an ordered, name-keyed set of parameters. Insertion order is
// declaration order and names are unique.
type Parameters struct {
	list  []Parameter
	index map[string]int
}

// NewParameters builds a parameter set, returning an error on duplicate
// names.
func NewParameters(params ...Parameter) (*Parameters, error) {
	ps := &Parameters{index: make(map[string]int, len(params))}
	for _, p := range params {
		if err := ps.Add(p); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// Add appends a parameter; the name must be unused.
func (ps *Parameters) Add(p Parameter) error {
	if ps.index == nil {
		ps.index = make(map[string]int)
	}
	if _, exists := ps.index[p.Name]; exists {
		return fmt.Errorf("duplicate parameter name %s", p.Name)
	}
	ps.index[p.Name] = len(ps.list)
	ps.list = append(ps.list, p)
	return nil
}

// Get returns the parameter with the given name.
func (ps *Parameters) Get(name string) (Parameter, bool) {
	i, ok := ps.index[name]
	if !ok {
		return Parameter{}, false
	}
	return ps.list[i], true
}

// Has reports whether a parameter with the given name exists.
func (ps *Parameters) Has(name string) bool {
	_, ok := ps.index[name]
	return ok
}

// Set replaces the parameter with the same name, or appends it.
func (ps *Parameters) Set(p Parameter) {
	if i, ok := ps.index[p.Name]; ok {
		ps.list[i] = p
		return
	}
	_ = ps.Add(p)
}

// SetInit updates the initial estimate of a named parameter.
func (ps *Parameters) SetInit(name string, init float64) bool {
	i, ok := ps.index[name]
	if !ok {
		return false
	}
	ps.list[i].Init = init
	return true
}

// Remove deletes a parameter by name, preserving the order of the rest.
func (ps *Parameters) Remove(name string) bool {
	i, ok := ps.index[name]
	if !ok {
		return false
	}
	ps.list = append(ps.list[:i], ps.list[i+1:]...)
	delete(ps.index, name)
	for j := i; j < len(ps.list); j++ {
		ps.index[ps.list[j].Name] = j
	}
	return true
}

// Rename changes a parameter's name in place, keeping its position.
func (ps *Parameters) Rename(from, to string) error {
	if from == to {
		return nil
	}
	i, ok := ps.index[from]
	if !ok {
		return fmt.Errorf("no parameter named %s", from)
	}
	if _, exists := ps.index[to]; exists {
		return fmt.Errorf("cannot rename %s to %s: name already in use", from, to)
	}
	delete(ps.index, from)
	ps.index[to] = i
	ps.list[i].Name = to
	return nil
}

// Names returns parameter names in declaration order.
func (ps *Parameters) Names() []string {
	names := make([]string, len(ps.list))
	for i, p := range ps.list {
		names[i] = p.Name
	}
	return names
}

// All returns the parameters in declaration order. The returned slice is a
// copy.
func (ps *Parameters) All() []Parameter {
	out := make([]Parameter, len(ps.list))
	copy(out, ps.list)
	return out
}

// Inits returns name -> initial estimate.
func (ps *Parameters) Inits() map[string]float64 {
	out := make(map[string]float64, len(ps.list))
	for _, p := range ps.list {
		out[p.Name] = p.Init
	}
	return out
}

// SetInits applies the given initial estimates; unknown names are ignored.
func (ps *Parameters) SetInits(inits map[string]float64) {
	for name, init := range inits {
		ps.SetInit(name, init)
	}
}

// Len returns the number of parameters.
func (ps *Parameters) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.list)
}

// Copy returns a deep copy.
func (ps *Parameters) Copy() *Parameters {
	out := &Parameters{
		list:  make([]Parameter, len(ps.list)),
		index: make(map[string]int, len(ps.index)),
	}
	copy(out.list, ps.list)
	for k, v := range ps.index {
		out.index[k] = v
	}
	return out
}
