package nmtran

import (
	"fmt"
	"sort"
)

// NameMap is the bidirectional mapping between the positional index of a
// parameter within the document (1-based, consecutive across same-kind
// records) and its resolved name. The mapping is a bijection: no two indices
// share a name and no two names share an index.
type NameMap struct {
	index map[string]int
}

// NewNameMap returns an empty name map.
func NewNameMap() *NameMap {
	return &NameMap{index: make(map[string]int)}
}

// Set binds name to idx, replacing any previous binding of either.
func (m *NameMap) Set(name string, idx int) {
	for n, i := range m.index {
		if i == idx && n != name {
			delete(m.index, n)
		}
	}
	m.index[name] = idx
}

// Index returns the positional index bound to name.
func (m *NameMap) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// NameOf returns the name bound to idx.
func (m *NameMap) NameOf(idx int) (string, bool) {
	for n, i := range m.index {
		if i == idx {
			return n, true
		}
	}
	return "", false
}

// Rename rebinds the index of from to the name to. Renaming to an existing
// name would break the bijection and is rejected.
func (m *NameMap) Rename(from, to string) error {
	if from == to {
		return nil
	}
	idx, ok := m.index[from]
	if !ok {
		return nil
	}
	if _, exists := m.index[to]; exists {
		return fmt.Errorf("cannot rename %s to %s: name already in use", from, to)
	}
	delete(m.index, from)
	m.index[to] = idx
	return nil
}

// Remove deletes the binding for name.
func (m *NameMap) Remove(name string) {
	delete(m.index, name)
}

// Renumber reassigns dense consecutive indices starting at newStart,
// preserving the current index order.
func (m *NameMap) Renumber(newStart int) {
	names := m.Names()
	for i, name := range names {
		m.index[name] = newStart + i
	}
}

// Names returns all names ordered by index.
func (m *NameMap) Names() []string {
	type pair struct {
		name string
		idx  int
	}
	pairs := make([]pair, 0, len(m.index))
	for n, i := range m.index {
		pairs = append(pairs, pair{n, i})
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].idx < pairs[b].idx })
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.name
	}
	return names
}

// FirstIndex returns the smallest bound index, or 0 for an empty map.
func (m *NameMap) FirstIndex() int {
	first := 0
	for _, i := range m.index {
		if first == 0 || i < first {
			first = i
		}
	}
	return first
}

// Len returns the number of bindings.
func (m *NameMap) Len() int { return len(m.index) }
