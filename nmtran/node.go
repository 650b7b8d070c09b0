// Package nmtran implements a lossless parser for NONMEM control streams.
// A control stream is split into records ($PROBLEM, $THETA, $PK, ...), each
// backed by a mutable parse tree that retains every input character so that
// rendering an unmodified document reproduces the source byte for byte.
// Typed accessors over the record trees expose the semantic content (theta
// clauses, compartment declarations, option lists) and support the in-place
// edits performed by the update engine.
package nmtran

import "strings"

// Node is one syntactic unit of a record's parse tree: either a leaf token
// carrying raw text, or an interior node whose text is the concatenation of
// its children. Mutating a leaf's Value changes exactly that span of the
// rendered output and nothing else.
type Node struct {
	Rule     string
	Value    string // raw text, leaves only
	Children []*Node
}

// Leaf returns a new leaf node.
func Leaf(rule, value string) *Node {
	return &Node{Rule: rule, Value: value}
}

// Tree returns a new interior node with the given children.
func Tree(rule string, children ...*Node) *Node {
	return &Node{Rule: rule, Children: children}
}

// String renders the raw text of the subtree.
func (n *Node) String() string {
	if n.Children == nil {
		return n.Value
	}
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (n *Node) writeTo(sb *strings.Builder) {
	if n.Children == nil {
		sb.WriteString(n.Value)
		return
	}
	for _, c := range n.Children {
		c.writeTo(sb)
	}
}

// Find returns the first direct child with the given rule, or nil.
func (n *Node) Find(rule string) *Node {
	for _, c := range n.Children {
		if c.Rule == rule {
			return c
		}
	}
	return nil
}

// All returns the direct children with the given rule.
func (n *Node) All(rule string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Rule == rule {
			out = append(out, c)
		}
	}
	return out
}

// FirstLeaf returns the first leaf of the subtree, or nil for an empty tree.
func (n *Node) FirstLeaf() *Node {
	var leaf *Node
	n.Walk(func(c *Node) bool {
		if c.Children == nil {
			leaf = c
			return false
		}
		return true
	})
	return leaf
}

// Remove deletes the first direct child identical to target.
func (n *Node) Remove(target *Node) {
	for i, c := range n.Children {
		if c == target {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// AddChildren appends children to an interior node.
func (n *Node) AddChildren(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Walk visits every node of the subtree in document order.
func (n *Node) Walk(visit func(*Node) bool) bool {
	if !visit(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(visit) {
			return false
		}
	}
	return true
}
