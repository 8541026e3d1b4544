// Package fhirtree implements the Element Node tree data model: the
// hierarchical, tagged-tree representation of a FHIR resource that the rule
// engine, path matcher, and processors operate on in place.
//
// The package also ships a default JSON decoder/encoder (json.go) and a
// small built-in schema registry (schema.go) so the tree is usable without
// pulling in a full FHIR validation library. Neither is a hard dependency of
// the engine: anything that can produce and consume a *Node tree works.
package fhirtree

import "strconv"

// Node is one node in the Element Node tree. Nodes are mutable in place and
// owned exclusively by the resource document they belong to.
type Node struct {
	// InstanceType is the schema name of this node, e.g. "HumanName",
	// "date", "Patient" for a resource root.
	InstanceType string
	// Name is the field name this node is known by under its parent, e.g.
	// "birthDate". Empty for the resource root.
	Name string
	// Value holds a primitive payload (string, float64, bool, or nil for
	// compound nodes).
	Value any
	// Children holds this node's child nodes in document order.
	Children []*Node
	// Parent links back toward the root; nil for the root node.
	Parent *Node
	// Repeated marks a node produced from a JSON array field, even one with
	// a single element, so the encoder round-trips it as an array rather
	// than a bare object.
	Repeated bool
}

// NewNode constructs a node with the given schema type and field name.
func NewNode(instanceType, name string) *Node {
	return &Node{InstanceType: instanceType, Name: name}
}

// AddChild appends a child node, wiring its Parent pointer.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Root walks Parent links to the top of the tree.
func (n *Node) Root() *Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// IsResource reports whether this node is a resource root.
func (n *Node) IsResource() bool {
	return n.Parent == nil
}

// ResourceID returns the "id" field of this node's owning resource root, or
// "" if none is present. Used by DateShift (Resource scope) and by audit
// logging to key per-subject state.
func (n *Node) ResourceID() string {
	root := n.Root()
	for _, c := range root.Children {
		if c.Name == "id" {
			if s, ok := c.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// ChildrenNamed returns this node's direct children whose Name equals name,
// in document order. FHIR repeating elements (e.g. "given") appear as
// multiple same-named children.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// IsEmpty reports whether the node carries neither a value nor any
// descendants — the short-circuit condition every processor checks before
// mutating.
func (n *Node) IsEmpty() bool {
	return n.Value == nil && len(n.Children) == 0
}

// RemoveChild deletes the first child identical to target, if present.
func (n *Node) RemoveChild(target *Node) {
	for i, c := range n.Children {
		if c == target {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// Clear empties the node's value and children in place — the Redact
// processor's primary mutation.
func (n *Node) Clear() {
	n.Value = nil
	n.Children = nil
}

// Walk invokes fn for n and every descendant, in pre-order (document order).
// fn has no way to stop the walk; Walk always visits the whole subtree —
// callers filter inside fn.
func Walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Path renders a dotted path from the resource root to n, using field names
// and, where more than one sibling shares the field name, an index suffix —
// e.g. "name[0].given[1]". Used
// to populate Process Record's Path.
func (n *Node) Path() string {
	if n.Parent == nil {
		return ""
	}
	segments := make([]string, 0, 8)
	cur := n
	for cur.Parent != nil {
		idx := indexAmongSiblingsWithSameName(cur)
		seg := cur.Name
		if idx >= 0 {
			seg += "[" + strconv.Itoa(idx) + "]"
		}
		segments = append(segments, seg)
		cur = cur.Parent
	}
	// segments were collected root-ward; reverse into root-to-leaf order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	out := segments[0]
	for _, s := range segments[1:] {
		out += "." + s
	}
	return out
}

func indexAmongSiblingsWithSameName(n *Node) int {
	if n.Parent == nil {
		return -1
	}
	named := n.Parent.ChildrenNamed(n.Name)
	if len(named) <= 1 {
		return -1
	}
	for i, c := range named {
		if c == n {
			return i
		}
	}
	return -1
}
