package fhirtree

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/savegress/fhirguard/pkg/ferrors"
)

// FromJSON decodes a FHIR resource document into an element node tree.
// This is the default JSON-to-tree decoder; callers wired to a real
// schema-validating FHIR library can build *Node trees their own way and
// hand them to the engine directly.
func FromJSON(data []byte) (*Node, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ferrors.InvalidInputError{Detail: "malformed JSON resource", Cause: err}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ferrors.InvalidInputError{Detail: "resource document must be a JSON object"}
	}
	resourceType, _ := obj["resourceType"].(string)
	if resourceType == "" {
		return nil, &ferrors.InvalidInputError{Detail: "resource document missing resourceType"}
	}
	root := NewNode(resourceType, "")
	decodeObject(root, resourceType, obj)
	return root, nil
}

// decodeObject populates parent's children from the JSON object obj, whose
// own schema type is parentType. Keys are visited in sorted order so
// FromJSON is deterministic across runs; the path matcher that walks this
// tree afterward depends on a stable document order.
func decodeObject(parent *Node, parentType string, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := obj[key]
		switch v := val.(type) {
		case []any:
			for _, item := range v {
				child := decodeValue(parentType, key, item)
				child.Repeated = true
				parent.AddChild(child)
			}
		default:
			child := decodeValue(parentType, key, val)
			parent.AddChild(child)
		}
	}
}

func decodeValue(parentType, key string, val any) *Node {
	switch v := val.(type) {
	case map[string]any:
		typ := TypeForField(parentType, key, true)
		n := NewNode(typ, key)
		decodeObject(n, typ, v)
		return n
	default:
		typ := TypeForField(parentType, key, false)
		n := NewNode(typ, key)
		n.Value = v
		return n
	}
}

// FromJSONField decodes a single element's JSON payload into a standalone
// *Node, rather than a whole resource — the collaborator
// internal/api.AnonymizeElement needs to build the tree engine.AnonymizeElement
// expects from an HTTP request body that carries one field rather than a
// full `{"resourceType": ...}` document.
func FromJSONField(instanceType, name string, data []byte) (*Node, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ferrors.InvalidInputError{Detail: "malformed JSON element", Cause: err}
	}
	return decodeValue(instanceType, name, raw), nil
}

// ToJSON encodes the tree rooted at n back into a FHIR resource document.
func (n *Node) ToJSON() ([]byte, error) {
	v := encodeNode(n)
	out, err := json.Marshal(v)
	if err != nil {
		return nil, &ferrors.InvalidInputError{Detail: "failed to encode resource tree", Cause: err}
	}
	return out, nil
}

func encodeNode(n *Node) any {
	if len(n.Children) == 0 {
		return n.Value
	}

	obj := map[string]any{}
	order := []string{}
	seen := map[string]bool{}
	repeatedNames := map[string]bool{}

	for _, c := range n.Children {
		if !seen[c.Name] {
			seen[c.Name] = true
			order = append(order, c.Name)
		}
		if c.Repeated {
			repeatedNames[c.Name] = true
		}
	}

	for _, name := range order {
		group := n.ChildrenNamed(name)
		if repeatedNames[name] {
			arr := make([]any, 0, len(group))
			for _, c := range group {
				arr = append(arr, encodeNode(c))
			}
			obj[name] = arr
			continue
		}
		obj[name] = encodeNode(group[0])
	}
	return obj
}

// ResourceTypeOf returns the root's InstanceType, i.e. the FHIR resource
// class name, or an error if n is not a resource root.
func ResourceTypeOf(n *Node) (string, error) {
	if n.Parent != nil {
		return "", fmt.Errorf("node %q is not a resource root", n.Path())
	}
	return n.InstanceType, nil
}
