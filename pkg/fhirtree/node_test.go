package fhirtree

import "testing"

func TestAddChildWiresParent(t *testing.T) {
	root := NewNode("Patient", "")
	child := NewNode("HumanName", "name")
	root.AddChild(child)

	if child.Parent != root {
		t.Fatal("expected child.Parent to be root")
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
}

func TestResourceID(t *testing.T) {
	root := NewNode("Patient", "")
	id := NewNode("string", "id")
	id.Value = "abc-123"
	root.AddChild(id)

	name := NewNode("HumanName", "name")
	family := NewNode("string", "family")
	family.Value = "Doe"
	name.AddChild(family)
	root.AddChild(name)

	if got := family.ResourceID(); got != "abc-123" {
		t.Errorf("expected resource id abc-123, got %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	n := NewNode("string", "birthDate")
	if !n.IsEmpty() {
		t.Error("expected fresh node to be empty")
	}
	n.Value = "1980-01-01"
	if n.IsEmpty() {
		t.Error("expected node with value to be non-empty")
	}
}

func TestPathWithRepeatedFields(t *testing.T) {
	root := NewNode("Patient", "")
	name1 := NewNode("HumanName", "name")
	name2 := NewNode("HumanName", "name")
	root.AddChild(name1)
	root.AddChild(name2)

	family := NewNode("string", "family")
	family.Value = "Smith"
	name2.AddChild(family)

	if got, want := family.Path(), "name[1].family"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got, want := name1.Path(), "name[0]"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestClear(t *testing.T) {
	n := NewNode("string", "family")
	n.Value = "Doe"
	n.AddChild(NewNode("string", "nested"))
	n.Clear()
	if !n.IsEmpty() {
		t.Error("expected node to be empty after Clear")
	}
}

func TestWalkVisitsEveryDescendant(t *testing.T) {
	root := NewNode("Patient", "")
	a := NewNode("HumanName", "name")
	b := NewNode("string", "family")
	a.AddChild(b)
	root.AddChild(a)

	var visited []string
	Walk(root, func(n *Node) { visited = append(visited, n.InstanceType) })

	if len(visited) != 3 {
		t.Fatalf("expected 3 visited nodes, got %d: %v", len(visited), visited)
	}
}

func TestRemoveChild(t *testing.T) {
	root := NewNode("Patient", "")
	a := NewNode("string", "a")
	b := NewNode("string", "b")
	root.AddChild(a)
	root.AddChild(b)

	root.RemoveChild(a)
	if len(root.Children) != 1 || root.Children[0] != b {
		t.Fatalf("expected only b to remain, got %+v", root.Children)
	}
}
