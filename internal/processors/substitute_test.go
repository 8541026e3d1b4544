package processors

import (
	"testing"

	"github.com/savegress/fhirguard/pkg/fhirtree"
)

func TestSubstituteReplacesScalarValue(t *testing.T) {
	n := fhirtree.NewNode("string", "family")
	n.Value = "Doe"

	proc := &SubstituteProcessor{}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{"replaceWith": "REDACTED"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if n.Value != "REDACTED" {
		t.Fatalf("expected REDACTED, got %v", n.Value)
	}
}

func TestSubstituteRequiresReplaceWith(t *testing.T) {
	n := fhirtree.NewNode("string", "family")
	n.Value = "Doe"

	proc := &SubstituteProcessor{}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{})
	if res.Err == nil {
		t.Fatal("expected error when replaceWith is missing")
	}
}

func TestSubstituteCompoundBuildsChildren(t *testing.T) {
	n := fhirtree.NewNode("Address", "address")
	line := fhirtree.NewNode("string", "line")
	line.Value = "1 Main St"
	n.AddChild(line)

	proc := &SubstituteProcessor{}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{
		"replaceWith": map[string]any{"city": "Anytown"},
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	cities := n.ChildrenNamed("city")
	if len(cities) != 1 || cities[0].Value != "Anytown" {
		t.Fatalf("expected city child Anytown, got %+v", cities)
	}
}
