package processors

import (
	"testing"

	"github.com/savegress/fhirguard/pkg/fhirtree"
)

func TestKeepMarksSubtreeVisited(t *testing.T) {
	root := fhirtree.NewNode("Patient", "")
	name := fhirtree.NewNode("HumanName", "name")
	family := fhirtree.NewNode("string", "family")
	family.Value = "Doe"
	name.AddChild(family)
	root.AddChild(name)

	pctx := NewContext(nil, nil, nil)
	keep := &KeepProcessor{}
	res := keep.Process(name, pctx, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !pctx.IsVisited(name) || !pctx.IsVisited(family) {
		t.Fatal("expected keep to mark node and descendants visited")
	}
}
