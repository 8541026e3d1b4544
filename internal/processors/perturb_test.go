package processors

import (
	"testing"

	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

func TestPerturbKeepsIntegerType(t *testing.T) {
	n := fhirtree.NewNode("integer", "age")
	n.Value = 40

	proc := &PerturbProcessor{RNG: securerand.New()}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{"span": float64(4), "roundTo": float64(0)})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if _, ok := n.Value.(int); !ok {
		t.Fatalf("expected integer value preserved, got %T", n.Value)
	}
}

func TestPerturbRejectsNonPositiveSpan(t *testing.T) {
	n := fhirtree.NewNode("integer", "age")
	n.Value = 40

	proc := &PerturbProcessor{RNG: securerand.New()}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{"span": float64(0)})
	if res.Err == nil {
		t.Fatal("expected error for zero span")
	}
}

func TestPerturbStaysWithinFixedRange(t *testing.T) {
	proc := &PerturbProcessor{RNG: securerand.New()}
	for i := 0; i < 50; i++ {
		n := fhirtree.NewNode("decimal", "value")
		n.Value = float64(100)
		res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{"span": float64(10), "roundTo": float64(2)})
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		v := n.Value.(float64)
		if v < 95 || v > 105 {
			t.Fatalf("perturbed value %v out of expected range [95,105]", v)
		}
	}
}
