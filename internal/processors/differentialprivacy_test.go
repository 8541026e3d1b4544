package processors

import (
	"errors"
	"testing"

	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

func TestDifferentialPrivacySetsMutatedOutcomeAndMetrics(t *testing.T) {
	acct := budget.New()
	if err := acct.SetTotal("dataset-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := fhirtree.NewNode("decimal", "value")
	n.Value = float64(100)

	proc := &DifferentialPrivacyProcessor{RNG: securerand.New(), Budget: acct}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{
		"epsilon":       float64(1),
		"sensitivity":   float64(1),
		"mechanism":     "laplace",
		"budgetContext": "dataset-1",
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Record.Outcome != OutcomeMutated {
		t.Fatalf("expected mutated outcome, got %v", res.Record.Outcome)
	}
	if res.Record.PrivacyMetrics["mechanism"] != "laplace" {
		t.Fatalf("expected mechanism metric, got %+v", res.Record.PrivacyMetrics)
	}
}

func TestDifferentialPrivacyBudgetExhaustionLeavesNodeUnchanged(t *testing.T) {
	acct := budget.New()
	if err := acct.SetTotal("dataset-1", 0.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := fhirtree.NewNode("decimal", "value")
	n.Value = float64(100)

	proc := &DifferentialPrivacyProcessor{RNG: securerand.New(), Budget: acct}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{
		"epsilon":       float64(5),
		"sensitivity":   float64(1),
		"budgetContext": "dataset-1",
	})

	var budgetErr *ferrors.BudgetExhaustedError
	if !errors.As(res.Err, &budgetErr) {
		t.Fatalf("expected BudgetExhaustedError, got %v", res.Err)
	}
	if n.Value != float64(100) {
		t.Fatalf("expected node unchanged after budget exhaustion, got %v", n.Value)
	}
}

func TestDifferentialPrivacyRejectsNonPositiveEpsilon(t *testing.T) {
	acct := budget.New()
	n := fhirtree.NewNode("decimal", "value")
	n.Value = float64(100)

	proc := &DifferentialPrivacyProcessor{RNG: securerand.New(), Budget: acct}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{
		"epsilon":       float64(0),
		"sensitivity":   float64(1),
		"budgetContext": "dataset-1",
	})
	if res.Err == nil {
		t.Fatal("expected error for non-positive epsilon")
	}
}

func TestDifferentialPrivacyGaussianRequiresDelta(t *testing.T) {
	acct := budget.New()
	_ = acct.SetTotal("dataset-1", 10)
	n := fhirtree.NewNode("decimal", "value")
	n.Value = float64(100)

	proc := &DifferentialPrivacyProcessor{RNG: securerand.New(), Budget: acct}
	res := proc.Process(n, NewContext(nil, nil, nil), map[string]any{
		"epsilon":       float64(1),
		"sensitivity":   float64(1),
		"mechanism":     "gaussian",
		"budgetContext": "dataset-1",
	})
	if res.Err == nil {
		t.Fatal("expected error when gaussian mechanism is missing delta")
	}
}
