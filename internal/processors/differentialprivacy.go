package processors

import (
	"math"

	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// DifferentialPrivacyProcessor adds budget-gated
// numeric noise via the Secure RNG and the Privacy-Budget Accountant.
type DifferentialPrivacyProcessor struct {
	RNG    *securerand.Source
	Budget *budget.Accountant
}

func (p *DifferentialPrivacyProcessor) Method() string { return "differentialprivacy" }

func (p *DifferentialPrivacyProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	epsilon, ok := numericValue(settings["epsilon"])
	if !ok || epsilon <= 0 {
		return &Result{Err: processingErr(n, p.Method(), "settings.epsilon must be a positive number")}
	}
	sensitivity, ok := numericValue(settings["sensitivity"])
	if !ok || sensitivity <= 0 {
		return &Result{Err: processingErr(n, p.Method(), "settings.sensitivity must be a positive number")}
	}
	mechanism, _ := settings["mechanism"].(string)
	if mechanism == "" {
		mechanism = "laplace"
	}
	budgetContext, _ := settings["budgetContext"].(string)
	if budgetContext == "" {
		return &Result{Err: processingErr(n, p.Method(), "settings.budgetContext is required")}
	}

	value, ok := numericValue(n.Value)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "differentialprivacy target is not numeric")}
	}
	_, wasInt := n.Value.(int)

	// Argument validation must finish before any budget is consumed.
	var sigma float64
	if mechanism == "gaussian" {
		delta, hasDelta := numericValue(settings["delta"])
		if !hasDelta || delta <= 0 || delta >= 1 {
			return &Result{Err: processingErr(n, p.Method(), "gaussian mechanism requires settings.delta in (0,1)")}
		}
		sigma = sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
	}

	if err := p.Budget.Consume(budgetContext, epsilon); err != nil {
		return &Result{Err: err}
	}

	var noise float64
	var noiseErr error
	warning := ""

	switch mechanism {
	case "gaussian":
		noise, noiseErr = p.RNG.Gaussian(sigma)
	case "exponential":
		warning = "exponential mechanism is not natively implemented; falling back to laplace"
		noise, noiseErr = p.RNG.Laplace(sensitivity / epsilon)
	default: // laplace
		noise, noiseErr = p.RNG.Laplace(sensitivity / epsilon)
	}
	if noiseErr != nil {
		return &Result{Err: processingErr(n, p.Method(), noiseErr.Error())}
	}

	result := value + noise
	if wasInt {
		n.Value = int(math.RoundToEven(result))
	} else {
		n.Value = result
	}

	metrics := map[string]any{
		"epsilonConsumed":  epsilon,
		"mechanism":        mechanism,
		"remainingBudget":  p.Budget.Remaining(budgetContext),
	}
	if warning != "" {
		metrics["warning"] = warning
	}

	rec := &Record{
		ResourceID:     n.ResourceID(),
		Path:           n.Path(),
		Method:         p.Method(),
		Outcome:        OutcomeMutated,
		PrivacyMetrics: metrics,
	}
	return &Result{Record: rec}
}
