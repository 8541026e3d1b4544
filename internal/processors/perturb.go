package processors

import (
	"math"

	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// PerturbProcessor adds utility-preserving numeric
// noise, distinct from DifferentialPrivacy's budget-gated noise.
type PerturbProcessor struct {
	RNG *securerand.Source
}

func (p *PerturbProcessor) Method() string { return "perturb" }

func (p *PerturbProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	span, ok := numericValue(settings["span"])
	if !ok || span <= 0 {
		return &Result{Err: processingErr(n, p.Method(), "settings.span must be a positive number")}
	}
	rangeType, _ := settings["rangeType"].(string)
	if rangeType == "" {
		rangeType = "fixed"
	}
	roundTo := 0
	if r, ok := numericValue(settings["roundTo"]); ok {
		roundTo = int(r)
	}

	value, ok := numericValue(n.Value)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "perturb target is not numeric")}
	}
	_, wasInt := n.Value.(int)

	half := span / 2
	if rangeType == "proportional" {
		half = span * value / 2
	}

	u, err := p.RNG.Uniform01()
	if err != nil {
		return &Result{Err: processingErr(n, p.Method(), err.Error())}
	}
	noise := (u*2 - 1) * half

	result := roundTo4(value+noise, roundTo)
	if wasInt {
		n.Value = int(math.Round(result))
	} else {
		n.Value = result
	}

	return mutatedRecord(n, p.Method(), map[string]any{"noise": noise})
}

func roundTo4(v float64, places int) float64 {
	if places <= 0 {
		return math.Round(v)
	}
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
