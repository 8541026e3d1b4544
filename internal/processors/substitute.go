package processors

import "github.com/savegress/fhirguard/pkg/fhirtree"

// SubstituteProcessor replaces the node's value
// with settings.replaceWith. For a compound target the literal must itself
// be a map conforming to the target's schema shape.
type SubstituteProcessor struct{}

func (p *SubstituteProcessor) Method() string { return "substitute" }

func (p *SubstituteProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	replacement, ok := settings["replaceWith"]
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "settings.replaceWith is required")}
	}

	switch v := replacement.(type) {
	case map[string]any:
		n.Children = nil
		n.Value = nil
		for key, val := range v {
			child := fhirtree.NewNode(typeOfLiteral(val), key)
			child.Value = val
			n.AddChild(child)
		}
	default:
		n.Children = nil
		n.Value = v
	}

	return mutatedRecord(n, p.Method(), nil)
}

func typeOfLiteral(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int:
		return "decimal"
	default:
		return "string"
	}
}
