package processors

import (
	"fmt"

	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// GeneralizeProcessor evaluates an ordered list of
// {condition, replacement} cases, first match wins. A condition
// (settings.cases[i].condition) is a comparison operator followed by an
// operand, applied to the current node's value, e.g. ">= 90"; it is not a
// path expression. A replacement is a literal value, used as is; it is not
// evaluated as an expression.
type GeneralizeProcessor struct{}

func (p *GeneralizeProcessor) Method() string { return "generalize" }

type generalizeCase struct {
	Condition   string
	Replacement any
}

func (p *GeneralizeProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	cases, err := parseCases(settings)
	if err != nil {
		return &Result{Err: processingErr(n, p.Method(), err.Error())}
	}

	for _, c := range cases {
		matched, err := evalCondition(c.Condition, n.Value)
		if err != nil {
			return &Result{Err: processingErr(n, p.Method(), err.Error())}
		}
		if matched {
			n.Value = c.Replacement
			n.Children = nil
			return mutatedRecord(n, p.Method(), nil)
		}
	}

	otherValues, _ := settings["otherValues"].(string)
	switch otherValues {
	case "redact":
		deleteNode(n)
		return mutatedRecord(n, p.Method(), nil)
	default: // "keep" or unset
		return noOpRecord(n, p.Method())
	}
}

func parseCases(settings map[string]any) ([]generalizeCase, error) {
	raw, ok := settings["cases"].([]any)
	if !ok {
		return nil, fmt.Errorf("settings.cases must be a list")
	}
	out := make([]generalizeCase, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each generalize case must be an object")
		}
		cond, _ := m["condition"].(string)
		out = append(out, generalizeCase{Condition: cond, Replacement: m["replacement"]})
	}
	return out, nil
}

// evalCondition supports the minimal comparison grammar ">= X", "<= X",
// "> X", "< X", "== X", "!= X" against a node's scalar value, comparing
// numerically when X parses as a number; there is no "in" list operator.
func evalCondition(cond string, value any) (bool, error) {
	var op string
	var operand string
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if len(cond) > len(candidate) && cond[:len(candidate)] == candidate {
			op = candidate
			operand = cond[len(candidate):]
			break
		}
	}
	if op == "" {
		return false, fmt.Errorf("unsupported generalize condition %q", cond)
	}
	operand = trimSpaces(operand)

	if numOperand, errNum := parseFloatOrErr(operand); errNum == nil {
		numValue, ok := numericValue(value)
		if !ok {
			return false, nil
		}
		switch op {
		case ">=":
			return numValue >= numOperand, nil
		case "<=":
			return numValue <= numOperand, nil
		case ">":
			return numValue > numOperand, nil
		case "<":
			return numValue < numOperand, nil
		case "==":
			return numValue == numOperand, nil
		case "!=":
			return numValue != numOperand, nil
		}
	}

	strValue := fmt.Sprintf("%v", value)
	switch op {
	case "==":
		return strValue == operand, nil
	case "!=":
		return strValue != operand, nil
	default:
		return false, fmt.Errorf("condition %q is not comparable for non-numeric values", cond)
	}
}

func trimSpaces(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

func parseFloatOrErr(s string) (float64, error) {
	var f float64
	n, err := fmt.Sscanf(s, "%g", &f)
	if err != nil || n != 1 {
		return 0, fmt.Errorf("not numeric")
	}
	return f, nil
}
