package processors

import (
	"strconv"
	"time"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// RedactProcessor applies the per-type redact policy: primitives are
// cleared and removed from their parent, dates and ages and postal codes honor the partial
// redaction tunables, compound subtrees are deleted whole.
type RedactProcessor struct {
	Store *keystore.Store
}

func (p *RedactProcessor) Method() string { return "redact" }

func (p *RedactProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	switch n.InstanceType {
	case "date", "dateTime", "instant":
		p.redactDate(n)
	case "age":
		p.redactAge(n)
	case "postalCode":
		p.redactPostalCode(n)
	default:
		if len(n.Children) > 0 {
			deleteNode(n)
		} else {
			clearValue(n)
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
		}
	}

	return mutatedRecord(n, p.Method(), nil)
}

func (p *RedactProcessor) redactDate(n *fhirtree.Node) {
	if p.Store == nil || !p.Store.EnablePartialDatesForRedact {
		deleteNode(n)
		return
	}

	s, ok := n.Value.(string)
	if !ok || len(s) < 4 {
		deleteNode(n)
		return
	}
	age := ageFromDateString(s)
	if age <= 89 {
		n.Value = s[:4]
		return
	}
	deleteNode(n)
}

func (p *RedactProcessor) redactAge(n *fhirtree.Node) {
	if p.Store == nil || !p.Store.EnablePartialAgesForRedact {
		deleteNode(n)
		return
	}
	age, ok := numericValue(n.Value)
	if !ok || age > 89 {
		deleteNode(n)
	}
}

func (p *RedactProcessor) redactPostalCode(n *fhirtree.Node) {
	if p.Store == nil || !p.Store.EnablePartialZipCodesForRedact {
		deleteNode(n)
		return
	}
	s, ok := n.Value.(string)
	if !ok || len(s) < 3 {
		deleteNode(n)
		return
	}
	prefix := s[:3]
	if p.Store.RestrictedZipPrefixes[prefix] {
		n.Value = "00000"
		return
	}
	n.Value = prefix + "00"
}

func ageFromDateString(s string) int {
	layouts := []string{"2006-01-02", "2006-01-02T15:04:05Z07:00", "2006-01", "2006"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return int(time.Since(t).Hours() / 24 / 365.25)
		}
	}
	return 0
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clearValue(n *fhirtree.Node) { n.Value = nil }

// deleteNode clears n's subtree and, when it has a parent, removes it from
// the parent's Children so the field disappears from the encoded document
// rather than surviving as a null.
func deleteNode(n *fhirtree.Node) {
	n.Clear()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
