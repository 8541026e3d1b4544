package processors

import (
	"sort"
	"strings"

	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// KAnonymityProcessor marks a node with an
// equivalence-class id computed from settings.quasiIdentifiers without
// mutating the node's value. Grouping and suppression are the validator's
// job (internal/validators).
type KAnonymityProcessor struct{}

func (p *KAnonymityProcessor) Method() string { return "kanonymity" }

func (p *KAnonymityProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}

	tuple := extractQuasiIdentifierTuple(n, settings)
	classID := equivalenceClassSignature(tuple)

	metrics := map[string]any{
		"equivalenceClassId": classID,
		"quasiIdentifiers":   tuple,
	}
	return &Result{Record: &Record{
		ResourceID:     n.ResourceID(),
		Path:           n.Path(),
		Method:         p.Method(),
		Outcome:        OutcomeNoOp,
		PrivacyMetrics: metrics,
	}}
}

// extractQuasiIdentifierTuple reads settings.quasiIdentifiers (a list of
// sibling field names) off n's nearest compound ancestor, the shape a
// marked node's context carries them in.
func extractQuasiIdentifierTuple(n *fhirtree.Node, settings map[string]any) map[string]string {
	fields, _ := settings["quasiIdentifiers"].([]any)
	container := n
	if n.Parent != nil {
		container = n.Parent
	}

	tuple := make(map[string]string, len(fields))
	for _, f := range fields {
		name, ok := f.(string)
		if !ok {
			continue
		}
		children := container.ChildrenNamed(name)
		if len(children) == 0 {
			tuple[name] = "[REDACTED]"
			continue
		}
		tuple[name] = scalarString(children[0].Value)
	}
	return tuple
}

func scalarString(v any) string {
	if v == nil {
		return "[REDACTED]"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// equivalenceClassSignature builds the canonical "key:value|..." identity
// key of an equivalence class.
func equivalenceClassSignature(tuple map[string]string) string {
	keys := make([]string, 0, len(tuple))
	for k := range tuple {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+tuple[k])
	}
	return strings.Join(parts, "|")
}
