package processors

import "github.com/savegress/fhirguard/pkg/fhirtree"

// KeepProcessor is the no-op protector. It marks n and its
// whole subtree visited so later rules in the same resource skip it, but it
// never restores mutations an earlier rule already applied.
type KeepProcessor struct{}

func (p *KeepProcessor) Method() string { return "keep" }

func (p *KeepProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	pctx.MarkVisited(n)
	return &Result{Record: &Record{
		ResourceID: n.ResourceID(),
		Path:       n.Path(),
		Method:     p.Method(),
		Outcome:    OutcomeNoOp,
	}}
}
