// Package engine drives compiled anonymization rules in configuration
// order over a resource tree, dispatching matched nodes to the processor
// set, aggregating per-node results, and stripping the meta subtree. One
// generic driver serves every resource type; nothing branches on a
// concrete resource struct.
package engine

import (
	"context"

	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/internal/pathmatch"
	"github.com/savegress/fhirguard/internal/processors"
	"github.com/savegress/fhirguard/internal/ruleconfig"
	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// Result is the outcome of one anonymization run: an ordered, append-only
// list of process records plus any aggregated errors.
type Result struct {
	Records                 []*processors.Record
	Errors                  []error
	IsDifferentiallyPrivate bool
	Skipped                 bool
}

// Engine drives one configuration's rules over resource trees. An Engine is
// not safe for concurrent AnonymizeResource calls against different trees
// unless its processors are themselves concurrency-safe; each caller should
// generally own its own Engine.
type Engine struct {
	doc      *ruleconfig.Document
	registry *processors.Registry
	rng      *securerand.Source
	budget   *budget.Accountant

	fileName   string
	folderName string
}

// New constructs an Engine from a parsed configuration document, wiring a
// fresh processor set against the document's validated key store, a secure
// RNG, and a privacy-budget accountant. The document's per-context epsilon
// budgets are seeded into the accountant; contexts the accountant already
// tracks keep their existing totals and consumption.
func New(doc *ruleconfig.Document, acct *budget.Accountant) *Engine {
	acct.AdvancedComposition = acct.AdvancedComposition || doc.DifferentialPrivacy.AdvancedComposition
	for ctx, total := range doc.DifferentialPrivacy.Budgets {
		if acct.Consumed(ctx) == 0 && acct.Remaining(ctx) == 0 {
			acct.SetTotal(ctx, total)
		}
	}
	rng := securerand.New()
	return &Engine{
		doc:      doc,
		registry: processors.NewRegistry(doc.Store, rng, acct),
		rng:      rng,
		budget:   acct,
	}
}

// NewWithStore is an escape hatch for callers that already hold a Store
// instead of a freshly parsed ruleconfig.Document.
func NewWithStore(rules []ruleconfig.Rule, processingErrors ruleconfig.ProcessingErrorsMode, store *keystore.Store, acct *budget.Accountant) *Engine {
	rng := securerand.New()
	return &Engine{
		doc:      &ruleconfig.Document{Rules: rules, ProcessingErrors: processingErrors, Store: store},
		registry: processors.NewRegistry(store, rng, acct),
		rng:      rng,
		budget:   acct,
	}
}

// WithFileContext returns a copy of e whose dateShift subject-id derivation
// uses fileName/folderName when the date-shift scope is File or Folder.
func (e *Engine) WithFileContext(fileName, folderName string) *Engine {
	clone := *e
	clone.fileName = fileName
	clone.folderName = folderName
	return &clone
}

// Registry exposes the engine's Processor Set so a caller may register a
// custom processor before running AnonymizeResource.
func (e *Engine) Registry() *processors.Registry { return e.registry }

// AnonymizeElement runs every rule against a single element node in
// isolation, rather than a whole resource.
func (e *Engine) AnonymizeElement(ctx context.Context, n *fhirtree.Node) (*fhirtree.Node, *Result) {
	idx := pathmatch.BuildIndexes(n)
	res := e.run(ctx, n, idx)
	return n, res
}

// AnonymizeResource runs every rule against a whole resource tree, strips
// the meta subtree unless a keep rule is present, and returns the mutated
// root alongside the aggregated result.
func (e *Engine) AnonymizeResource(ctx context.Context, root *fhirtree.Node) (*fhirtree.Node, *Result) {
	idx := pathmatch.BuildIndexes(root)
	res := e.run(ctx, root, idx)
	if res.Skipped {
		return emptyShellOf(root), res
	}

	if !anyKeepRule(e.doc.Rules) {
		stripMeta(root)
	}
	return root, res
}

func (e *Engine) run(ctx context.Context, root *fhirtree.Node, idx *pathmatch.Indexes) *Result {
	pctx := processors.NewContext(e.doc.Store, e.rng, e.budget)
	pctx.FileName = e.fileName
	pctx.FolderName = e.folderName

	res := &Result{}

	for _, rule := range e.doc.Rules {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}

		matched, err := rule.Compiled.Match(root, idx)
		if err != nil {
			res.Errors = append(res.Errors, err)
			if e.doc.ProcessingErrors == ruleconfig.ProcessingErrorsRaise {
				return res
			}
			continue
		}

		proc, ok := e.registry.Lookup(rule.Method)
		if !ok {
			res.Errors = append(res.Errors, &ferrors.ConfigurationError{Detail: "no processor registered for method " + rule.Method})
			if e.doc.ProcessingErrors == ruleconfig.ProcessingErrorsRaise {
				return res
			}
			continue
		}

		for _, node := range matched {
			if err := ctx.Err(); err != nil {
				res.Errors = append(res.Errors, err)
				return res
			}
			if pctx.IsVisited(node) {
				continue
			}

			result := proc.Process(node, pctx, rule.Settings)
			if result.Err != nil {
				if isShortCircuitError(result.Err) {
					return &Result{Records: res.Records, Errors: append(res.Errors, result.Err)}
				}
				res.Errors = append(res.Errors, result.Err)
				if e.doc.ProcessingErrors == ruleconfig.ProcessingErrorsRaise {
					return res
				}
				if e.doc.ProcessingErrors == ruleconfig.ProcessingErrorsSkip {
					res.Skipped = true
					return res
				}
				continue
			}

			res.Records = append(res.Records, result.Record)
			if rule.Method == "differentialprivacy" {
				res.IsDifferentiallyPrivate = true
			}
		}
	}

	return res
}

// isShortCircuitError reports whether err must propagate verbatim
// regardless of the processingErrors mode: security, budget-exhausted, and
// cryptographic failures are never aggregated.
func isShortCircuitError(err error) bool {
	switch err.(type) {
	case *ferrors.SecurityError, *ferrors.BudgetExhaustedError, *ferrors.CryptographicError:
		return true
	default:
		return false
	}
}

func anyKeepRule(rules []ruleconfig.Rule) bool {
	for _, r := range rules {
		if r.Method == "keep" {
			return true
		}
	}
	return false
}

func stripMeta(root *fhirtree.Node) {
	var metaNodes []*fhirtree.Node
	fhirtree.Walk(root, func(n *fhirtree.Node) {
		if n.Name == "meta" {
			metaNodes = append(metaNodes, n)
		}
	})
	for _, n := range metaNodes {
		n.Clear()
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func emptyShellOf(root *fhirtree.Node) *fhirtree.Node {
	shell := fhirtree.NewNode(root.InstanceType, root.Name)
	for _, c := range root.Children {
		if c.Name == "id" {
			shell.AddChild(c)
		}
	}
	return shell
}
