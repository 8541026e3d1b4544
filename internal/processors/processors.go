// Package processors implements the anonymization methods: one handler per
// method tag, dispatched uniformly over any matched node. Handlers mutate
// only their target node's subtree and report exactly one record per
// top-level node touched.
package processors

import (
	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/internal/securerand"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// Outcome tags what a processor did to its target node.
type Outcome string

const (
	OutcomeMutated Outcome = "mutated"
	OutcomeNoOp    Outcome = "no_op"
)

// Record is one process record: one entry per node touched.
type Record struct {
	ResourceID     string
	Path           string
	Method         string
	Outcome        Outcome
	PrivacyMetrics map[string]any
}

// Result is a processor's per-call outcome: either a Record or an error
// (a ProcessingError, or a Security, BudgetExhausted, or Cryptographic
// error), never both.
type Result struct {
	Record *Record
	Err    error
}

// Context is the Process Context threaded through every processor call: the
// Rule Engine's per-resource state plus its shared collaborators.
type Context struct {
	Store  *keystore.Store
	RNG    *securerand.Source
	Budget *budget.Accountant

	// Visited tracks nodes (and their descendants) a Keep rule has already
	// protected, so later rules skip them. The Rule Engine owns this set;
	// processors never write to it directly except Keep.
	Visited map[*fhirtree.Node]bool

	// FileName/FolderName feed DateShift's subject-id derivation when
	// DateShiftScope is File or Folder.
	FileName   string
	FolderName string
}

// NewContext returns an empty per-resource Process Context.
func NewContext(store *keystore.Store, rng *securerand.Source, acct *budget.Accountant) *Context {
	return &Context{
		Store:   store,
		RNG:     rng,
		Budget:  acct,
		Visited: make(map[*fhirtree.Node]bool),
	}
}

// MarkVisited marks n and every descendant as visited.
func (c *Context) MarkVisited(n *fhirtree.Node) {
	fhirtree.Walk(n, func(d *fhirtree.Node) { c.Visited[d] = true })
}

// IsVisited reports whether n was protected by an earlier Keep rule.
func (c *Context) IsVisited(n *fhirtree.Node) bool { return c.Visited[n] }

// Processor is the uniform per-method handler: it mutates n in place and
// reports what it did.
type Processor interface {
	Method() string
	Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result
}

// noOpRecord builds the short-circuit record for a matched node that
// carries neither a value nor children.
func noOpRecord(n *fhirtree.Node, method string) *Result {
	return &Result{Record: &Record{
		ResourceID: n.ResourceID(),
		Path:       n.Path(),
		Method:     method,
		Outcome:    OutcomeNoOp,
	}}
}

// processingErr builds the *ferrors.ProcessingError a processor returns on
// an argument or runtime failure local to one node; the Rule Engine
// aggregates it rather than aborting unless processingErrors=Raise.
func processingErr(n *fhirtree.Node, method, detail string) error {
	return &ferrors.ProcessingError{
		ResourceID: n.ResourceID(),
		Path:       n.Path(),
		Method:     method,
		Detail:     detail,
	}
}

func mutatedRecord(n *fhirtree.Node, method string, metrics map[string]any) *Result {
	return &Result{Record: &Record{
		ResourceID:     n.ResourceID(),
		Path:           n.Path(),
		Method:         method,
		Outcome:        OutcomeMutated,
		PrivacyMetrics: metrics,
	}}
}

// Registry maps a configuration method tag to its Processor.
type Registry struct {
	byMethod map[string]Processor
}

// NewRegistry builds the Registry every fhirguard engine instance uses,
// wiring every built-in processor against the given collaborators.
func NewRegistry(store *keystore.Store, rng *securerand.Source, acct *budget.Accountant) *Registry {
	procs := []Processor{
		&KeepProcessor{},
		&RedactProcessor{Store: store},
		&SubstituteProcessor{},
		&GeneralizeProcessor{},
		&PerturbProcessor{RNG: rng},
		&DateShiftProcessor{Store: store},
		&CryptoHashProcessor{Store: store},
		&EncryptProcessor{Store: store},
		&KAnonymityProcessor{},
		&DifferentialPrivacyProcessor{RNG: rng, Budget: acct},
		&RedactTextProcessor{},
	}
	r := &Registry{byMethod: make(map[string]Processor, len(procs))}
	for _, p := range procs {
		r.byMethod[p.Method()] = p
	}
	return r
}

// Lookup returns the processor registered for method, or ok=false.
func (r *Registry) Lookup(method string) (Processor, bool) {
	p, ok := r.byMethod[method]
	return p, ok
}

// Register installs a custom processor under its method tag, replacing any
// built-in registered for the same tag.
func (r *Registry) Register(p Processor) {
	r.byMethod[p.Method()] = p
}
