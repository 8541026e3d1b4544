// Package equivclass implements the equivalence-class builder: given a
// corpus of raw FHIR documents and a list of quasi-identifier path
// expressions, it extracts each document's quasi-identifier tuple and groups
// documents sharing an identical tuple into the internal/validators.Class
// shape the k-Anonymity Validator and Re-identification Risk Assessor
// consume.
package equivclass

import (
	"sort"
	"strconv"

	"github.com/savegress/fhirguard/internal/pathmatch"
	"github.com/savegress/fhirguard/internal/validators"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// redactedSentinel marks a quasi-identifier value that could not be
// extracted from a document.
const redactedSentinel = "[REDACTED]"

// Document is one corpus entry: its raw JSON bytes plus an opaque handle the
// caller can use to trace a class member back to its source (a file name, a
// database id, or the raw bytes themselves if nothing richer is available).
type Document struct {
	Raw    []byte
	Handle any
}

// BuildResult is the builder's output: the grouped equivalence classes plus
// a count of documents that failed to parse and were skipped.
type BuildResult struct {
	Classes        []validators.Class
	SkippedCount   int
	SkippedReasons []string
}

// Builder extracts quasi-identifier tuples using a fixed set of compiled
// path expressions and groups documents by their canonical signature.
type Builder struct {
	paths     []*pathmatch.Rule
	leafNames []string
}

// NewBuilder compiles the given quasi-identifier path expressions once, so
// Build can be called repeatedly over different document batches without
// recompiling.
func NewBuilder(quasiIdentifierPaths []string) (*Builder, error) {
	rules := make([]*pathmatch.Rule, 0, len(quasiIdentifierPaths))
	leaves := make([]string, 0, len(quasiIdentifierPaths))
	for _, p := range quasiIdentifierPaths {
		r, err := pathmatch.Compile(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
		leaves = append(leaves, r.LeafName())
	}
	return &Builder{paths: rules, leafNames: leaves}, nil
}

// Build extracts a quasi-identifier tuple from every document and groups
// them by canonical signature. Documents that fail to parse are skipped and
// counted rather than aborting the batch.
func (b *Builder) Build(docs []Document) *BuildResult {
	result := &BuildResult{}
	groups := map[string]*validators.Class{}
	var order []string

	for _, doc := range docs {
		tuple, err := b.extractTuple(doc.Raw)
		if err != nil {
			result.SkippedCount++
			result.SkippedReasons = append(result.SkippedReasons, err.Error())
			continue
		}

		sig := signatureOf(tuple)
		cls, ok := groups[sig]
		if !ok {
			cls = &validators.Class{Signature: sig}
			groups[sig] = cls
			order = append(order, sig)
		}
		handle := doc.Handle
		if handle == nil {
			handle = doc.Raw
		}
		cls.Records = append(cls.Records, handle)
	}

	for _, sig := range order {
		result.Classes = append(result.Classes, *groups[sig])
	}
	return result
}

// extractTuple evaluates every compiled path against doc's tree, keyed on
// each path's simplified leaf name. A path that fails to match, or whose
// match yields an empty/compound node, contributes the [REDACTED] sentinel
// rather than failing the whole document.
func (b *Builder) extractTuple(raw []byte) (map[string]string, error) {
	root, err := fhirtree.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	idx := pathmatch.BuildIndexes(root)

	tuple := make(map[string]string, len(b.paths))
	for i, rule := range b.paths {
		leaf := b.leafNames[i]
		matched, err := rule.Match(root, idx)
		if err != nil || len(matched) == 0 || matched[0].IsEmpty() {
			tuple[leaf] = redactedSentinel
			continue
		}
		tuple[leaf] = scalarString(matched[0].Value)
	}
	return tuple, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return redactedSentinel
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return redactedSentinel
	}
}

// signatureOf computes the canonical equivalence-class key: quasi-identifier
// keys sorted lexicographically, joined as key:value pairs with "|".
func signatureOf(tuple map[string]string) string {
	keys := make([]string, 0, len(tuple))
	for k := range tuple {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sig := ""
	for i, k := range keys {
		if i > 0 {
			sig += "|"
		}
		sig += k + ":" + tuple[k]
	}
	return sig
}
