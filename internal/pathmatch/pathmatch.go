// Package pathmatch compiles fhirPathRules path strings into Rules and
// evaluates them against a resource tree. Each path is compiled once; the
// same tree and path always yield the same matched nodes, in document
// order.
package pathmatch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// Dialect identifies which of the four syntactic path forms a Rule uses.
type Dialect int

const (
	// DialectBare evaluates the expression directly against the resource root.
	DialectBare Dialect = iota
	// DialectResourceType applies only when the root's instance type matches.
	DialectResourceType
	// DialectTypeFilter selects descendants by instance_type before evaluating.
	DialectTypeFilter
	// DialectNameFilter selects descendants by name before evaluating.
	DialectNameFilter
)

// Rule is the compiled form of one fhirPathRules entry's path.
type Rule struct {
	Raw          string
	Dialect      Dialect
	ResourceType string // set for DialectResourceType
	TypeName     string // set for DialectTypeFilter
	FieldName    string // set for DialectNameFilter
	steps        []step
}

type stepKind int

const (
	stepField stepKind = iota
	stepNodesByType
)

type step struct {
	kind     stepKind
	field    string
	index    *int
	typeName string
}

var (
	fieldTokenRE      = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\[(\d+)\])?$`)
	nodesByTypeCallRE = regexp.MustCompile(`^nodesByType\('([^']+)'\)$`)
)

// isPascalCase reports whether s begins with an upper-case ASCII letter,
// the FHIR convention for resource and type names as opposed to field names.
func isPascalCase(s string) bool {
	if s == "" {
		return false
	}
	r := s[0]
	return r >= 'A' && r <= 'Z'
}

// Compile parses a raw fhirPathRules path string into a Rule.
func Compile(path string) (*Rule, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, &ferrors.ConfigurationError{Detail: "rule path must not be empty"}
	}

	if idx := strings.Index(trimmed, "::"); idx >= 0 {
		prefix := trimmed[:idx]
		rest := trimmed[idx+2:]
		if prefix == "" {
			return nil, &ferrors.ConfigurationError{Detail: "rule path " + path + " has an empty :: prefix"}
		}
		steps, err := compileExpr(rest)
		if err != nil {
			return nil, err
		}
		if isPascalCase(prefix) {
			return &Rule{Raw: path, Dialect: DialectTypeFilter, TypeName: prefix, steps: steps}, nil
		}
		return &Rule{Raw: path, Dialect: DialectNameFilter, FieldName: prefix, steps: steps}, nil
	}

	if isPascalCase(trimmed) {
		resourceType := trimmed
		expr := ""
		if dot := strings.Index(trimmed, "."); dot >= 0 {
			resourceType = trimmed[:dot]
			expr = trimmed[dot+1:]
		}
		steps, err := compileExpr(expr)
		if err != nil {
			return nil, err
		}
		return &Rule{Raw: path, Dialect: DialectResourceType, ResourceType: resourceType, steps: steps}, nil
	}

	steps, err := compileExpr(trimmed)
	if err != nil {
		return nil, err
	}
	return &Rule{Raw: path, Dialect: DialectBare, steps: steps}, nil
}

// compileExpr tokenizes a navigation sub-expression on dots not enclosed in
// single quotes, since nodesByType('typeName') carries its argument quoted.
func compileExpr(expr string) ([]step, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "." {
		return nil, nil
	}

	tokens := splitOutsideQuotes(expr, '.')
	steps := make([]step, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, &ferrors.ConfigurationError{Detail: "rule expression " + expr + " has an empty path segment"}
		}
		if m := nodesByTypeCallRE.FindStringSubmatch(tok); m != nil {
			steps = append(steps, step{kind: stepNodesByType, typeName: m[1]})
			continue
		}
		m := fieldTokenRE.FindStringSubmatch(tok)
		if m == nil {
			return nil, &ferrors.ConfigurationError{Detail: "rule expression " + expr + " has an unsupported segment " + tok}
		}
		s := step{kind: stepField, field: m[1]}
		if m[3] != "" {
			n, err := strconv.Atoi(m[3])
			if err != nil {
				return nil, &ferrors.ConfigurationError{Detail: "rule expression " + expr + " has a malformed index"}
			}
			s.index = &n
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == sep && !inQuote {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	parts = append(parts, cur.String())
	return parts
}

// Indexes are the two descendant indexes precomputed once per resource
// before rule evaluation.
type Indexes struct {
	ByType map[string][]*fhirtree.Node
	ByName map[string][]*fhirtree.Node
}

// BuildIndexes walks root in pre-order and buckets every descendant by
// instance type and by name, preserving document order within each bucket.
func BuildIndexes(root *fhirtree.Node) *Indexes {
	idx := &Indexes{
		ByType: make(map[string][]*fhirtree.Node),
		ByName: make(map[string][]*fhirtree.Node),
	}
	fhirtree.Walk(root, func(n *fhirtree.Node) {
		idx.ByType[n.InstanceType] = append(idx.ByType[n.InstanceType], n)
		idx.ByName[n.Name] = append(idx.ByName[n.Name], n)
	})
	return idx
}

// Match evaluates the rule against root using the precomputed indexes,
// returning matched nodes in document order. A ResourceType rule whose
// resource type does not match the root returns no nodes and no error.
func (r *Rule) Match(root *fhirtree.Node, idx *Indexes) ([]*fhirtree.Node, error) {
	switch r.Dialect {
	case DialectResourceType:
		if root.InstanceType != r.ResourceType {
			return nil, nil
		}
		return evalSteps([]*fhirtree.Node{root}, r.steps)

	case DialectTypeFilter:
		return matchFromStarts(idx.ByType[r.TypeName], r.steps)

	case DialectNameFilter:
		return matchFromStarts(idx.ByName[r.FieldName], r.steps)

	default: // DialectBare
		return evalSteps([]*fhirtree.Node{root}, r.steps)
	}
}

// LeafName returns the simplified leaf field name of the rule's path — the
// last dotted navigation segment, or the dialect's selector name if the
// expression has no field steps at all. Used by internal/equivclass to key
// the quasi-identifier tuple it extracts at each path.
func (r *Rule) LeafName() string {
	for i := len(r.steps) - 1; i >= 0; i-- {
		if r.steps[i].kind == stepField {
			return r.steps[i].field
		}
	}
	switch r.Dialect {
	case DialectTypeFilter:
		return r.TypeName
	case DialectNameFilter:
		return r.FieldName
	case DialectResourceType:
		return r.ResourceType
	default:
		return r.Raw
	}
}

func matchFromStarts(starts []*fhirtree.Node, steps []step) ([]*fhirtree.Node, error) {
	var out []*fhirtree.Node
	for _, start := range starts {
		matched, err := evalSteps([]*fhirtree.Node{start}, steps)
		if err != nil {
			return nil, err
		}
		out = append(out, matched...)
	}
	return out, nil
}

func evalSteps(nodes []*fhirtree.Node, steps []step) ([]*fhirtree.Node, error) {
	for _, s := range steps {
		var next []*fhirtree.Node
		for _, n := range nodes {
			switch s.kind {
			case stepField:
				children := n.ChildrenNamed(s.field)
				if s.index != nil {
					if *s.index < len(children) {
						next = append(next, children[*s.index])
					}
					continue
				}
				next = append(next, children...)

			case stepNodesByType:
				var matches []*fhirtree.Node
				fhirtree.Walk(n, func(d *fhirtree.Node) {
					if d != n && d.InstanceType == s.typeName {
						matches = append(matches, d)
					}
				})
				next = append(next, matches...)
			}
		}
		nodes = next
	}
	return nodes, nil
}
