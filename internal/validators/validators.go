// Package validators implements the k-anonymity validator and
// re-identification risk assessor: both consume the same input, a set
// of equivalence classes built by internal/equivclass, and report on the
// classes' size distribution rather than mutating anything.
// KAnonymityValidator.Validate and RiskAssessor.Assess each return a report
// value rather than an error.
package validators


// Class is one equivalence class: a group of records sharing an identical
// quasi-identifier signature. Only its size matters to these validators;
// Records is kept so callers can trace a violation back to its members.
type Class struct {
	Signature string
	Records   []any
}

func (c Class) Size() int { return len(c.Records) }

func sizes(classes []Class) []int {
	out := make([]int, len(classes))
	for i, c := range classes {
		out[i] = c.Size()
	}
	return out
}
