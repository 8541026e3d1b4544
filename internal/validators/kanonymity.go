package validators

import (
	"sort"

	"github.com/savegress/fhirguard/pkg/ferrors"
)

// Violation names one equivalence class that falls short of the required k.
type Violation struct {
	Signature string
	Size      int
}

// Report is the k-anonymity validator's output.
type Report struct {
	K               int
	ClassCount      int
	MinGroupSize    int
	MaxGroupSize    int
	AvgGroupSize    float64
	MedianGroupSize float64
	Distribution    map[int]int
	Violations      []Violation
	IsValid         bool
}

// KAnonymityValidator checks that every equivalence class in a corpus has at
// least K records.
type KAnonymityValidator struct {
	k int
}

// NewKAnonymityValidator constructs a validator for the given k. k < 2 is
// a configuration error.
func NewKAnonymityValidator(k int) (*KAnonymityValidator, error) {
	if k < 2 {
		return nil, &ferrors.ConfigurationError{Detail: "k-anonymity requires k >= 2"}
	}
	return &KAnonymityValidator{k: k}, nil
}

func (v *KAnonymityValidator) Name() string { return "k-anonymity" }

// Validate builds the size-distribution report over classes. An empty corpus
// yields a zero-valued, vacuously valid report.
func (v *KAnonymityValidator) Validate(classes []Class) *Report {
	r := &Report{K: v.k, ClassCount: len(classes), Distribution: map[int]int{}, IsValid: true}
	if len(classes) == 0 {
		return r
	}

	sz := sizes(classes)
	sort.Ints(sz)

	r.MinGroupSize = sz[0]
	r.MaxGroupSize = sz[len(sz)-1]

	total := 0
	for _, s := range sz {
		total += s
		r.Distribution[s]++
	}
	r.AvgGroupSize = float64(total) / float64(len(sz))
	r.MedianGroupSize = median(sz)

	for _, c := range classes {
		if c.Size() < v.k {
			r.Violations = append(r.Violations, Violation{Signature: c.Signature, Size: c.Size()})
		}
	}
	r.IsValid = len(r.Violations) == 0

	return r
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
