package processors

import (
	"regexp"

	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// RedactTextProcessor applies pattern-based PHI redaction inside free-text
// narrative fields, which fixed field-level rules cannot reach.
type RedactTextProcessor struct{}

func (p *RedactTextProcessor) Method() string { return "redacttext" }

var freeTextPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN REDACTED]"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "[PHONE REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL REDACTED]"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), "[DATE REDACTED]"},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "[DATE REDACTED]"},
	{regexp.MustCompile(`\bMRN[:\s]*\d+\b`), "[MRN REDACTED]"},
	{regexp.MustCompile(`\b\d{1,3}\s*(?:year|yr)s?\s*old\b`), "[AGE REDACTED]"},
}

func (p *RedactTextProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}
	s, ok := n.Value.(string)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "redacttext target has no string value")}
	}

	result := s
	for _, pat := range freeTextPatterns {
		result = pat.pattern.ReplaceAllString(result, pat.replacement)
	}
	n.Value = result

	return mutatedRecord(n, p.Method(), nil)
}
