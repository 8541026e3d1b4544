package processors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// DateShiftProcessor applies a deterministic per-subject shift in
// [-50, 50] excluding 0, derived by keyed hash unless a fixed override is
// configured. The same (key, prefix, subject) always yields the same
// offset across runs.
type DateShiftProcessor struct {
	Store *keystore.Store
}

func (p *DateShiftProcessor) Method() string { return "dateshift" }

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01", "2006"}

func (p *DateShiftProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}
	switch n.InstanceType {
	case "date", "dateTime", "instant":
	default:
		return &Result{Err: processingErr(n, p.Method(), "dateshift only applies to date, dateTime, or instant nodes")}
	}

	s, ok := n.Value.(string)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "dateshift target has no string value")}
	}

	var parsed time.Time
	var layout string
	var err error
	for _, l := range dateLayouts {
		parsed, err = time.Parse(l, s)
		if err == nil {
			layout = l
			break
		}
	}
	if err != nil {
		return &Result{Err: processingErr(n, p.Method(), "unparseable date value "+s)}
	}

	offset, cause := p.offsetDays(n, pctx)
	if cause != nil {
		return &Result{Err: cause}
	}

	shifted := parsed.AddDate(0, 0, offset)
	if layout == "2006-01" || layout == "2006" {
		n.Value = shifted.Format(layout)
	} else if layout == "2006-01-02" {
		n.Value = shifted.Format("2006-01-02")
	} else {
		n.Value = shifted.Format(layout)
	}

	return mutatedRecord(n, p.Method(), map[string]any{"offsetDays": offset})
}

func (p *DateShiftProcessor) offsetDays(n *fhirtree.Node, pctx *Context) (int, error) {
	if p.Store != nil && p.Store.DateShiftFixedOffsetDays != nil {
		return *p.Store.DateShiftFixedOffsetDays, nil
	}

	var subjectID string
	scope := keystore.ScopeResource
	if p.Store != nil {
		scope = p.Store.DateShiftScope
	}
	switch scope {
	case keystore.ScopeFile:
		subjectID = pctx.FileName
	case keystore.ScopeFolder:
		subjectID = pctx.FolderName
	default:
		subjectID = n.ResourceID()
	}

	key := ""
	prefix := ""
	if p.Store != nil {
		key = p.Store.DateShiftKey()
		prefix = p.Store.DateShiftKeyPrefix()
	}
	if key == "" {
		return 0, &ferrors.SecurityError{Detail: "dateshift key is required but empty"}
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(prefix + subjectID))
	sum := mac.Sum(nil)

	raw := binary.BigEndian.Uint64(sum[:8])
	offset := int(raw%101) - 50 // uniform over [-50, 50]
	if offset == 0 {
		offset = 1
	}
	return offset, nil
}
