package processors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// CryptoHashProcessor applies HMAC-SHA-256 keyed hashing, preserving the
// "ResourceType/" prefix of Reference-shaped values so references to the
// same id under the same key stay joinable across documents.
type CryptoHashProcessor struct {
	Store *keystore.Store
}

func (p *CryptoHashProcessor) Method() string { return "cryptohash" }

func (p *CryptoHashProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}
	s, ok := n.Value.(string)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "cryptohash target has no string value")}
	}

	key := ""
	if p.Store != nil {
		key = p.Store.CryptoHashKey()
	}
	if key == "" {
		return &Result{Err: &ferrors.SecurityError{Detail: "cryptohash key is required but empty"}}
	}

	if prefix, id, ok := splitReference(s); ok {
		n.Value = prefix + "/" + hmacHex(key, id)
	} else {
		n.Value = hmacHex(key, s)
	}

	return mutatedRecord(n, p.Method(), nil)
}

func hmacHex(key, value string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// splitReference recognizes a "ResourceType/id" reference literal, e.g.
// "Patient/12345"; it requires a single slash and a PascalCase-leading
// prefix so ordinary strings containing a slash are left alone.
func splitReference(s string) (prefix, id string, ok bool) {
	idx := strings.Index(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", false
	}
	if strings.Count(s, "/") != 1 {
		return "", "", false
	}
	prefix = s[:idx]
	if prefix[0] < 'A' || prefix[0] > 'Z' {
		return "", "", false
	}
	return prefix, s[idx+1:], true
}
