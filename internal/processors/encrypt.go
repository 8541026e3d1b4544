package processors

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strconv"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/pkg/ferrors"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// EncryptProcessor applies AES-256-GCM, emitting a single base64 blob of
// nonce||ciphertext||tag. Decryption is out of scope.
type EncryptProcessor struct {
	Store *keystore.Store
}

func (p *EncryptProcessor) Method() string { return "encrypt" }

func (p *EncryptProcessor) Process(n *fhirtree.Node, pctx *Context, settings map[string]any) *Result {
	if n.IsEmpty() {
		return noOpRecord(n, p.Method())
	}
	s, ok := n.Value.(string)
	if !ok {
		return &Result{Err: processingErr(n, p.Method(), "encrypt target has no string value")}
	}

	key := ""
	if p.Store != nil {
		key = p.Store.EncryptKey()
	}
	if len(key) != 32 {
		return &Result{Err: &ferrors.CryptographicError{Detail: "encrypt key must be exactly 32 bytes, got " + strconv.Itoa(len(key))}}
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return &Result{Err: &ferrors.CryptographicError{Detail: "failed to construct AES cipher", Cause: err}}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return &Result{Err: &ferrors.CryptographicError{Detail: "failed to construct GCM mode", Cause: err}}
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return &Result{Err: &ferrors.CryptographicError{Detail: "failed to read nonce", Cause: err}}
	}

	sealed := gcm.Seal(nonce, nonce, []byte(s), nil)
	n.Value = base64.StdEncoding.EncodeToString(sealed)

	return mutatedRecord(n, p.Method(), nil)
}
