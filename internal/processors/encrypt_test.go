package processors

import (
	"testing"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

const testEncryptKey = "this-key-is-exactly-32-bytes-yes"

func TestEncryptProducesBase64Blob(t *testing.T) {
	if len(testEncryptKey) != 32 {
		t.Fatalf("test fixture key must be 32 bytes, got %d", len(testEncryptKey))
	}
	store := mustStore(t, keystore.Params{EncryptKey: testEncryptKey, UsesEncryption: true})
	n := fhirtree.NewNode("string", "value")
	n.Value = "sensitive"

	proc := &EncryptProcessor{Store: store}
	res := proc.Process(n, NewContext(nil, nil, nil), nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	s, ok := n.Value.(string)
	if !ok || s == "sensitive" || s == "" {
		t.Fatalf("expected encrypted blob distinct from input, got %v", n.Value)
	}
}

func TestEncryptRejectsWrongKeyLength(t *testing.T) {
	store := mustStore(t, keystore.Params{EncryptKey: "too-short-key", UsesEncryption: true})
	n := fhirtree.NewNode("string", "value")
	n.Value = "sensitive"

	proc := &EncryptProcessor{Store: store}
	res := proc.Process(n, NewContext(nil, nil, nil), nil)
	if res.Err == nil {
		t.Fatal("expected error for non-32-byte key")
	}
}

func TestEncryptProducesDistinctCiphertextsPerCall(t *testing.T) {
	store := mustStore(t, keystore.Params{EncryptKey: testEncryptKey, UsesEncryption: true})
	proc := &EncryptProcessor{Store: store}

	n1 := fhirtree.NewNode("string", "value")
	n1.Value = "sensitive"
	n2 := fhirtree.NewNode("string", "value")
	n2.Value = "sensitive"

	_ = proc.Process(n1, NewContext(nil, nil, nil), nil)
	_ = proc.Process(n2, NewContext(nil, nil, nil), nil)

	if n1.Value == n2.Value {
		t.Fatal("expected distinct ciphertexts due to random nonce")
	}
}
