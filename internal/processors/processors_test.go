package processors

import (
	"testing"

	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/internal/securerand"
)

func TestNewRegistryRegistersAllBuiltinMethods(t *testing.T) {
	store := mustStore(t, keystore.Params{})
	reg := NewRegistry(store, securerand.New(), budget.New())

	for _, method := range []string{
		"keep", "redact", "substitute", "generalize", "perturb", "dateshift",
		"cryptohash", "encrypt", "kanonymity", "differentialprivacy", "redacttext",
	} {
		if _, ok := reg.Lookup(method); !ok {
			t.Errorf("expected method %q to be registered", method)
		}
	}
}

func TestRegistryRegisterOverridesMethod(t *testing.T) {
	store := mustStore(t, keystore.Params{})
	reg := NewRegistry(store, securerand.New(), budget.New())
	custom := &RedactProcessor{}
	reg.Register(custom)

	got, ok := reg.Lookup("redact")
	if !ok || got != custom {
		t.Fatal("expected redact to resolve to the overriding processor")
	}
}
