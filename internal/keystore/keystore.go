// Package keystore holds the secret keys and tunables a fhirguard engine is
// configured with. It is the one place the engine checks keys for the
// placeholder/weak values a misconfigured deployment would otherwise ship
// to production.
package keystore

import (
	"strings"

	"github.com/savegress/fhirguard/pkg/ferrors"
)

// placeholderTokens is the fixed set of upper-cased substrings that mark a
// key as a copy-pasted placeholder rather than a real secret.
var placeholderTokens = []string{
	"$HMAC_KEY", "YOUR_KEY_HERE", "YOUR_SECURE_KEY", "YOUR_ENCRYPTION_KEY",
	"PLACEHOLDER", "CHANGE_ME", "CHANGEME", "REPLACE_ME", "EXAMPLE_KEY",
	"TEST_KEY", "SAMPLE_KEY", "INSERT_KEY_HERE", "<YOUR_KEY>", "[YOUR_KEY]",
	"{{YOUR_KEY}}", "TODO", "FIXME",
}

// exactBannedKeys are keys that are outright banned regardless of
// placeholder substrings, compared case-insensitively.
var exactBannedKeys = []string{"password", "secret", "key", "12345678"}

// A used key shorter than minRecommendedLen adds a notice to the Store's
// Warnings (worded differently below minWarnLen); neither length is an error.
const (
	minWarnLen        = 16
	minRecommendedLen = 32
)

// Feature identifies which key a validation call is checking, purely for
// error messages and the "empty key permitted iff feature unused" rule.
type Feature string

const (
	FeatureDateShift Feature = "date-shift"
	FeatureCryptoHash Feature = "crypto-hash"
	FeatureEncryption Feature = "encryption"
)

// Store holds the three named keys plus the per-feature tunables. It is
// read-only after Load and safe to share across goroutines.
type Store struct {
	dateShiftKey   string
	cryptoHashKey  string
	encryptKey     string
	dateShiftKeyPrefix string

	EnablePartialAgesForRedact     bool
	EnablePartialDatesForRedact    bool
	EnablePartialZipCodesForRedact bool
	RestrictedZipPrefixes          map[string]bool

	DateShiftScope             DateShiftScope
	DateShiftFixedOffsetDays   *int

	warnings []string
}

// DateShiftScope is the granularity at which a DateShift offset is held
// constant.
type DateShiftScope string

const (
	ScopeResource DateShiftScope = "Resource"
	ScopeFile     DateShiftScope = "File"
	ScopeFolder   DateShiftScope = "Folder"
)

// Params is the raw input to Load, mirroring the "parameters" object of
// the rule configuration document.
type Params struct {
	DateShiftKey                   string
	DateShiftKeyPrefix             string
	DateShiftScope                 DateShiftScope
	DateShiftFixedOffsetDays       *int
	CryptoHashKey                  string
	EncryptKey                     string
	EnablePartialAgesForRedact     bool
	EnablePartialDatesForRedact    bool
	EnablePartialZipCodesForRedact bool
	RestrictedZipCodeTabulationAreas []string

	// UsesDateShift/UsesCryptoHash/UsesEncryption tell Load whether an empty
	// key for that feature is permitted: an empty key is fine iff the
	// corresponding feature is unused.
	UsesDateShift   bool
	UsesCryptoHash  bool
	UsesEncryption  bool
}

// Load validates and constructs a Store from Params. It returns a
// *ferrors.SecurityError for any placeholder, banned, or repeated-character
// key, or an empty key whose feature is used; key length is not checked
// here (the encrypt processor rejects a wrong-length key). That error must propagate to the caller unmasked and unwrapped.
func Load(p Params) (*Store, error) {
	if err := validateKey(p.DateShiftKey, FeatureDateShift, p.UsesDateShift); err != nil {
		return nil, err
	}
	if err := validateKey(p.CryptoHashKey, FeatureCryptoHash, p.UsesCryptoHash); err != nil {
		return nil, err
	}
	if err := validateKey(p.EncryptKey, FeatureEncryption, p.UsesEncryption); err != nil {
		return nil, err
	}

	scope := p.DateShiftScope
	if scope == "" {
		scope = ScopeResource
	}

	restricted := make(map[string]bool, len(p.RestrictedZipCodeTabulationAreas))
	for _, z := range p.RestrictedZipCodeTabulationAreas {
		restricted[z] = true
	}

	s := &Store{
		dateShiftKey:                   p.DateShiftKey,
		dateShiftKeyPrefix:             p.DateShiftKeyPrefix,
		cryptoHashKey:                  p.CryptoHashKey,
		encryptKey:                     p.EncryptKey,
		EnablePartialAgesForRedact:     p.EnablePartialAgesForRedact,
		EnablePartialDatesForRedact:    p.EnablePartialDatesForRedact,
		EnablePartialZipCodesForRedact: p.EnablePartialZipCodesForRedact,
		RestrictedZipPrefixes:          restricted,
		DateShiftScope:                 scope,
		DateShiftFixedOffsetDays:       p.DateShiftFixedOffsetDays,
	}

	collectLengthWarning(s, "date-shift", p.DateShiftKey, p.UsesDateShift)
	collectLengthWarning(s, "crypto-hash", p.CryptoHashKey, p.UsesCryptoHash)
	collectLengthWarning(s, "encryption", p.EncryptKey, p.UsesEncryption)

	return s, nil
}

func collectLengthWarning(s *Store, label, key string, used bool) {
	if !used || key == "" {
		return
	}
	if len(key) < minWarnLen {
		s.warnings = append(s.warnings, label+" key is shorter than the recommended 16 characters")
	} else if len(key) < minRecommendedLen {
		s.warnings = append(s.warnings, label+" key is shorter than the recommended 32 characters")
	}
}

// Warnings returns non-fatal validation notices accumulated during Load
// (short keys). Callers typically log these once at startup.
func (s *Store) Warnings() []string { return s.warnings }

func validateKey(key string, feature Feature, used bool) error {
	if key == "" {
		if used {
			return &ferrors.SecurityError{Detail: string(feature) + " key is required but empty"}
		}
		return nil
	}

	upper := strings.ToUpper(strings.TrimSpace(key))
	for _, token := range placeholderTokens {
		if strings.Contains(upper, token) {
			return &ferrors.SecurityError{Detail: string(feature) + " key contains placeholder token " + token}
		}
	}

	lower := strings.ToLower(key)
	for _, banned := range exactBannedKeys {
		if lower == banned {
			return &ferrors.SecurityError{Detail: string(feature) + " key is a well-known weak value"}
		}
	}

	if isSingleRepeatedChar(key) {
		return &ferrors.SecurityError{Detail: string(feature) + " key is a single repeated character"}
	}

	return nil
}

func isSingleRepeatedChar(key string) bool {
	if len(key) == 0 {
		return false
	}
	first := key[0]
	for i := 1; i < len(key); i++ {
		if key[i] != first {
			return false
		}
	}
	return true
}

// DateShiftKey returns the validated date-shift key.
func (s *Store) DateShiftKey() string { return s.dateShiftKey }

// DateShiftKeyPrefix returns the configured key prefix mixed into the
// keyed-hash input alongside the subject id.
func (s *Store) DateShiftKeyPrefix() string { return s.dateShiftKeyPrefix }

// CryptoHashKey returns the validated crypto-hash key.
func (s *Store) CryptoHashKey() string { return s.cryptoHashKey }

// EncryptKey returns the validated encryption key.
func (s *Store) EncryptKey() string { return s.encryptKey }
