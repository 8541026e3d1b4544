// Package ruleconfig parses the JSON rule configuration document
// (fhirVersion, fhirPathRules, parameters, processingErrors) into compiled
// Rules ready for the engine, wiring key validation through
// internal/keystore at load time. It is the per-run counterpart of the
// process-wide YAML service configuration in internal/config.
package ruleconfig

import (
	"encoding/json"

	"github.com/savegress/fhirguard/internal/keystore"
	"github.com/savegress/fhirguard/internal/pathmatch"
	"github.com/savegress/fhirguard/pkg/ferrors"
)

// ProcessingErrorsMode is the configuration document's processingErrors
// field: Raise propagates a processor's error immediately; Skip replaces
// the whole resource with an empty shell.
type ProcessingErrorsMode string

const (
	ProcessingErrorsAggregate ProcessingErrorsMode = "" // default: aggregate into the Process Result
	ProcessingErrorsRaise     ProcessingErrorsMode = "Raise"
	ProcessingErrorsSkip      ProcessingErrorsMode = "Skip"
)

// rawParameters mirrors the JSON shape of the document's "parameters" object.
type rawParameters struct {
	DateShiftKey                     string                 `json:"dateShiftKey"`
	DateShiftKeyPrefix               string                 `json:"dateShiftKeyPrefix"`
	DateShiftScope                   string                 `json:"dateShiftScope"`
	DateShiftFixedOffsetInDays       *int                   `json:"dateShiftFixedOffsetInDays,omitempty"`
	CryptoHashKey                    string                 `json:"cryptoHashKey"`
	EncryptKey                       string                 `json:"encryptKey"`
	EnablePartialAgesForRedact       bool                   `json:"enablePartialAgesForRedact"`
	EnablePartialDatesForRedact      bool                   `json:"enablePartialDatesForRedact"`
	EnablePartialZipCodesForRedact   bool                   `json:"enablePartialZipCodesForRedact"`
	RestrictedZipCodeTabulationAreas []string               `json:"restrictedZipCodeTabulationAreas,omitempty"`
	KAnonymitySettings               map[string]any         `json:"kAnonymitySettings,omitempty"`
	DifferentialPrivacySettings      map[string]any         `json:"differentialPrivacySettings,omitempty"`
	CustomSettings                   map[string]any         `json:"customSettings,omitempty"`
}

// DifferentialPrivacySettings carries the per-context epsilon totals the
// budget accountant is seeded with before any rule runs, plus the
// advanced-composition flag (accepted, but falls back to sequential
// composition with a warning).
type DifferentialPrivacySettings struct {
	Budgets             map[string]float64
	AdvancedComposition bool
}

// KAnonymitySettings carries the k given under parameters.kAnonymitySettings.
// Nothing in this module reads it; the validation endpoints take k from each
// request.
type KAnonymitySettings struct {
	K int
}

// Rule is one compiled fhirPathRules entry.
type Rule struct {
	Method   string
	Settings map[string]any
	Compiled *pathmatch.Rule
}

// Document is the fully parsed and validated configuration.
type Document struct {
	FHIRVersion         string
	Rules               []Rule
	ProcessingErrors    ProcessingErrorsMode
	Store               *keystore.Store
	DifferentialPrivacy DifferentialPrivacySettings
	KAnonymity          KAnonymitySettings
}

// Parse decodes and validates a configuration document, returning the
// compiled rules and a loaded, key-validated Store.
func Parse(data []byte) (*Document, error) {
	var generic struct {
		FHIRVersion      string                   `json:"fhirVersion"`
		FHIRPathRules    []map[string]any         `json:"fhirPathRules"`
		Parameters       rawParameters            `json:"parameters"`
		ProcessingErrors ProcessingErrorsMode     `json:"processingErrors"`
	}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, &ferrors.InvalidInputError{Detail: "malformed configuration document", Cause: err}
	}

	store, err := buildStore(generic.Parameters, generic.FHIRPathRules)
	if err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(generic.FHIRPathRules))
	for _, raw := range generic.FHIRPathRules {
		path, _ := raw["path"].(string)
		method, _ := raw["method"].(string)
		if path == "" {
			return nil, &ferrors.ConfigurationError{Detail: "fhirPathRules entry missing path"}
		}
		if method == "" {
			return nil, &ferrors.ConfigurationError{Detail: "fhirPathRules entry missing method"}
		}

		compiled, err := pathmatch.Compile(path)
		if err != nil {
			return nil, err
		}

		settings := make(map[string]any, len(raw))
		for k, v := range raw {
			if k == "path" || k == "method" || k == "resourceType" {
				continue
			}
			settings[k] = v
		}

		rules = append(rules, Rule{Method: method, Settings: settings, Compiled: compiled})
	}

	if generic.ProcessingErrors != ProcessingErrorsAggregate &&
		generic.ProcessingErrors != ProcessingErrorsRaise &&
		generic.ProcessingErrors != ProcessingErrorsSkip {
		return nil, &ferrors.ConfigurationError{Detail: "processingErrors must be unset, Raise, or Skip"}
	}

	dp, err := parseDPSettings(generic.Parameters.DifferentialPrivacySettings)
	if err != nil {
		return nil, err
	}

	return &Document{
		FHIRVersion:         generic.FHIRVersion,
		Rules:               rules,
		ProcessingErrors:    generic.ProcessingErrors,
		Store:               store,
		DifferentialPrivacy: dp,
		KAnonymity:          parseKAnonymitySettings(generic.Parameters.KAnonymitySettings),
	}, nil
}

// parseDPSettings decodes parameters.differentialPrivacySettings: a
// "budgets" object of context name to total epsilon, plus an optional
// "advancedComposition" flag.
func parseDPSettings(raw map[string]any) (DifferentialPrivacySettings, error) {
	out := DifferentialPrivacySettings{}
	if raw == nil {
		return out, nil
	}
	if adv, ok := raw["advancedComposition"].(bool); ok {
		out.AdvancedComposition = adv
	}
	budgets, ok := raw["budgets"].(map[string]any)
	if !ok {
		return out, nil
	}
	out.Budgets = make(map[string]float64, len(budgets))
	for ctx, v := range budgets {
		total, ok := v.(float64)
		if !ok || total <= 0 {
			return out, &ferrors.ConfigurationError{Detail: "differentialPrivacySettings.budgets." + ctx + " must be a positive number"}
		}
		out.Budgets[ctx] = total
	}
	return out, nil
}

func parseKAnonymitySettings(raw map[string]any) KAnonymitySettings {
	out := KAnonymitySettings{}
	if raw == nil {
		return out
	}
	if k, ok := raw["k"].(float64); ok {
		out.K = int(k)
	}
	return out
}

// buildStore loads the key store, inferring each feature's UsesXxx flag
// from whether any configured rule actually selects that method — an empty
// key is only acceptable when nothing will use it, and key validation
// needs that answer up front.
func buildStore(p rawParameters, rules []map[string]any) (*keystore.Store, error) {
	usesDateShift, usesCryptoHash, usesEncryption := false, false, false
	for _, r := range rules {
		switch method, _ := r["method"].(string); method {
		case "dateshift":
			usesDateShift = true
		case "cryptohash":
			usesCryptoHash = true
		case "encrypt":
			usesEncryption = true
		}
	}

	scope := keystore.DateShiftScope(p.DateShiftScope)
	return keystore.Load(keystore.Params{
		DateShiftKey:                     p.DateShiftKey,
		DateShiftKeyPrefix:               p.DateShiftKeyPrefix,
		DateShiftScope:                   scope,
		DateShiftFixedOffsetDays:         p.DateShiftFixedOffsetInDays,
		CryptoHashKey:                    p.CryptoHashKey,
		EncryptKey:                       p.EncryptKey,
		EnablePartialAgesForRedact:       p.EnablePartialAgesForRedact,
		EnablePartialDatesForRedact:      p.EnablePartialDatesForRedact,
		EnablePartialZipCodesForRedact:   p.EnablePartialZipCodesForRedact,
		RestrictedZipCodeTabulationAreas: p.RestrictedZipCodeTabulationAreas,
		UsesDateShift:                    usesDateShift,
		UsesCryptoHash:                   usesCryptoHash,
		UsesEncryption:                   usesEncryption,
	})
}
