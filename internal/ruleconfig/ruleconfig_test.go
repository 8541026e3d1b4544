package ruleconfig

import "testing"

func TestParseValidDocument(t *testing.T) {
	doc := []byte(`{
		"fhirVersion": "R4",
		"fhirPathRules": [
			{"path": "Patient.name", "method": "redact"},
			{"path": "Patient.identifier.value", "method": "cryptohash"}
		],
		"parameters": {
			"cryptoHashKey": "a-sufficiently-long-crypto-hash-key"
		},
		"processingErrors": "Skip"
	}`)

	d, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(d.Rules))
	}
	if d.ProcessingErrors != ProcessingErrorsSkip {
		t.Fatalf("expected Skip, got %v", d.ProcessingErrors)
	}
}

func TestParseDifferentialPrivacyBudgets(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Observation.valueQuantity.value", "method": "differentialprivacy"}],
		"parameters": {
			"differentialPrivacySettings": {
				"budgets": {"observations": 2.5},
				"advancedComposition": true
			}
		}
	}`)

	d, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.DifferentialPrivacy.Budgets["observations"]; got != 2.5 {
		t.Fatalf("expected budget 2.5 for observations, got %v", got)
	}
	if !d.DifferentialPrivacy.AdvancedComposition {
		t.Fatal("expected advancedComposition to be carried through")
	}
}

func TestParseRejectsNonPositiveBudget(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Observation.valueQuantity.value", "method": "differentialprivacy"}],
		"parameters": {
			"differentialPrivacySettings": {"budgets": {"observations": 0}}
		}
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected error for non-positive budget total")
	}
}

func TestParseRejectsMissingPath(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"method": "redact"}],
		"parameters": {},
		"processingErrors": "Raise"
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestParseRejectsMissingMethod(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Patient.name"}],
		"parameters": {},
		"processingErrors": "Raise"
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected error for missing method")
	}
}

func TestParseRejectsInvalidProcessingErrorsMode(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Patient.name", "method": "redact"}],
		"parameters": {},
		"processingErrors": "Ignore"
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected error for invalid processingErrors mode")
	}
}

func TestParsePropagatesKeyValidationError(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Patient.identifier.value", "method": "cryptohash"}],
		"parameters": {"cryptoHashKey": "PLACEHOLDER"},
		"processingErrors": "Raise"
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected security error for placeholder crypto-hash key")
	}
}

func TestParseAllowsEmptyUnusedKeys(t *testing.T) {
	doc := []byte(`{
		"fhirPathRules": [{"path": "Patient.name", "method": "redact"}],
		"parameters": {},
		"processingErrors": "Raise"
	}`)
	if _, err := Parse(doc); err != nil {
		t.Fatalf("expected no error when unused keys are empty, got %v", err)
	}
}
