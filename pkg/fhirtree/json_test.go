package fhirtree

import (
	"encoding/json"
	"testing"
)

func TestFromJSONBasicPatient(t *testing.T) {
	doc := `{
		"resourceType": "Patient",
		"id": "x",
		"name": [{"family": "Doe", "given": ["John"]}],
		"birthDate": "1974-12-25"
	}`

	root, err := FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if root.InstanceType != "Patient" {
		t.Errorf("expected InstanceType Patient, got %q", root.InstanceType)
	}

	names := root.ChildrenNamed("name")
	if len(names) != 1 {
		t.Fatalf("expected 1 name, got %d", len(names))
	}
	if names[0].InstanceType != "HumanName" {
		t.Errorf("expected name InstanceType HumanName, got %q", names[0].InstanceType)
	}

	families := names[0].ChildrenNamed("family")
	if len(families) != 1 || families[0].Value != "Doe" {
		t.Fatalf("expected family Doe, got %+v", families)
	}

	births := root.ChildrenNamed("birthDate")
	if len(births) != 1 || births[0].InstanceType != "date" {
		t.Fatalf("expected birthDate typed as date, got %+v", births)
	}
}

func TestFromJSONRejectsMissingResourceType(t *testing.T) {
	_, err := FromJSON([]byte(`{"id": "x"}`))
	if err == nil {
		t.Fatal("expected error for missing resourceType")
	}
}

func TestFromJSONFieldDecodesStandaloneElement(t *testing.T) {
	n, err := FromJSONField("HumanName", "name", []byte(`{"family":"Doe","given":["John"]}`))
	if err != nil {
		t.Fatalf("FromJSONField failed: %v", err)
	}
	if n.InstanceType != "HumanName" || n.Name != "name" {
		t.Fatalf("expected HumanName/name, got %q/%q", n.InstanceType, n.Name)
	}
	families := n.ChildrenNamed("family")
	if len(families) != 1 || families[0].Value != "Doe" {
		t.Fatalf("expected family Doe, got %+v", families)
	}
}

func TestRoundTrip(t *testing.T) {
	doc := `{"resourceType":"Patient","id":"abc","active":true,"name":[{"family":"Doe","given":["John","Q"]}]}`

	root, err := FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	out, err := root.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatal(err)
	}

	// encoding/json always marshals map[string]interface{} keys in sorted
	// order, so re-marshaling both decoded documents is a valid structural
	// comparison regardless of original key order.
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("round trip mismatch:\ngot  %s\nwant %s", gotJSON, wantJSON)
	}
}
