package fhirtree

import "strings"

// fieldType maps a field name to the schema type of its value (HumanName,
// Address, Identifier, CodeableConcept, Coding, Period, Reference,
// Quantity, Extension, Meta, Narrative). The default JSON decoder in
// json.go consults it to assign Node.InstanceType to nested objects, since
// raw JSON carries no type tags of its own.
var fieldType = map[string]string{
	"name":                  "HumanName",
	"contact":               "PatientContact",
	"address":               "Address",
	"telecom":               "ContactPoint",
	"identifier":            "Identifier",
	"type":                  "CodeableConcept",
	"category":              "CodeableConcept",
	"maritalStatus":         "CodeableConcept",
	"code":                  "CodeableConcept",
	"valueCodeableConcept":  "CodeableConcept",
	"coding":                "Coding",
	"period":                "Period",
	"dataPeriod":            "Period",
	"subject":               "Reference",
	"encounter":             "Reference",
	"patient":               "Reference",
	"performer":             "Reference",
	"generalPractitioner":   "Reference",
	"managingOrganization":  "Reference",
	"serviceProvider":       "Reference",
	"assigner":              "Reference",
	"individual":            "Reference",
	"authorReference":       "Reference",
	"valueQuantity":         "Quantity",
	"low":                   "Quantity",
	"high":                  "Quantity",
	"extension":             "Extension",
	"meta":                  "Meta",
	"text":                  "Narrative",
	"referenceRange":        "ObservationReferenceRange",
}

// primitiveSuffix maps a field-name suffix to the FHIR primitive type the
// spec names explicitly (date, dateTime, instant, age, postalCode), most
// specific first.
var primitiveSuffix = []struct {
	suffix string
	typ    string
}{
	{"DateTime", "dateTime"},
	{"Date", "date"},
	{"Instant", "instant"},
	{"Age", "age"},
}

var primitiveExact = map[string]string{
	"birthDate":  "date",
	"postalCode": "postalCode",
	"issued":     "instant",
	"recorded":   "instant",
	"age":        "age",
}

// TypeForField returns the schema type to assign a node named name, given
// its parent's schema type. leafIsObject is true when the decoded value is
// a JSON object, so an unregistered name falls back to a generic compound
// type rather than "string".
func TypeForField(parentType, name string, leafIsObject bool) string {
	if t, ok := primitiveExact[name]; ok {
		return t
	}
	for _, p := range primitiveSuffix {
		if strings.HasSuffix(name, p.suffix) {
			return p.typ
		}
	}
	if t, ok := fieldType[name]; ok {
		return t
	}
	if !leafIsObject {
		return "string"
	}
	// Unknown compound shape: fall back to the generic type name
	// BackboneElement, FHIR's own name for anonymous nested structures.
	return "BackboneElement"
}

// KnownResourceTypes lists the resource classes commonly seen in
// anonymization configurations. Used only as a hint for callers that want
// to validate a "resourceType" field; the path matcher never consults this
// list — it dispatches resource-scoped rules by direct string comparison
// against whatever instance type the root actually carries.
var KnownResourceTypes = []string{
	"Patient", "Practitioner", "Organization", "Encounter", "Observation",
	"Condition", "Medication", "MedicationRequest", "Procedure",
	"DiagnosticReport", "Immunization", "AllergyIntolerance",
	"DocumentReference",
}
