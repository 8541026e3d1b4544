package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/savegress/fhirguard/internal/audit"
	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/config"
	"github.com/savegress/fhirguard/internal/engine"
	"github.com/savegress/fhirguard/internal/equivclass"
	"github.com/savegress/fhirguard/internal/processors"
	"github.com/savegress/fhirguard/internal/ruleconfig"
	"github.com/savegress/fhirguard/internal/validators"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

// Handlers contains all HTTP handlers for the fhirguard API.
type Handlers struct {
	config *config.Config
	audit  *audit.Logger
}

// NewHandlers creates new handlers. audit may be nil to disable logging.
func NewHandlers(cfg *config.Config, auditLog *audit.Logger) *Handlers {
	return &Handlers{config: cfg, audit: auditLog}
}

// HealthCheck handles liveness checks.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fhirguard",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

type anonymizeResourceRequest struct {
	Config   json.RawMessage `json:"config"`
	Resource json.RawMessage `json:"resource"`
}

type anonymizeResourceResponse struct {
	Resource json.RawMessage `json:"resource"`
	Result   resultView      `json:"result"`
}

// AnonymizeResource runs a rule configuration document against one whole
// resource document.
func (h *Handlers) AnonymizeResource(w http.ResponseWriter, r *http.Request) {
	var req anonymizeResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := ruleconfig.Parse(req.Config)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule configuration: "+err.Error())
		return
	}

	root, err := fhirtree.FromJSON(req.Resource)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid resource document: "+err.Error())
		return
	}

	eng := engine.New(doc, budget.New())
	out, res := eng.AnonymizeResource(r.Context(), root)

	if h.audit != nil {
		h.audit.LogRun(out.InstanceType, out.ResourceID(), res)
	}

	encoded, err := out.ToJSON()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode result resource")
		return
	}

	respond(w, http.StatusOK, anonymizeResourceResponse{
		Resource: encoded,
		Result:   viewOf(res),
	})
}

type anonymizeElementRequest struct {
	Config       json.RawMessage `json:"config"`
	InstanceType string          `json:"instanceType"`
	Name         string          `json:"name"`
	Element      json.RawMessage `json:"element"`
}

type anonymizeElementResponse struct {
	Element json.RawMessage `json:"element"`
	Result  resultView      `json:"result"`
}

// AnonymizeElement runs a rule configuration document against a single
// element node rather than a whole resource.
func (h *Handlers) AnonymizeElement(w http.ResponseWriter, r *http.Request) {
	var req anonymizeElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := ruleconfig.Parse(req.Config)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule configuration: "+err.Error())
		return
	}

	node, err := fhirtree.FromJSONField(req.InstanceType, req.Name, req.Element)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid element payload: "+err.Error())
		return
	}

	eng := engine.New(doc, budget.New())
	out, res := eng.AnonymizeElement(r.Context(), node)

	encoded, err := out.ToJSON()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode result element")
		return
	}

	respond(w, http.StatusOK, anonymizeElementResponse{
		Element: encoded,
		Result:  viewOf(res),
	})
}

type validateRequest struct {
	Records          []json.RawMessage `json:"records"`
	QuasiIdentifiers []string          `json:"quasiIdentifiers"`
	K                int               `json:"k"`
}

// ValidateKAnonymity builds equivalence classes from records and quasi-
// identifiers, then runs the k-anonymity validator.
func (h *Handlers) ValidateKAnonymity(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	classes, ok := h.buildClasses(w, req.Records, req.QuasiIdentifiers)
	if !ok {
		return
	}

	v, err := validators.NewKAnonymityValidator(req.K)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respond(w, http.StatusOK, v.Validate(classes))
}

// ValidateReidentificationRisk builds equivalence classes from records and
// quasi-identifiers, then runs the Re-identification Risk Assessor.
func (h *Handlers) ValidateReidentificationRisk(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	classes, ok := h.buildClasses(w, req.Records, req.QuasiIdentifiers)
	if !ok {
		return
	}

	respond(w, http.StatusOK, validators.NewRiskAssessor().Assess(classes))
}

func (h *Handlers) buildClasses(w http.ResponseWriter, records []json.RawMessage, quasiIdentifiers []string) ([]validators.Class, bool) {
	builder, err := equivclass.NewBuilder(quasiIdentifiers)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quasi-identifier path: "+err.Error())
		return nil, false
	}

	docs := make([]equivclass.Document, len(records))
	for i, rec := range records {
		docs[i] = equivclass.Document{Raw: rec}
	}

	return builder.Build(docs).Classes, true
}

type equivalenceClassesRequest struct {
	Documents            []json.RawMessage `json:"documents"`
	QuasiIdentifierPaths []string          `json:"quasiIdentifierPaths"`
}

type equivalenceClassSummary struct {
	Signature string `json:"signature"`
	Size      int    `json:"size"`
}

type equivalenceClassesResponse struct {
	Classes      []equivalenceClassSummary `json:"classes"`
	SkippedCount int                       `json:"skippedCount"`
}

// BuildEquivalenceClasses groups a corpus of documents by quasi-identifier
// signature.
func (h *Handlers) BuildEquivalenceClasses(w http.ResponseWriter, r *http.Request) {
	var req equivalenceClassesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	builder, err := equivclass.NewBuilder(req.QuasiIdentifierPaths)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quasi-identifier path: "+err.Error())
		return
	}

	docs := make([]equivclass.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = equivclass.Document{Raw: d}
	}

	result := builder.Build(docs)
	resp := equivalenceClassesResponse{SkippedCount: result.SkippedCount}
	for _, c := range result.Classes {
		resp.Classes = append(resp.Classes, equivalenceClassSummary{Signature: c.Signature, Size: len(c.Records)})
	}

	respond(w, http.StatusOK, resp)
}

// ListAuditEvents lists anonymization-run audit events, optionally filtered
// by resourceType/outcome query parameters.
func (h *Handlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respond(w, http.StatusOK, []*audit.Event{})
		return
	}

	filter := audit.EventFilter{
		ResourceType: r.URL.Query().Get("resourceType"),
		Outcome:      audit.Outcome(r.URL.Query().Get("outcome")),
	}
	respond(w, http.StatusOK, h.audit.GetEvents(filter))
}

// GetAuditStats returns aggregate statistics over logged audit events.
func (h *Handlers) GetAuditStats(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respond(w, http.StatusOK, &audit.Stats{})
		return
	}
	respond(w, http.StatusOK, h.audit.GetStats())
}

// resultView is the JSON-safe projection of engine.Result: errors become
// strings since the error interface does not marshal usefully on its own.
type resultView struct {
	Records                 []*processors.Record `json:"records"`
	Errors                  []string             `json:"errors,omitempty"`
	IsDifferentiallyPrivate bool                 `json:"isDifferentiallyPrivate"`
	Skipped                 bool                 `json:"skipped"`
}

func viewOf(res *engine.Result) resultView {
	v := resultView{
		Records:                 res.Records,
		IsDifferentiallyPrivate: res.IsDifferentiallyPrivate,
		Skipped:                 res.Skipped,
	}
	for _, err := range res.Errors {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
