// Package handlers provides the HTTP handlers for the FHIR and ML APIs.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/ingest"
	"github.com/medconnect/go-medconnect/internal/observability/metrics"
	"github.com/medconnect/go-medconnect/pkg/workerpool"
)

const defaultListLimit = 100

// FHIRHandler handles the Patient, Observation and Bundle endpoints.
type FHIRHandler struct {
	ingestor *ingest.Ingestor
	store    *postgres.Store
	pool     *workerpool.Pool
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewFHIRHandler creates a new handler.
func NewFHIRHandler(ingestor *ingest.Ingestor, store *postgres.Store, pool *workerpool.Pool, m *metrics.Metrics, logger *zap.Logger) *FHIRHandler {
	return &FHIRHandler{
		ingestor: ingestor,
		store:    store,
		pool:     pool,
		metrics:  m,
		logger:   logger,
	}
}

// Routes returns the handler routes.
func (h *FHIRHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", h.CreatePatient)
		r.Get("/mrn/{mrn}", h.GetPatientByMRN)
		r.Get("/{id}", h.GetPatient)
		r.Put("/{id}", h.UpdatePatient)
		r.Delete("/{id}", h.DeletePatient)
		r.Get("/{id}/versions", h.GetPatientVersions)
		r.Get("/{id}/observations", h.GetPatientObservations)
	})

	r.Route("/observations", func(r chi.Router) {
		r.Post("/", h.CreateObservation)
		r.Get("/{id}", h.GetObservation)
		r.Put("/{id}", h.UpdateObservation)
		r.Get("/type/{type}", h.GetObservationsByType)
	})

	r.Post("/bundles", h.IngestBundle)

	return r
}

// CreatePatient handles POST /patients.
func (h *FHIRHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readObject(w, r)
	if !ok {
		return
	}

	p, err := h.ingestor.CreatePatient(r.Context(), raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, codec.EncodePatient(p))
}

// GetPatient handles GET /patients/{id}.
func (h *FHIRHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.store.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.EncodePatient(p))
}

// GetPatientByMRN handles GET /patients/mrn/{mrn}.
func (h *FHIRHandler) GetPatientByMRN(w http.ResponseWriter, r *http.Request) {
	mrn := chi.URLParam(r, "mrn")

	p, err := h.store.GetPatientByMRN(r.Context(), mrn)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.EncodePatient(p))
}

// UpdatePatient handles PUT /patients/{id}. The target must already exist;
// the update stores a fresh version rather than mutating the old one.
func (h *FHIRHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, ok := h.readObject(w, r)
	if !ok {
		return
	}

	p, err := h.ingestor.UpdatePatient(r.Context(), id, raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.EncodePatient(p))
}

// DeletePatient handles DELETE /patients/{id}.
func (h *FHIRHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.ingestor.DeletePatient(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPatientVersions handles GET /patients/{id}/versions.
func (h *FHIRHandler) GetPatientVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	versions, err := h.store.ListPatientVersions(r.Context(), id, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(versions) == 0 {
		writeError(w, h.logger, &postgres.NotFoundError{Resource: "Patient", ID: id})
		return
	}

	out := make([]map[string]any, 0, len(versions))
	for _, p := range versions {
		out = append(out, codec.EncodePatient(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPatientObservations handles GET /patients/{id}/observations.
func (h *FHIRHandler) GetPatientObservations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	observations, err := h.store.ListObservationsByPatient(r.Context(), id, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]map[string]any, 0, len(observations))
	for _, o := range observations {
		out = append(out, codec.EncodeObservation(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateObservation handles POST /observations.
func (h *FHIRHandler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readObject(w, r)
	if !ok {
		return
	}

	o, err := h.ingestor.CreateObservation(r.Context(), raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, codec.EncodeObservation(o))
}

// GetObservation handles GET /observations/{id}.
func (h *FHIRHandler) GetObservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.store.GetObservation(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.EncodeObservation(o))
}

// UpdateObservation handles PUT /observations/{id}.
func (h *FHIRHandler) UpdateObservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, ok := h.readObject(w, r)
	if !ok {
		return
	}

	o, err := h.ingestor.UpdateObservation(r.Context(), id, raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.EncodeObservation(o))
}

// GetObservationsByType handles GET /observations/type/{type}.
func (h *FHIRHandler) GetObservationsByType(w http.ResponseWriter, r *http.Request) {
	observationType := chi.URLParam(r, "type")

	observations, err := h.store.ListObservationsByType(r.Context(), observationType, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]map[string]any, 0, len(observations))
	for _, o := range observations {
		out = append(out, codec.EncodeObservation(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// BundleResponse summarizes a bundle ingestion.
type BundleResponse struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []ingest.EntryResult `json:"results"`
}

// IngestBundle handles POST /bundles. Entries fan out across the worker
// pool and the response reports every entry's outcome; one bad entry does
// not fail the rest.
func (h *FHIRHandler) IngestBundle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read request body"})
		return
	}

	entries, err := codec.DecodeBundle(body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, BundleResponse{Results: []ingest.EntryResult{}})
		return
	}

	h.metrics.BundleEntries.Add(float64(len(entries)))

	results := make(chan ingest.EntryResult, len(entries))
	submitted := 0
	var resp BundleResponse
	for _, entry := range entries {
		task := &workerpool.Task{
			ID:      uuid.New().String(),
			Payload: &ingest.BundleTask{Entry: entry, Results: results},
			Context: r.Context(),
		}
		if err := h.pool.Submit(task); err != nil {
			resp.Results = append(resp.Results, ingest.EntryResult{
				ResourceType: entry.ResourceType,
				Error:        err.Error(),
			})
			continue
		}
		submitted++
	}

	for i := 0; i < submitted; i++ {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "bundle processing interrupted"})
			return
		case res := <-results:
			resp.Results = append(resp.Results, res)
		}
	}

	resp.Total = len(entries)
	for _, res := range resp.Results {
		if res.Error == "" {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	status := http.StatusOK
	if resp.Failed > 0 && resp.Succeeded == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (h *FHIRHandler) readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return nil, false
	}
	return raw, true
}

func listLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}
