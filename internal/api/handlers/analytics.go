package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/ml/features"
)

// AnalyticsHandler serves read-side summaries assembled from the stored
// resources.
type AnalyticsHandler struct {
	store     *postgres.Store
	extractor *features.Extractor
	logger    *zap.Logger
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(store *postgres.Store, extractor *features.Extractor, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// Routes returns the handler routes.
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/patients/{id}/summary", h.PatientSummary)
	return r
}

// PatientSummaryResponse is the assembled view of one patient.
type PatientSummaryResponse struct {
	PatientID         string                `json:"patient_id"`
	Demographics      features.Demographics `json:"demographics"`
	MRN               string                `json:"mrn,omitempty"`
	ObservationCounts map[string]int        `json:"observation_counts"`
	LatestVitals      map[string]float64    `json:"latest_vitals"`
	LatestLabs        map[string]float64    `json:"latest_labs"`
	Conditions        []string              `json:"conditions"`
	Medications       []string              `json:"medications"`
	LatestPrediction  *model.Prediction     `json:"latest_prediction,omitempty"`
}

// PatientSummary handles GET /analytics/patients/{id}/summary.
func (h *AnalyticsHandler) PatientSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	patient, err := h.store.GetPatient(ctx, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	observations, err := h.store.ListObservationsByPatient(ctx, id, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	fs := h.extractor.Extract(patient, observations)

	counts := make(map[string]int)
	for _, o := range observations {
		counts[o.ObservationType]++
	}

	latestVitals := make(map[string]float64)
	for obsType, points := range fs.VitalSigns {
		if v, ok := features.LatestValue(points); ok {
			latestVitals[obsType] = v
		}
	}
	latestLabs := make(map[string]float64)
	for obsType, points := range fs.LabResults {
		if v, ok := features.LatestValue(points); ok {
			latestLabs[obsType] = v
		}
	}

	resp := PatientSummaryResponse{
		PatientID:         patient.PatientID,
		Demographics:      fs.Demographics,
		MRN:               patient.MRN(),
		ObservationCounts: counts,
		LatestVitals:      latestVitals,
		LatestLabs:        latestLabs,
		Conditions:        fs.Conditions,
		Medications:       fs.Medications,
	}

	if predictions, err := h.store.ListPredictionsByPatient(ctx, id, 1); err == nil && len(predictions) > 0 {
		resp.LatestPrediction = &predictions[0]
	}

	writeJSON(w, http.StatusOK, resp)
}
