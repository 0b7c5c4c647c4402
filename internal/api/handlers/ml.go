package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/infrastructure/redpanda"
	"github.com/medconnect/go-medconnect/internal/ingest"
	"github.com/medconnect/go-medconnect/internal/ml/features"
	"github.com/medconnect/go-medconnect/internal/ml/risk"
	"github.com/medconnect/go-medconnect/internal/observability/metrics"
	"github.com/medconnect/go-medconnect/pkg/circuitbreaker"
)

// MLHandler handles the prediction endpoints. Scoring runs through a
// circuit breaker so a misbehaving model cannot take the API down with it.
type MLHandler struct {
	store     *postgres.Store
	extractor *features.Extractor
	predictor *risk.Predictor
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewMLHandler creates a new handler.
func NewMLHandler(store *postgres.Store, extractor *features.Extractor, predictor *risk.Predictor, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics, logger *zap.Logger) *MLHandler {
	return &MLHandler{
		store:     store,
		extractor: extractor,
		predictor: predictor,
		breaker:   breaker,
		metrics:   m,
		logger:    logger,
	}
}

// Routes returns the handler routes.
func (h *MLHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreatePrediction)
	r.Get("/{id}", h.GetPrediction)
	r.Get("/patient/{patientID}", h.GetPatientPredictions)
	r.Get("/model/{modelID}", h.GetModelPredictions)
	return r
}

// PredictionRequest is the request body for creating a prediction.
type PredictionRequest struct {
	PatientID string `json:"patient_id"`
	ModelID   string `json:"model_id,omitempty"`
	Limit     int    `json:"observation_limit,omitempty"`
}

// CreatePrediction handles POST /predictions: load the patient and their
// observation history, flatten both into the feature set, score, and
// persist the full run record including its inputs. A failed scoring call
// is recorded too, with status failed, so the history shows every attempt.
func (h *MLHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "patient_id is required"})
		return
	}
	if req.ModelID == "" {
		req.ModelID = risk.ModelID
	}
	if req.ModelID != risk.ModelID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown model_id: " + req.ModelID})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	patient, err := h.store.GetPatient(ctx, req.PatientID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	observations, err := h.store.ListObservationsByPatient(ctx, req.PatientID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	fs := h.extractor.Extract(patient, observations)
	observationIDs := make([]string, 0, len(observations))
	for _, o := range observations {
		observationIDs = append(observationIDs, o.ObservationID)
	}

	prediction := model.NewPrediction(model.Prediction{
		ModelID:        req.ModelID,
		ModelVersion:   risk.ModelVersion,
		PatientID:      req.PatientID,
		PredictionType: "risk",
		Input: model.PredictionInput{
			PatientID:      req.PatientID,
			ObservationIDs: observationIDs,
			Features:       featureMap(fs),
		},
	})

	start := time.Now()
	scored, err := h.breaker.Execute(ctx, func() (interface{}, error) {
		return h.predictor.Predict(fs), nil
	})
	h.metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		prediction.Status = model.PredictionFailed
		prediction.Error = err.Error()
		h.metrics.PredictionsTotal.WithLabelValues(req.ModelID, model.PredictionFailed).Inc()

		if storeErr := h.store.PutPrediction(ctx, prediction); storeErr != nil {
			h.logger.Error("failed to record failed prediction", zap.Error(storeErr))
		}
		h.logger.Warn("prediction failed",
			zap.String("model_id", req.ModelID),
			zap.String("patient_id", req.PatientID),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":         "scoring unavailable",
			"prediction_id": prediction.PredictionID,
		})
		return
	}

	result := scored.(risk.Result)
	probability := result.Probability
	prediction.Output = model.PredictionOutput{
		Prediction:  result.Prediction,
		Probability: &probability,
		Scores:      result.Scores,
		Explanation: map[string]any{"factors": result.Factors},
		Thresholds:  result.Thresholds,
	}

	events := []*postgres.OutboxEntry{
		predictionEntry(prediction, result),
		ingest.NotificationEntry("prediction-completed", prediction.PredictionID, req.PatientID),
	}
	if err := h.store.PutPrediction(ctx, prediction, events...); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.metrics.PredictionsTotal.WithLabelValues(req.ModelID, model.PredictionCompleted).Inc()
	h.logger.Info("prediction completed",
		zap.String("prediction_id", prediction.PredictionID),
		zap.String("patient_id", req.PatientID),
		zap.String("risk_level", result.Prediction),
		zap.Float64("risk_score", result.Probability))

	writeJSON(w, http.StatusCreated, prediction)
}

// GetPrediction handles GET /predictions/{id}.
func (h *MLHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.store.GetPrediction(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GetPatientPredictions handles GET /predictions/patient/{patientID}.
func (h *MLHandler) GetPatientPredictions(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	predictions, err := h.store.ListPredictionsByPatient(r.Context(), patientID, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, predictions)
}

// GetModelPredictions handles GET /predictions/model/{modelID}.
func (h *MLHandler) GetModelPredictions(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	predictions, err := h.store.ListPredictionsByModel(r.Context(), modelID, listLimit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, predictions)
}

func predictionEntry(p model.Prediction, result risk.Result) *postgres.OutboxEntry {
	payload, _ := json.Marshal(redpanda.PredictionEvent{
		PredictionID: p.PredictionID,
		ModelID:      p.ModelID,
		PatientID:    p.PatientID,
		Prediction:   result.Prediction,
		Probability:  result.Probability,
		Timestamp:    p.Timestamp,
	})
	return &postgres.OutboxEntry{
		EntityID:   p.PredictionID,
		EntityType: "Prediction",
		EventType:  "prediction.completed",
		Payload:    payload,
		KafkaTopic: redpanda.TopicPredictions,
		KafkaKey:   p.PatientID,
	}
}

// featureMap flattens the feature set into the generic map stored on the
// prediction input record.
func featureMap(fs features.FeatureSet) map[string]any {
	data, err := json.Marshal(fs)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
