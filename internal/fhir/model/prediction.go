package model

import "github.com/google/uuid"

// PredictionInput captures what went into a model run.
type PredictionInput struct {
	PatientID      string         `json:"patient_id"`
	ObservationIDs []string       `json:"observation_ids,omitempty"`
	Features       map[string]any `json:"features"`
	Context        map[string]any `json:"context,omitempty"`
}

// PredictionOutput captures what came out of a model run.
type PredictionOutput struct {
	Prediction  any                `json:"prediction"`
	Probability *float64           `json:"probability,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	Explanation map[string]any     `json:"explanation,omitempty"`
	Thresholds  map[string]float64 `json:"thresholds,omitempty"`
}

// Prediction records a model run against a patient. Predictions have no wire
// FHIR shape; they exist only in the internal representation, built through
// the same construct-and-replace lifecycle as the FHIR resources.
type Prediction struct {
	PredictionID   string           `json:"prediction_id"`
	ModelID        string           `json:"model_id"`
	ModelVersion   string           `json:"model_version"`
	PatientID      string           `json:"patient_id"`
	Timestamp      string           `json:"timestamp"`
	PredictionType string           `json:"prediction_type"`
	Input          PredictionInput  `json:"input"`
	Output         PredictionOutput `json:"output"`
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

// NewPrediction fills in the id, default status and bookkeeping timestamps.
func NewPrediction(p Prediction) Prediction {
	now := Now()
	if p.PredictionID == "" {
		p.PredictionID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PredictionCompleted
	}
	if p.Timestamp == "" {
		p.Timestamp = now
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	if p.UpdatedAt == "" {
		p.UpdatedAt = p.CreatedAt
	}
	return p
}
