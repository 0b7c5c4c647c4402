package redpanda

import "encoding/json"

// Event operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// IngestionEvent is the payload published to TopicIngestion on every
// resource write. Data carries the internal representation of the resource;
// delete events carry only the id.
type IngestionEvent struct {
	ResourceType string          `json:"resource_type"`
	Operation    string          `json:"operation"`
	EntityID     string          `json:"entity_id"`
	Timestamp    string          `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// NotificationEvent is the payload published to TopicNotifications, keyed by
// patient id.
type NotificationEvent struct {
	Type      string `json:"type"`
	EntityID  string `json:"entity_id"`
	PatientID string `json:"patient_id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
}

// PredictionEvent is the payload published to TopicPredictions when a model
// run completes.
type PredictionEvent struct {
	PredictionID string  `json:"prediction_id"`
	ModelID      string  `json:"model_id"`
	PatientID    string  `json:"patient_id"`
	Prediction   string  `json:"prediction"`
	Probability  float64 `json:"probability"`
	Timestamp    string  `json:"timestamp"`
}
