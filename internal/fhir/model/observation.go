package model

import "github.com/google/uuid"

// ObservationComponent is a sub-measurement within a composite Observation,
// e.g. systolic and diastolic within a blood-pressure reading.
type ObservationComponent struct {
	Code  CodeableConcept `json:"code"`
	Value CodeableValue   `json:"value"`
}

// Observation is the internal flattened representation of a FHIR
// Observation. ObservationType is the indexing field derived from the first
// coding of Code; PatientID is derived from the subject reference. Timestamp
// is the storage sort key; Issued, CreatedAt and UpdatedAt are bookkeeping
// and carry no clinical meaning.
type Observation struct {
	ObservationID    string                 `json:"observation_id"`
	Status           string                 `json:"status"`
	Category         []CodeableConcept      `json:"category"`
	Code             CodeableConcept        `json:"code"`
	Subject          Reference              `json:"subject"`
	PatientID        string                 `json:"patient_id"`
	EffectiveTime    string                 `json:"effective_time"`
	EffectivePeriod  *Period                `json:"effective_period,omitempty"`
	Timestamp        string                 `json:"timestamp"`
	Issued           string                 `json:"issued"`
	Value            CodeableValue          `json:"value"`
	DataAbsentReason *CodeableConcept       `json:"data_absent_reason,omitempty"`
	Components       []ObservationComponent `json:"components,omitempty"`
	ObservationType  string                 `json:"observation_type"`
	CreatedAt        string                 `json:"created_at"`
	UpdatedAt        string                 `json:"updated_at"`
}

// NewObservation constructs an Observation, generating the id, bookkeeping
// timestamps and the derived indexing fields when absent. It does not gate
// on the value-presence rule; that is the validator's job, so observations
// built here and observations decoded from the wire are rejected by the same
// path.
func NewObservation(o Observation) Observation {
	now := Now()
	if o.ObservationID == "" {
		o.ObservationID = uuid.New().String()
	}
	if o.ObservationType == "" {
		o.ObservationType = o.Code.FirstCode("unknown")
	}
	if o.PatientID == "" {
		o.PatientID = PatientIDFromReference(o.Subject.Reference)
	}
	if o.Timestamp == "" {
		o.Timestamp = now
	}
	if o.Issued == "" {
		o.Issued = now
	}
	if o.CreatedAt == "" {
		o.CreatedAt = now
	}
	if o.UpdatedAt == "" || o.UpdatedAt < o.CreatedAt {
		o.UpdatedAt = o.CreatedAt
	}
	return o
}

// NewVersion returns a copy with fresh sort-key and updated_at timestamps.
func (o Observation) NewVersion() Observation {
	now := Now()
	o.Timestamp = now
	o.UpdatedAt = now
	return o
}

// HasValue reports whether any value variant, a data-absent reason, or a
// non-empty component list is present. At least one of the three must hold
// for the observation to be valid.
func (o Observation) HasValue() bool {
	return !o.Value.IsAbsent() || o.DataAbsentReason != nil || len(o.Components) > 0
}

// PatientIDFromReference extracts the patient id from a "Patient/{id}"
// reference. Any other reference shape yields the empty string; callers must
// treat that as invalid via the validator.
func PatientIDFromReference(ref string) string {
	const prefix = "Patient/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ""
}
