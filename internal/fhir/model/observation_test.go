package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

func TestNewObservationDerivesIndexingFields(t *testing.T) {
	o := model.NewObservation(model.Observation{
		Status: model.StatusFinal,
		Code: model.CodeableConcept{Coding: []model.Coding{
			{System: model.SystemLOINC, Code: "heart-rate"},
		}},
		Subject: model.Reference{Reference: "Patient/p-1"},
		Value:   model.QuantityValue(model.Quantity{Value: 72, Unit: "/min"}),
	})

	assert.NotEmpty(t, o.ObservationID)
	assert.Equal(t, "heart-rate", o.ObservationType)
	assert.Equal(t, "p-1", o.PatientID)
	assert.NotEmpty(t, o.Timestamp)
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)
}

func TestNewObservationDefaultsTypeToUnknown(t *testing.T) {
	o := model.NewObservation(model.Observation{Status: model.StatusFinal})
	assert.Equal(t, "unknown", o.ObservationType)
}

func TestPatientIDFromReference(t *testing.T) {
	assert.Equal(t, "p-1", model.PatientIDFromReference("Patient/p-1"))
	assert.Empty(t, model.PatientIDFromReference("Practitioner/p-1"))
	assert.Empty(t, model.PatientIDFromReference("Patient/"))
	assert.Empty(t, model.PatientIDFromReference(""))
	assert.Empty(t, model.PatientIDFromReference("p-1"))
}

func TestHasValue(t *testing.T) {
	base := model.Observation{}
	assert.False(t, base.HasValue())

	withValue := base
	withValue.Value = model.BoolValue(false)
	assert.True(t, withValue.HasValue())

	withReason := base
	withReason.DataAbsentReason = &model.CodeableConcept{Text: "not performed"}
	assert.True(t, withReason.HasValue())

	withComponents := base
	withComponents.Components = []model.ObservationComponent{{
		Code:  model.CodeableConcept{Text: "systolic"},
		Value: model.QuantityValue(model.Quantity{Value: 120}),
	}}
	assert.True(t, withComponents.HasValue())
}

func TestObservationNewVersionRefreshesSortKey(t *testing.T) {
	defer pinClock("2024-03-01T10:00:00Z", "2024-03-01T11:00:00Z")()

	o := model.NewObservation(model.Observation{Status: model.StatusFinal})
	next := o.NewVersion()

	require.Equal(t, o.ObservationID, next.ObservationID)
	assert.Equal(t, "2024-03-01T11:00:00Z", next.Timestamp)
	assert.Greater(t, next.Timestamp, o.Timestamp)
	assert.Equal(t, o.CreatedAt, next.CreatedAt)
}
