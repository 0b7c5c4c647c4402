package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

func TestDecodeObservation(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"id": "o-1",
		"status": "final",
		"category": [{"coding": [{"system": "http://terminology.hl7.org/CodeSystem/observation-category", "code": "vital-signs"}]}],
		"code": {"coding": [{"system": "http://loinc.org", "code": "heart-rate", "display": "Heart rate"}]},
		"subject": {"reference": "Patient/p-1"},
		"effectiveDateTime": "2024-03-01T10:00:00Z",
		"valueQuantity": {"value": 72, "unit": "/min", "system": "http://unitsofmeasure.org", "code": "/min"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "o-1", o.ObservationID)
	assert.Equal(t, model.StatusFinal, o.Status)
	assert.Equal(t, "heart-rate", o.ObservationType)
	assert.Equal(t, "p-1", o.PatientID)
	assert.Equal(t, "2024-03-01T10:00:00Z", o.EffectiveTime)

	q, ok := o.Value.Quantity()
	require.True(t, ok)
	assert.Equal(t, 72.0, q.Value)
	assert.Equal(t, "/min", q.Unit)
}

func TestDecodeObservationValuePriority(t *testing.T) {
	// When several value[x] keys are present the earlier-priority one wins.
	o, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"status": "final",
		"valueString": "seventy-two",
		"valueQuantity": {"value": 72, "unit": "/min"},
		"valueBoolean": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, model.ValueQuantity, o.Value.Kind())

	o, err = codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"status": "final",
		"valueInteger": 3,
		"valueString": "three"
	}`))
	require.NoError(t, err)
	assert.Equal(t, model.ValueString, o.Value.Kind())
}

func TestDecodeObservationAbsentValue(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{"resourceType": "Observation", "status": "final"}`))
	require.NoError(t, err)
	assert.True(t, o.Value.IsAbsent())
	assert.False(t, o.HasValue())

	o, err = codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"status": "final",
		"valueBoolean": false
	}`))
	require.NoError(t, err)
	assert.False(t, o.Value.IsAbsent())
	assert.True(t, o.HasValue())
}

func TestDecodeObservationComponents(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"status": "final",
		"code": {"coding": [{"system": "http://loinc.org", "code": "blood-pressure"}]},
		"subject": {"reference": "Patient/p-1"},
		"component": [
			{"code": {"coding": [{"code": "systolic"}]}, "valueQuantity": {"value": 120, "unit": "mmHg"}},
			{"code": {"coding": [{"code": "diastolic"}]}, "valueQuantity": {"value": 80, "unit": "mmHg"}}
		]
	}`))
	require.NoError(t, err)

	assert.True(t, o.Value.IsAbsent())
	assert.True(t, o.HasValue())
	require.Len(t, o.Components, 2)

	sys, ok := o.Components[0].Value.Quantity()
	require.True(t, ok)
	assert.Equal(t, 120.0, sys.Value)
}

func TestDecodeObservationDefaults(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{"resourceType": "Observation"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ObservationID)
	assert.Equal(t, model.StatusUnknown, o.Status)
	assert.Equal(t, "unknown", o.ObservationType)
	assert.Empty(t, o.PatientID)
	assert.NotEmpty(t, o.EffectiveTime)
	assert.NotEmpty(t, o.Issued)
}

func TestDecodeObservationNonPatientSubject(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"status": "final",
		"subject": {"reference": "Group/g-1"}
	}`))
	require.NoError(t, err)
	assert.Empty(t, o.PatientID)
}

func TestDecodeObservationMalformedValue(t *testing.T) {
	var decodeErr *codec.DecodeError

	_, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"valueQuantity": "72"
	}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "valueQuantity", decodeErr.Field)

	_, err = codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"valueBoolean": "yes"
	}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "valueBoolean", decodeErr.Field)
}

func TestEncodeObservationEmitsSingleValueKey(t *testing.T) {
	o := model.NewObservation(model.Observation{
		Status: model.StatusFinal,
		Code: model.CodeableConcept{Coding: []model.Coding{
			{System: model.SystemLOINC, Code: "temperature"},
		}},
		Subject: model.Reference{Reference: "Patient/p-1"},
		Value:   model.QuantityValue(model.Quantity{Value: 37.2, Unit: "Cel"}),
	})

	out := codec.EncodeObservation(o)
	assert.Contains(t, out, "valueQuantity")
	for _, key := range []string{"valueString", "valueBoolean", "valueInteger", "valueCodeableConcept"} {
		assert.NotContains(t, out, key)
	}

	absent := o
	absent.Value = model.CodeableValue{}
	absent.DataAbsentReason = &model.CodeableConcept{Text: "refused"}
	out = codec.EncodeObservation(absent)
	assert.NotContains(t, out, "valueQuantity")
	assert.Contains(t, out, "dataAbsentReason")
}

func TestObservationRoundTrip(t *testing.T) {
	o, err := codec.DecodeObservation([]byte(`{
		"resourceType": "Observation",
		"id": "o-2",
		"status": "final",
		"code": {"coding": [{"system": "http://loinc.org", "code": "lab-glucose"}], "text": "Glucose"},
		"subject": {"reference": "Patient/p-1", "display": "Jane Smith"},
		"effectiveDateTime": "2024-03-01T10:00:00Z",
		"valueQuantity": {"value": 105, "unit": "mg/dL"}
	}`))
	require.NoError(t, err)

	restored, err := codec.DecodeObservationObject(codec.EncodeObservation(o))
	require.NoError(t, err)

	assert.Equal(t, o.ObservationID, restored.ObservationID)
	assert.Equal(t, o.Status, restored.Status)
	assert.Equal(t, o.Code, restored.Code)
	assert.Equal(t, o.Subject, restored.Subject)
	assert.Equal(t, o.PatientID, restored.PatientID)
	assert.Equal(t, o.EffectiveTime, restored.EffectiveTime)
	assert.Equal(t, o.Value, restored.Value)
	assert.Equal(t, o.ObservationType, restored.ObservationType)
}
