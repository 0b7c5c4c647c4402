package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/ingest"
)

func vitalObs(obsType string, value model.CodeableValue) model.Observation {
	return model.Observation{
		ObservationID:   "o-1",
		PatientID:       "p-1",
		ObservationType: obsType,
		Value:           value,
	}
}

func TestAlertForObservation(t *testing.T) {
	cases := []struct {
		name    string
		obsType string
		value   float64
		message string
	}{
		{"tachycardia", "heart-rate", 120, "heart-rate above normal range: 120"},
		{"bradycardia", "heart-rate", 50, "heart-rate below normal range: 50"},
		{"tachypnea", "respiratory-rate", 28, "respiratory-rate above normal range: 28"},
		{"fever", "temperature", 39.2, "temperature above normal range: 39.2"},
		{"hypothermia", "temperature", 35, "temperature below normal range: 35"},
		{"hypoxia", "oxygen-saturation", 91, "oxygen-saturation below normal range: 91"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := vitalObs(tc.obsType, model.QuantityValue(model.Quantity{Value: tc.value}))
			msg, ok := ingest.AlertForObservation(o)
			require.True(t, ok)
			assert.Equal(t, tc.message, msg)
		})
	}
}

func TestAlertForObservationNormalValues(t *testing.T) {
	for obsType, value := range map[string]float64{
		"heart-rate":        75,
		"respiratory-rate":  16,
		"temperature":       37.0,
		"oxygen-saturation": 98,
	} {
		o := vitalObs(obsType, model.QuantityValue(model.Quantity{Value: value}))
		_, ok := ingest.AlertForObservation(o)
		assert.False(t, ok, obsType)
	}
}

func TestAlertForObservationIgnoresNonVitals(t *testing.T) {
	_, ok := ingest.AlertForObservation(vitalObs("lab-glucose", model.QuantityValue(model.Quantity{Value: 400})))
	assert.False(t, ok)

	_, ok = ingest.AlertForObservation(vitalObs("condition-chf", model.StringValue("active")))
	assert.False(t, ok)
}

func TestAlertForObservationRequiresNumericValue(t *testing.T) {
	_, ok := ingest.AlertForObservation(vitalObs("heart-rate", model.StringValue("fast")))
	assert.False(t, ok)

	_, ok = ingest.AlertForObservation(vitalObs("heart-rate", model.CodeableValue{}))
	assert.False(t, ok)
}

func TestAlertBoundariesAreInclusive(t *testing.T) {
	for obsType, value := range map[string]float64{
		"heart-rate":        100,
		"respiratory-rate":  12,
		"temperature":       36.0,
		"oxygen-saturation": 95,
	} {
		o := vitalObs(obsType, model.QuantityValue(model.Quantity{Value: value}))
		_, ok := ingest.AlertForObservation(o)
		assert.False(t, ok, obsType)
	}
}
