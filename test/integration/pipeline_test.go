// Package integration exercises the normalization pipeline end to end:
// wire JSON through the codec, the validator, feature extraction and risk
// scoring, without any infrastructure attached.
package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/fhir/validate"
	"github.com/medconnect/go-medconnect/internal/ml/features"
	"github.com/medconnect/go-medconnect/internal/ml/risk"
)

const admissionBundle = `{
	"resourceType": "Bundle",
	"type": "transaction",
	"entry": [
		{"resource": {
			"resourceType": "Patient",
			"id": "p-100",
			"identifier": [{"system": "http://hospital.example.org/mrn", "value": "MRN-100",
				"type": {"coding": [{"code": "MR"}]}}],
			"name": [{"family": "Garcia", "given": ["Maria"]}],
			"gender": "female",
			"birthDate": "1950-04-20"
		}},
		{"resource": {
			"resourceType": "Observation",
			"id": "obs-hr",
			"status": "final",
			"code": {"coding": [{"system": "http://loinc.org", "code": "heart-rate"}]},
			"subject": {"reference": "Patient/p-100"},
			"effectiveDateTime": "2024-03-01T10:00:00Z",
			"valueQuantity": {"value": 118, "unit": "/min"}
		}},
		{"resource": {
			"resourceType": "Observation",
			"id": "obs-spo2",
			"status": "final",
			"code": {"coding": [{"system": "http://loinc.org", "code": "oxygen-saturation"}]},
			"subject": {"reference": "Patient/p-100"},
			"effectiveDateTime": "2024-03-01T10:05:00Z",
			"valueQuantity": {"value": 89, "unit": "%"}
		}},
		{"resource": {
			"resourceType": "Observation",
			"id": "obs-chf",
			"status": "final",
			"code": {"coding": [{"system": "http://snomed.info/sct", "code": "condition-chf"}]},
			"subject": {"reference": "Patient/p-100"},
			"effectiveDateTime": "2024-03-01T10:10:00Z",
			"valueCodeableConcept": {"coding": [{"code": "active"}], "text": "Congestive heart failure"}
		}}
	]
}`

func TestBundleToRiskScore(t *testing.T) {
	entries, err := codec.DecodeBundle([]byte(admissionBundle))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var patient model.Patient
	var observations []model.Observation

	for _, entry := range entries {
		switch entry.ResourceType {
		case "Patient":
			p, err := codec.DecodePatientObject(entry.Resource)
			require.NoError(t, err)
			require.NoError(t, validate.ValidatePatient(p))
			patient = p
		case "Observation":
			o, err := codec.DecodeObservationObject(entry.Resource)
			require.NoError(t, err)
			require.NoError(t, validate.ValidateObservation(o))
			observations = append(observations, o)
		default:
			t.Fatalf("unexpected resource type %q", entry.ResourceType)
		}
	}

	require.Len(t, observations, 3)
	for _, o := range observations {
		assert.Equal(t, patient.PatientID, o.PatientID)
	}

	clock := func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) }
	fs := features.NewExtractorAt(clock).Extract(patient, observations)

	require.NotNil(t, fs.Demographics.Age)
	assert.Equal(t, 74, *fs.Demographics.Age)
	assert.Len(t, fs.VitalSigns["heart-rate"], 1)
	assert.Len(t, fs.VitalSigns["oxygen-saturation"], 1)
	assert.Equal(t, []string{"chf"}, fs.Conditions)

	result := risk.NewPredictor().Predict(fs)

	// heart_rate_high 0.15 + oxygen_saturation_low 0.25 + chf 0.25 +
	// age 0.74*0.05 + gender_female -0.01.
	assert.InDelta(t, 0.677, result.Probability, 1e-9)
	assert.Equal(t, risk.LevelMedium, result.Prediction)
	require.NotEmpty(t, result.Factors)
	assert.Equal(t, "chf", result.Factors[0].Name)
}

func TestInvalidBundleEntryIsIsolated(t *testing.T) {
	entries, err := codec.DecodeBundle([]byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Observation", "id": "bad", "status": "final"}},
			{"resource": {
				"resourceType": "Observation",
				"id": "good",
				"status": "final",
				"code": {"coding": [{"system": "http://loinc.org", "code": "temperature"}]},
				"subject": {"reference": "Patient/p-100"},
				"effectiveDateTime": "2024-03-01T10:00:00Z",
				"valueQuantity": {"value": 37.0, "unit": "Cel"}
			}}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var failed, succeeded int
	for _, entry := range entries {
		o, err := codec.DecodeObservationObject(entry.Resource)
		require.NoError(t, err)
		if err := validate.ValidateObservation(o); err != nil {
			failed++
			continue
		}
		succeeded++
	}

	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
}
