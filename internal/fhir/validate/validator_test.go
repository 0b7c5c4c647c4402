package validate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/fhir/validate"
)

func validPatient() model.Patient {
	return model.Patient{
		PatientID: "p-1",
		Names:     []model.HumanName{{Family: "Smith", Given: []string{"Jane"}}},
		Gender:    model.GenderFemale,
		BirthDate: "1970-06-15",
		Identifiers: []model.Identifier{
			{System: model.SystemMRN, Value: "MRN-001", Type: "MR"},
		},
	}
}

func validObservation() model.Observation {
	return model.Observation{
		ObservationID: "o-1",
		Status:        model.StatusFinal,
		Code: model.CodeableConcept{Coding: []model.Coding{
			{System: model.SystemLOINC, Code: "heart-rate"},
		}},
		Subject:       model.Reference{Reference: "Patient/p-1"},
		PatientID:     "p-1",
		EffectiveTime: "2024-03-01T10:00:00Z",
		Value:         model.QuantityValue(model.Quantity{Value: 72, Unit: "/min"}),
	}
}

func violations(t *testing.T, err error) []string {
	t.Helper()
	var verr *validate.ValidationError
	require.True(t, errors.As(err, &verr))
	return verr.Violations
}

func TestValidPatientPasses(t *testing.T) {
	assert.NoError(t, validate.ValidatePatient(validPatient()))
}

func TestValidatePatientAggregatesAllViolations(t *testing.T) {
	err := validate.ValidatePatient(model.Patient{})
	require.Error(t, err)

	got := violations(t, err)
	assert.Equal(t, []string{
		"patient id is required",
		"patient must have at least one name",
		"patient gender is required",
		"patient birth date is required",
		"patient must have at least one identifier",
	}, got)
}

func TestValidatePatientNameRules(t *testing.T) {
	p := validPatient()
	p.Names = []model.HumanName{{}}

	got := violations(t, validate.ValidatePatient(p))
	assert.Contains(t, got, "patient name must have a family name")
	assert.Contains(t, got, "patient name must have at least one given name")
}

func TestValidatePatientGenderEnum(t *testing.T) {
	p := validPatient()
	p.Gender = "M"

	got := violations(t, validate.ValidatePatient(p))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "gender")
}

func TestValidatePatientBirthDateFormat(t *testing.T) {
	p := validPatient()
	p.BirthDate = "06/15/1970"

	got := violations(t, validate.ValidatePatient(p))
	require.Len(t, got, 1)
	assert.Equal(t, "patient birth date must be in YYYY-MM-DD format", got[0])
}

func TestValidatePatientIdentifierSystems(t *testing.T) {
	cases := []struct {
		name   string
		system string
		value  string
		valid  bool
	}{
		{"ssn valid", model.SystemSSN, "123-45-6789", true},
		{"ssn missing dashes", model.SystemSSN, "123456789", false},
		{"ssn too short", model.SystemSSN, "123-45-678", false},
		{"medicare valid", model.SystemMedicare, "123456789A", true},
		{"medicare lowercase suffix", model.SystemMedicare, "123456789a", false},
		{"medicare no suffix", model.SystemMedicare, "123456789", false},
		{"npi valid", model.SystemNPI, "1234567890", true},
		{"npi too long", model.SystemNPI, "12345678901", false},
		{"mrn any non-empty", model.SystemMRN, "MRN-xyz", true},
		{"unknown system any non-empty", "http://other.example.org/ids", "whatever", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, validate.ValidIdentifier(tc.value, tc.system))
		})
	}

	assert.False(t, validate.ValidIdentifier("", model.SystemMRN))
}

func TestValidatePatientAcceptsAnyNonEmptyIdentifierValue(t *testing.T) {
	// The patient rules only require system and value to be present. The
	// per-system grammar in ValidIdentifier is an ad-hoc check, not part of
	// resource validation.
	p := validPatient()
	p.Identifiers = []model.Identifier{
		{System: model.SystemSSN, Value: "123456789"},
		{System: model.SystemNPI, Value: "not-ten-digits"},
	}
	assert.NoError(t, validate.ValidatePatient(p))

	p.Identifiers = []model.Identifier{{System: model.SystemSSN, Value: ""}}
	got := violations(t, validate.ValidatePatient(p))
	require.Len(t, got, 1)
	assert.Equal(t, "patient identifier must have a value", got[0])
}

func TestValidatePatientDeceasedRules(t *testing.T) {
	p := validPatient()
	p.Deceased = true
	p.DeceasedDate = "1960-01-01"

	got := violations(t, validate.ValidatePatient(p))
	require.Len(t, got, 1)
	assert.Equal(t, "patient deceased date cannot precede birth date", got[0])

	p.DeceasedDate = "not-a-date"
	got = violations(t, validate.ValidatePatient(p))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "YYYY-MM-DD")
}

func TestValidObservationPasses(t *testing.T) {
	assert.NoError(t, validate.ValidateObservation(validObservation()))
}

func TestValidateObservationAggregatesAllViolations(t *testing.T) {
	err := validate.ValidateObservation(model.Observation{})
	require.Error(t, err)

	got := violations(t, err)
	assert.Equal(t, []string{
		"observation id is required",
		"observation status is required",
		"observation code must have at least one coding",
		"observation subject reference is required",
		"observation must have an effective date/time or period",
		"observation must have a value, data absent reason, or component",
	}, got)
}

func TestValidateObservationStatusEnum(t *testing.T) {
	o := validObservation()
	o.Status = "done"

	got := violations(t, validate.ValidateObservation(o))
	require.Len(t, got, 1)
	assert.Equal(t, "observation status is invalid", got[0])
}

func TestValidateObservationCodingRules(t *testing.T) {
	o := validObservation()
	o.Code = model.CodeableConcept{Coding: []model.Coding{{Display: "Heart rate"}}}

	got := violations(t, validate.ValidateObservation(o))
	assert.Contains(t, got, "observation code coding must have a system")
	assert.Contains(t, got, "observation code coding must have a code")
}

func TestValidateObservationSubjectMustBePatient(t *testing.T) {
	o := validObservation()
	o.Subject.Reference = "Group/g-1"
	o.PatientID = ""

	got := violations(t, validate.ValidateObservation(o))
	require.Len(t, got, 1)
	assert.Equal(t, "observation subject reference must be a Patient", got[0])
}

func TestValidateObservationEffectiveRules(t *testing.T) {
	o := validObservation()
	o.EffectiveTime = "March 1st"

	got := violations(t, validate.ValidateObservation(o))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "ISO format")

	// A period alone satisfies the requirement.
	o.EffectiveTime = ""
	o.EffectivePeriod = &model.Period{Start: "2024-03-01T10:00:00Z"}
	assert.NoError(t, validate.ValidateObservation(o))
}

func TestValidateObservationValuePresence(t *testing.T) {
	o := validObservation()
	o.Value = model.CodeableValue{}

	got := violations(t, validate.ValidateObservation(o))
	require.Len(t, got, 1)
	assert.Equal(t, "observation must have a value, data absent reason, or component", got[0])

	o.DataAbsentReason = &model.CodeableConcept{Text: "not performed"}
	assert.NoError(t, validate.ValidateObservation(o))
}

func TestValidISOTimestamp(t *testing.T) {
	valid := []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00.123456789Z",
		"2024-03-01T10:00:00+02:00",
		"2024-03-01T10:00:00",
		"2024-03-01",
	}
	for _, s := range valid {
		assert.True(t, validate.ValidISOTimestamp(s), s)
	}

	invalid := []string{"", "March 1st", "2024-13-01", "10:00:00"}
	for _, s := range invalid {
		assert.False(t, validate.ValidISOTimestamp(s), s)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &validate.ValidationError{
		ResourceType: "Patient",
		Violations:   []string{"a", "b"},
	}
	assert.Equal(t, "Patient validation failed: a; b", err.Error())
}
