package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

const wirePatient = `{
	"resourceType": "Patient",
	"id": "p-1",
	"active": true,
	"identifier": [
		{"system": "http://hospital.example.org/mrn", "value": "MRN-001",
		 "type": {"coding": [{"code": "MR"}]}},
		{"system": "http://hl7.org/fhir/sid/us-ssn", "value": "123-45-6789"}
	],
	"name": [{"family": "Smith", "given": ["Jane", "Q"], "prefix": ["Dr"]}],
	"gender": "female",
	"birthDate": "1970-06-15",
	"address": [{"line": ["1 Main St"], "city": "Springfield", "state": "IL", "postalCode": "62701"}],
	"telecom": [{"system": "phone", "value": "555-0100", "rank": 1}],
	"maritalStatus": {"coding": [{"code": "M"}]}
}`

func TestDecodePatient(t *testing.T) {
	p, err := codec.DecodePatient([]byte(wirePatient))
	require.NoError(t, err)

	assert.Equal(t, "p-1", p.PatientID)
	assert.True(t, p.Active)
	assert.Equal(t, model.GenderFemale, p.Gender)
	assert.Equal(t, "1970-06-15", p.BirthDate)
	assert.Equal(t, "M", p.MaritalStatus)

	require.Len(t, p.Identifiers, 2)
	assert.Equal(t, "MR", p.Identifiers[0].Type)
	assert.Equal(t, "MRN-001", p.MRN())

	require.Len(t, p.Names, 1)
	assert.Equal(t, "Smith", p.Names[0].Family)
	assert.Equal(t, []string{"Jane", "Q"}, p.Names[0].Given)
	assert.Equal(t, "official", p.Names[0].Use)

	require.Len(t, p.Addresses, 1)
	assert.Equal(t, "home", p.Addresses[0].Use)
	require.Len(t, p.Telecoms, 1)
	assert.Equal(t, 1, p.Telecoms[0].Rank)
}

func TestDecodePatientDefaults(t *testing.T) {
	p, err := codec.DecodePatient([]byte(`{"resourceType": "Patient"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, p.PatientID)
	assert.NotEmpty(t, p.Version)
	assert.True(t, p.Active)
	assert.Equal(t, model.GenderUnknown, p.Gender)
	assert.Empty(t, p.BirthDate)
	assert.False(t, p.Deceased)
}

func TestDecodePatientDeceasedDatePrecedence(t *testing.T) {
	// A deceasedDateTime wins even when deceasedBoolean says otherwise.
	p, err := codec.DecodePatient([]byte(`{
		"resourceType": "Patient",
		"deceasedBoolean": false,
		"deceasedDateTime": "2020-01-01"
	}`))
	require.NoError(t, err)
	assert.True(t, p.Deceased)
	assert.Equal(t, "2020-01-01", p.DeceasedDate)

	p, err = codec.DecodePatient([]byte(`{"resourceType": "Patient", "deceasedBoolean": true}`))
	require.NoError(t, err)
	assert.True(t, p.Deceased)
	assert.Empty(t, p.DeceasedDate)
}

func TestDecodePatientMalformedShapes(t *testing.T) {
	var decodeErr *codec.DecodeError

	_, err := codec.DecodePatient([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.True(t, errors.As(err, &decodeErr))

	_, err = codec.DecodePatient([]byte(`{"resourceType": "Patient", "name": "Smith"}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "name", decodeErr.Field)

	_, err = codec.DecodePatient([]byte(`{"resourceType": "Patient", "identifier": ["nope"]}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "identifier", decodeErr.Field)
}

func TestPatientRoundTrip(t *testing.T) {
	p, err := codec.DecodePatient([]byte(wirePatient))
	require.NoError(t, err)

	restored, err := codec.DecodePatientObject(codec.EncodePatient(p))
	require.NoError(t, err)

	assert.Equal(t, p.PatientID, restored.PatientID)
	assert.Equal(t, p.Version, restored.Version)
	assert.Equal(t, p.Gender, restored.Gender)
	assert.Equal(t, p.BirthDate, restored.BirthDate)
	assert.Equal(t, p.Identifiers, restored.Identifiers)
	assert.Equal(t, p.Names, restored.Names)
	assert.Equal(t, p.Addresses, restored.Addresses)
	assert.Equal(t, p.Telecoms, restored.Telecoms)
	assert.Equal(t, p.MaritalStatus, restored.MaritalStatus)
	assert.Equal(t, p.Deceased, restored.Deceased)
}

func TestEncodePatientDeceasedExclusivity(t *testing.T) {
	out := codec.EncodePatient(model.Patient{PatientID: "p-1", Deceased: true, DeceasedDate: "2020-01-01"})
	assert.Equal(t, "2020-01-01", out["deceasedDateTime"])
	_, hasBool := out["deceasedBoolean"]
	assert.False(t, hasBool)

	out = codec.EncodePatient(model.Patient{PatientID: "p-1"})
	_, hasDate := out["deceasedDateTime"]
	assert.False(t, hasDate)
	assert.Equal(t, false, out["deceasedBoolean"])
}
