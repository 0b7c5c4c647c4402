package model_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// pinClock replaces the model clock with a sequence of distinct tokens and
// returns a restore function.
func pinClock(tokens ...string) func() {
	orig := model.Now
	i := 0
	model.Now = func() string {
		if i < len(tokens) {
			tok := tokens[i]
			i++
			return tok
		}
		return tokens[len(tokens)-1]
	}
	return func() { model.Now = orig }
}

func validPatient() model.Patient {
	return model.Patient{
		Names:     []model.HumanName{{Family: "Smith", Given: []string{"Jane"}}},
		Gender:    model.GenderFemale,
		BirthDate: "1970-06-15",
		Identifiers: []model.Identifier{
			{System: model.SystemMRN, Value: "MRN-001", Type: "MR"},
		},
	}
}

func TestNewPatientGeneratesIdentityAndTimestamps(t *testing.T) {
	defer pinClock("2024-03-01T10:00:00Z")()

	p, err := model.NewPatient(validPatient())
	require.NoError(t, err)

	assert.NotEmpty(t, p.PatientID)
	assert.Equal(t, "2024-03-01T10:00:00Z", p.Version)
	assert.Equal(t, "2024-03-01T10:00:00Z", p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestNewPatientDeceasedDateForcesFlag(t *testing.T) {
	in := validPatient()
	in.DeceasedDate = "2020-01-01"
	in.Deceased = false

	p, err := model.NewPatient(in)
	require.NoError(t, err)
	assert.True(t, p.Deceased)
}

func TestNewPatientRejectsDeceasedBeforeBirth(t *testing.T) {
	in := validPatient()
	in.DeceasedDate = "1960-01-01"

	_, err := model.NewPatient(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deceased_date")
}

func TestNewPatientRejectsMalformedDeceasedDate(t *testing.T) {
	in := validPatient()
	in.DeceasedDate = "01/01/2020"

	_, err := model.NewPatient(in)
	require.Error(t, err)
}

func TestNewVersionPreservesIdentity(t *testing.T) {
	defer pinClock("2024-03-01T10:00:00Z", "2024-03-01T11:00:00Z")()

	p, err := model.NewPatient(validPatient())
	require.NoError(t, err)

	next := p.NewVersion()
	assert.Equal(t, p.PatientID, next.PatientID)
	assert.Equal(t, p.CreatedAt, next.CreatedAt)
	assert.Equal(t, "2024-03-01T11:00:00Z", next.Version)
	assert.Greater(t, next.Version, p.Version)
}

func TestMRNPrefersTypedIdentifier(t *testing.T) {
	p := model.Patient{Identifiers: []model.Identifier{
		{System: model.SystemSSN, Value: "123-45-6789"},
		{System: "http://other.example.org/ids", Value: "X-1", Type: "MR"},
		{System: model.SystemMRN, Value: "MRN-9"},
	}}
	assert.Equal(t, "X-1", p.MRN())
}

func TestMRNFallsBackToSystemSuffix(t *testing.T) {
	p := model.Patient{Identifiers: []model.Identifier{
		{System: model.SystemSSN, Value: "123-45-6789"},
		{System: model.SystemMRN, Value: "MRN-9"},
	}}
	assert.Equal(t, "MRN-9", p.MRN())

	assert.Empty(t, model.Patient{}.MRN())
}

func TestVersionTokensSortChronologically(t *testing.T) {
	// The version token doubles as the storage sort key, so later writes
	// must compare greater as strings.
	earlier := "2024-03-01T10:00:00.000000001Z"
	later := "2024-03-01T10:00:00.000000002Z"
	assert.True(t, later > earlier, fmt.Sprintf("%s should sort after %s", later, earlier))
}
