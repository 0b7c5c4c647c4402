// Package model provides the internal flattened representation of the FHIR
// resources handled by the platform (Patient, Observation, Prediction).
// Instances are value objects: once validated they are never mutated in
// place; an update constructs a new version that replaces the stored record.
package model

// Coding represents a code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept represents a concept with one or more codings and
// optional free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// FirstCode returns the code of the first coding, or the fallback when the
// concept carries no codings.
func (c CodeableConcept) FirstCode(fallback string) string {
	if len(c.Coding) > 0 && c.Coding[0].Code != "" {
		return c.Coding[0].Code
	}
	return fallback
}

// Quantity represents a measured amount with a unit.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// Identifier represents a resource identifier such as an MRN or SSN.
type Identifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
	Type   string `json:"type,omitempty"`
	Use    string `json:"use,omitempty"`
}

// HumanName represents a person's name.
type HumanName struct {
	Family string   `json:"family"`
	Given  []string `json:"given"`
	Prefix []string `json:"prefix,omitempty"`
	Suffix []string `json:"suffix,omitempty"`
	Use    string   `json:"use,omitempty"` // usual | official | temp | nickname | anonymous | old | maiden
}

// Address represents a postal address.
type Address struct {
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Country    string   `json:"country,omitempty"`
	Use        string   `json:"use,omitempty"` // home | work | temp | old | billing
}

// ContactPoint represents a contact detail such as a phone number or email.
type ContactPoint struct {
	System string `json:"system"` // phone | fax | email | pager | url | sms | other
	Value  string `json:"value"`
	Use    string `json:"use,omitempty"`
	Rank   int    `json:"rank,omitempty"`
}

// Reference represents a reference to another resource, e.g. "Patient/123".
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Period represents a time interval with ISO-8601 bounds.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Common identifier systems.
const (
	SystemSSN      = "http://hl7.org/fhir/sid/us-ssn"
	SystemMedicare = "http://hl7.org/fhir/sid/us-medicare"
	SystemNPI      = "http://hl7.org/fhir/sid/us-npi"
	SystemMRN      = "http://hospital.example.org/mrn"
	SystemLOINC    = "http://loinc.org"
	SystemSNOMED   = "http://snomed.info/sct"
	SystemUCUM     = "http://unitsofmeasure.org"
)

// Administrative genders.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// ValidGender reports whether g is one of the administrative gender codes.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// Observation statuses.
const (
	StatusRegistered     = "registered"
	StatusPreliminary    = "preliminary"
	StatusFinal          = "final"
	StatusAmended        = "amended"
	StatusCorrected      = "corrected"
	StatusCancelled      = "cancelled"
	StatusEnteredInError = "entered-in-error"
	StatusUnknown        = "unknown"
)

// ValidObservationStatus reports whether s is a known observation status.
func ValidObservationStatus(s string) bool {
	switch s {
	case StatusRegistered, StatusPreliminary, StatusFinal, StatusAmended,
		StatusCorrected, StatusCancelled, StatusEnteredInError, StatusUnknown:
		return true
	}
	return false
}

// Prediction statuses.
const (
	PredictionPending   = "pending"
	PredictionCompleted = "completed"
	PredictionFailed    = "failed"
)

// ValidPredictionStatus reports whether s is a known prediction status.
func ValidPredictionStatus(s string) bool {
	switch s {
	case PredictionPending, PredictionCompleted, PredictionFailed:
		return true
	}
	return false
}
