package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date grammar used for birth and deceased dates.
const DateLayout = "2006-01-02"

// Patient is the internal flattened representation of a FHIR Patient.
// Version doubles as the storage sort key: it is the write timestamp, so
// "latest version" reads sort on it descending.
type Patient struct {
	PatientID     string         `json:"patient_id"`
	Version       string         `json:"version"`
	Active        bool           `json:"active"`
	Identifiers   []Identifier   `json:"identifiers"`
	Names         []HumanName    `json:"names"`
	Gender        string         `json:"gender"`
	BirthDate     string         `json:"birth_date"`
	Deceased      bool           `json:"deceased"`
	DeceasedDate  string         `json:"deceased_date,omitempty"`
	Addresses     []Address      `json:"addresses,omitempty"`
	Telecoms      []ContactPoint `json:"telecoms,omitempty"`
	MaritalStatus string         `json:"marital_status,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// NewPatient constructs a Patient, generating the id and bookkeeping
// timestamps when absent and enforcing the deceased-date invariants: a
// deceased date forces the deceased flag, and it may not precede the birth
// date. Missing gender or birth date is left for the validator to reject;
// construction never substitutes clinical data.
func NewPatient(p Patient) (Patient, error) {
	now := Now()
	if p.PatientID == "" {
		p.PatientID = uuid.New().String()
	}
	if p.Version == "" {
		p.Version = now
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	if p.UpdatedAt == "" || p.UpdatedAt < p.CreatedAt {
		p.UpdatedAt = p.CreatedAt
	}
	if p.DeceasedDate != "" {
		p.Deceased = true
		dd, err := time.Parse(DateLayout, p.DeceasedDate)
		if err != nil {
			return Patient{}, fmt.Errorf("deceased_date: %w", err)
		}
		if p.BirthDate != "" {
			bd, err := time.Parse(DateLayout, p.BirthDate)
			if err == nil && dd.Before(bd) {
				return Patient{}, errors.New("deceased_date cannot be before birth_date")
			}
		}
	}
	return p, nil
}

// NewVersion returns a copy of the patient with a fresh version token and
// updated_at, preserving identity and created_at. This is the only update
// path: stored records are replaced, never mutated.
func (p Patient) NewVersion() Patient {
	now := Now()
	p.Version = now
	p.UpdatedAt = now
	return p
}

// MRN returns the patient's medical record number: the value of the first
// identifier typed "MR" or whose system ends in "/mrn".
func (p Patient) MRN() string {
	for _, id := range p.Identifiers {
		if id.Type == "MR" {
			return id.Value
		}
	}
	for _, id := range p.Identifiers {
		if len(id.System) >= 4 && id.System[len(id.System)-4:] == "/mrn" {
			return id.Value
		}
	}
	return ""
}

// Now returns the current UTC time as the ISO-8601 token used for versions
// and bookkeeping timestamps. Variable so tests can pin the clock.
var Now = func() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
