// Package validate enforces the semantic rules on decoded resources. A
// validation run never stops at the first problem: every rule is checked and
// all violations are reported together, in rule order, so a caller fixing a
// bad payload sees the complete picture in one round trip.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// ValidationError carries the full ordered list of rule violations for one
// resource.
type ValidationError struct {
	ResourceType string
	Violations   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.ResourceType, strings.Join(e.Violations, "; "))
}

// ValidatePatient checks every Patient rule and returns a ValidationError
// aggregating all violations, or nil when the patient is valid.
func ValidatePatient(p model.Patient) error {
	var violations []string

	if p.PatientID == "" {
		violations = append(violations, "patient id is required")
	}

	if len(p.Names) == 0 {
		violations = append(violations, "patient must have at least one name")
	} else {
		for _, n := range p.Names {
			if n.Family == "" {
				violations = append(violations, "patient name must have a family name")
			}
			if len(n.Given) == 0 {
				violations = append(violations, "patient name must have at least one given name")
			}
		}
	}

	if p.Gender == "" {
		violations = append(violations, "patient gender is required")
	} else if !model.ValidGender(p.Gender) {
		violations = append(violations, "patient gender must be 'male', 'female', 'other', or 'unknown'")
	}

	if p.BirthDate == "" {
		violations = append(violations, "patient birth date is required")
	} else if !ValidDate(p.BirthDate, model.DateLayout) {
		violations = append(violations, "patient birth date must be in YYYY-MM-DD format")
	}

	if len(p.Identifiers) == 0 {
		violations = append(violations, "patient must have at least one identifier")
	} else {
		for _, id := range p.Identifiers {
			if id.System == "" {
				violations = append(violations, "patient identifier must have a system")
			}
			if id.Value == "" {
				violations = append(violations, "patient identifier must have a value")
			}
		}
	}

	if p.DeceasedDate != "" {
		dd, derr := time.Parse(model.DateLayout, p.DeceasedDate)
		if derr != nil {
			violations = append(violations, "patient deceased date must be in YYYY-MM-DD format")
		} else if p.BirthDate != "" {
			if bd, berr := time.Parse(model.DateLayout, p.BirthDate); berr == nil && dd.Before(bd) {
				violations = append(violations, "patient deceased date cannot precede birth date")
			}
		}
	}

	if len(violations) > 0 {
		return &ValidationError{ResourceType: "Patient", Violations: violations}
	}
	return nil
}

// ValidateObservation checks every Observation rule and returns a
// ValidationError aggregating all violations, or nil when valid.
func ValidateObservation(o model.Observation) error {
	var violations []string

	if o.ObservationID == "" {
		violations = append(violations, "observation id is required")
	}

	if o.Status == "" {
		violations = append(violations, "observation status is required")
	} else if !model.ValidObservationStatus(o.Status) {
		violations = append(violations, "observation status is invalid")
	}

	if len(o.Code.Coding) == 0 {
		violations = append(violations, "observation code must have at least one coding")
	} else {
		for _, c := range o.Code.Coding {
			if c.System == "" {
				violations = append(violations, "observation code coding must have a system")
			}
			if c.Code == "" {
				violations = append(violations, "observation code coding must have a code")
			}
		}
	}

	if o.Subject.Reference == "" {
		violations = append(violations, "observation subject reference is required")
	} else if o.PatientID == "" {
		violations = append(violations, "observation subject reference must be a Patient")
	}

	if o.EffectiveTime == "" && o.EffectivePeriod == nil {
		violations = append(violations, "observation must have an effective date/time or period")
	} else if o.EffectiveTime != "" && !ValidISOTimestamp(o.EffectiveTime) {
		violations = append(violations, "observation effective date/time must be in ISO format")
	}

	if !o.HasValue() {
		violations = append(violations, "observation must have a value, data absent reason, or component")
	}

	if len(violations) > 0 {
		return &ValidationError{ResourceType: "Observation", Violations: violations}
	}
	return nil
}
