// Package features flattens a patient and their observation history into the
// feature set consumed by the scoring models.
//
// Routing is keyed entirely on observation_type: the five vital-sign codes
// are matched exactly, "lab-" codes collect lab series, "condition-" and
// "medication-" codes collect presence flags with the prefix stripped, and
// anything else is ignored. Only quantity and integer payloads yield numeric
// data points; string, boolean and concept values are dropped without
// comment, matching the tolerant ingest posture upstream.
package features

import (
	"strings"
	"time"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// DataPoint is one numeric measurement with its storage timestamp.
type DataPoint struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// Demographics describes the patient independent of observations. Age is nil
// when the birth date is absent or unparseable.
type Demographics struct {
	Gender   string `json:"gender"`
	Age      *int   `json:"age"`
	Deceased bool   `json:"deceased"`
}

// FeatureSet is the model input: demographics plus per-type measurement
// series and presence sets.
type FeatureSet struct {
	Demographics Demographics           `json:"demographics"`
	VitalSigns   map[string][]DataPoint `json:"vital_signs"`
	LabResults   map[string][]DataPoint `json:"lab_results"`
	Conditions   []string               `json:"conditions"`
	Medications  []string               `json:"medications"`
}

var vitalTypes = map[string]bool{
	"heart-rate":        true,
	"blood-pressure":    true,
	"respiratory-rate":  true,
	"temperature":       true,
	"oxygen-saturation": true,
}

// Extractor builds feature sets. The clock is injectable so age computation
// is deterministic under test.
type Extractor struct {
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// NewExtractorAt pins the extractor's clock.
func NewExtractorAt(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

// Extract flattens the patient and observations into a FeatureSet. The
// series maps are always non-nil and the presence slices preserve first-seen
// order with duplicates collapsed.
func (e *Extractor) Extract(p model.Patient, observations []model.Observation) FeatureSet {
	fs := FeatureSet{
		Demographics: Demographics{
			Gender:   p.Gender,
			Age:      e.age(p.BirthDate),
			Deceased: p.Deceased,
		},
		VitalSigns: map[string][]DataPoint{},
		LabResults: map[string][]DataPoint{},
	}

	seenConditions := map[string]bool{}
	seenMedications := map[string]bool{}

	for _, obs := range observations {
		obsType := obs.ObservationType
		if obsType == "" {
			obsType = "unknown"
		}
		switch {
		case vitalTypes[obsType]:
			if v, ok := obs.Value.Numeric(); ok {
				fs.VitalSigns[obsType] = append(fs.VitalSigns[obsType], DataPoint{Value: v, Timestamp: obs.Timestamp})
			}
		case strings.HasPrefix(obsType, "lab-"):
			if v, ok := obs.Value.Numeric(); ok {
				fs.LabResults[obsType] = append(fs.LabResults[obsType], DataPoint{Value: v, Timestamp: obs.Timestamp})
			}
		case strings.HasPrefix(obsType, "condition-"):
			name := strings.TrimPrefix(obsType, "condition-")
			if !seenConditions[name] {
				seenConditions[name] = true
				fs.Conditions = append(fs.Conditions, name)
			}
		case strings.HasPrefix(obsType, "medication-"):
			name := strings.TrimPrefix(obsType, "medication-")
			if !seenMedications[name] {
				seenMedications[name] = true
				fs.Medications = append(fs.Medications, name)
			}
		}
	}

	return fs
}

// age is the calendar-year difference between now and the birth date. Only
// the year component participates; a mid-year birthday does not round down.
func (e *Extractor) age(birthDate string) *int {
	if birthDate == "" {
		return nil
	}
	bd, err := time.Parse(model.DateLayout, birthDate)
	if err != nil {
		return nil
	}
	years := e.now().Year() - bd.Year()
	return &years
}

// LatestValue returns the value of the data point with the greatest
// timestamp, relying on the lexicographic ordering of the storage timestamp
// tokens.
func LatestValue(points []DataPoint) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	latest := points[0]
	for _, p := range points[1:] {
		if p.Timestamp > latest.Timestamp {
			latest = p
		}
	}
	return latest.Value, true
}
