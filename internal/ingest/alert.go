package ingest

import (
	"fmt"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// vitalRange is the normal band for a vital-sign type. A zero bound means
// that side is unbounded.
type vitalRange struct {
	low  float64
	high float64
}

var vitalRanges = map[string]vitalRange{
	"heart-rate":        {low: 60, high: 100},
	"respiratory-rate":  {low: 12, high: 20},
	"temperature":       {low: 36.0, high: 38.0},
	"oxygen-saturation": {low: 95},
}

// AlertForObservation reports whether the observation is a vital-sign
// measurement outside its normal band, and the alert message if so. Only
// numeric payloads can alert.
func AlertForObservation(o model.Observation) (string, bool) {
	r, ok := vitalRanges[o.ObservationType]
	if !ok {
		return "", false
	}
	v, ok := o.Value.Numeric()
	if !ok {
		return "", false
	}
	switch {
	case r.low > 0 && v < r.low:
		return fmt.Sprintf("%s below normal range: %g", o.ObservationType, v), true
	case r.high > 0 && v > r.high:
		return fmt.Sprintf("%s above normal range: %g", o.ObservationType, v), true
	}
	return "", false
}
