package codec

import (
	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// DecodeObservation maps raw JSON onto the internal Observation model.
func DecodeObservation(data []byte) (model.Observation, error) {
	raw, err := parseObject("Observation", data)
	if err != nil {
		return model.Observation{}, err
	}
	return DecodeObservationObject(raw)
}

// DecodeObservationObject maps a decoded wire Observation onto the internal
// model.
//
// patient_id is derived from subject.reference only when it matches the
// "Patient/" prefix; anything else leaves it empty for the validator to
// reject. observation_type is the code of the first coding under
// code.coding, defaulting to "unknown". The decoder substitutes defaults
// for missing optional data and never rejects on semantic grounds.
func DecodeObservationObject(raw map[string]any) (model.Observation, error) {
	var category []model.CodeableConcept
	categoryList, err := requireList("Observation", raw, "category")
	if err != nil {
		return model.Observation{}, err
	}
	for _, v := range categoryList {
		m, ok := v.(map[string]any)
		if !ok {
			return model.Observation{}, &DecodeError{Resource: "Observation", Field: "category", Message: "entries must be objects"}
		}
		c, err := decodeConcept("Observation", "category", m)
		if err != nil {
			return model.Observation{}, err
		}
		category = append(category, c)
	}

	code := model.CodeableConcept{}
	if m, ok := getMap(raw, "code"); ok {
		code, err = decodeConcept("Observation", "code", m)
		if err != nil {
			return model.Observation{}, err
		}
	}

	subject := model.Reference{}
	if m, ok := getMap(raw, "subject"); ok {
		subject = model.Reference{
			Reference: getString(m, "reference", ""),
			Display:   getString(m, "display", ""),
		}
	}

	value, err := resolveValue("Observation", raw)
	if err != nil {
		return model.Observation{}, err
	}

	var dataAbsentReason *model.CodeableConcept
	if m, ok := getMap(raw, "dataAbsentReason"); ok {
		c, err := decodeConcept("Observation", "dataAbsentReason", m)
		if err != nil {
			return model.Observation{}, err
		}
		dataAbsentReason = &c
	}

	componentList, err := requireList("Observation", raw, "component")
	if err != nil {
		return model.Observation{}, err
	}
	var components []model.ObservationComponent
	for _, v := range componentList {
		m, ok := v.(map[string]any)
		if !ok {
			return model.Observation{}, &DecodeError{Resource: "Observation", Field: "component", Message: "entries must be objects"}
		}
		componentCode := model.CodeableConcept{}
		if cm, ok := getMap(m, "code"); ok {
			componentCode, err = decodeConcept("Observation", "component.code", cm)
			if err != nil {
				return model.Observation{}, err
			}
		}
		componentValue, err := resolveValue("Observation", m)
		if err != nil {
			return model.Observation{}, err
		}
		components = append(components, model.ObservationComponent{
			Code:  componentCode,
			Value: componentValue,
		})
	}

	var effectivePeriod *model.Period
	if m, ok := getMap(raw, "effectivePeriod"); ok {
		effectivePeriod = &model.Period{
			Start: getString(m, "start", ""),
			End:   getString(m, "end", ""),
		}
	}

	now := model.Now()
	effectiveTime := getString(raw, "effectiveDateTime", "")
	if effectiveTime == "" && effectivePeriod == nil {
		effectiveTime = now
	}

	return model.NewObservation(model.Observation{
		ObservationID:    getString(raw, "id", ""),
		Status:           getString(raw, "status", model.StatusUnknown),
		Category:         category,
		Code:             code,
		Subject:          subject,
		PatientID:        model.PatientIDFromReference(subject.Reference),
		EffectiveTime:    effectiveTime,
		EffectivePeriod:  effectivePeriod,
		Issued:           getString(raw, "issued", now),
		Value:            value,
		DataAbsentReason: dataAbsentReason,
		Components:       components,
		ObservationType:  code.FirstCode("unknown"),
	}), nil
}

// EncodeObservation maps an Observation back to its wire FHIR shape.
// Exactly one value[x] field is emitted, corresponding to the active
// variant; absent optional fields are omitted keys.
func EncodeObservation(o model.Observation) map[string]any {
	out := map[string]any{
		"resourceType": "Observation",
		"id":           o.ObservationID,
		"meta": map[string]any{
			"versionId":   "1",
			"lastUpdated": o.UpdatedAt,
		},
		"status": o.Status,
	}

	if len(o.Category) > 0 {
		category := make([]any, 0, len(o.Category))
		for _, c := range o.Category {
			category = append(category, encodeConcept(c))
		}
		out["category"] = category
	}

	out["code"] = encodeConcept(o.Code)

	if o.Subject.Reference != "" {
		subject := map[string]any{"reference": o.Subject.Reference}
		if o.Subject.Display != "" {
			subject["display"] = o.Subject.Display
		}
		out["subject"] = subject
	}

	if o.EffectiveTime != "" {
		out["effectiveDateTime"] = o.EffectiveTime
	}
	if o.EffectivePeriod != nil {
		period := map[string]any{}
		if o.EffectivePeriod.Start != "" {
			period["start"] = o.EffectivePeriod.Start
		}
		if o.EffectivePeriod.End != "" {
			period["end"] = o.EffectivePeriod.End
		}
		out["effectivePeriod"] = period
	}
	if o.Issued != "" {
		out["issued"] = o.Issued
	}

	encodeValue(out, o.Value)

	if o.DataAbsentReason != nil {
		out["dataAbsentReason"] = encodeConcept(*o.DataAbsentReason)
	}

	if len(o.Components) > 0 {
		components := make([]any, 0, len(o.Components))
		for _, c := range o.Components {
			m := map[string]any{"code": encodeConcept(c.Code)}
			encodeValue(m, c.Value)
			components = append(components, m)
		}
		out["component"] = components
	}

	return out
}
