package codec

import (
	"github.com/google/uuid"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// DecodePatient maps raw JSON onto the internal Patient model.
func DecodePatient(data []byte) (model.Patient, error) {
	raw, err := parseObject("Patient", data)
	if err != nil {
		return model.Patient{}, err
	}
	return DecodePatientObject(raw)
}

// DecodePatientObject maps a decoded wire Patient onto the internal model.
//
// Defaults: missing gender becomes "unknown", missing birthDate becomes the
// empty string (the validator rejects it downstream), address and telecom
// use default to "home", name use to "official". A deceasedDateTime takes
// precedence over deceasedBoolean: its presence forces deceased=true even
// when deceasedBoolean=false was also given.
func DecodePatientObject(raw map[string]any) (model.Patient, error) {
	identifierList, err := requireList("Patient", raw, "identifier")
	if err != nil {
		return model.Patient{}, err
	}
	var identifiers []model.Identifier
	for _, v := range identifierList {
		m, ok := v.(map[string]any)
		if !ok {
			return model.Patient{}, &DecodeError{Resource: "Patient", Field: "identifier", Message: "entries must be objects"}
		}
		typeCode := ""
		if t, ok := getMap(m, "type"); ok {
			if coding := getList(t, "coding"); len(coding) > 0 {
				if first, ok := coding[0].(map[string]any); ok {
					typeCode = getString(first, "code", "")
				}
			}
		}
		identifiers = append(identifiers, model.Identifier{
			System: getString(m, "system", ""),
			Value:  getString(m, "value", ""),
			Type:   typeCode,
			Use:    getString(m, "use", ""),
		})
	}

	nameList, err := requireList("Patient", raw, "name")
	if err != nil {
		return model.Patient{}, err
	}
	var names []model.HumanName
	for _, v := range nameList {
		m, ok := v.(map[string]any)
		if !ok {
			return model.Patient{}, &DecodeError{Resource: "Patient", Field: "name", Message: "entries must be objects"}
		}
		names = append(names, model.HumanName{
			Family: getString(m, "family", ""),
			Given:  stringList(m, "given"),
			Prefix: stringList(m, "prefix"),
			Suffix: stringList(m, "suffix"),
			Use:    getString(m, "use", "official"),
		})
	}

	var addresses []model.Address
	for _, v := range getList(raw, "address") {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		addresses = append(addresses, model.Address{
			Line:       stringList(m, "line"),
			City:       getString(m, "city", ""),
			State:      getString(m, "state", ""),
			PostalCode: getString(m, "postalCode", ""),
			Country:    getString(m, "country", ""),
			Use:        getString(m, "use", "home"),
		})
	}

	var telecoms []model.ContactPoint
	for _, v := range getList(raw, "telecom") {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		telecoms = append(telecoms, model.ContactPoint{
			System: getString(m, "system", ""),
			Value:  getString(m, "value", ""),
			Use:    getString(m, "use", "home"),
			Rank:   getInt(m, "rank", 0),
		})
	}

	maritalStatus := ""
	if ms, ok := getMap(raw, "maritalStatus"); ok {
		if coding := getList(ms, "coding"); len(coding) > 0 {
			if first, ok := coding[0].(map[string]any); ok {
				maritalStatus = getString(first, "code", "")
			}
		}
	}

	deceased := getBool(raw, "deceasedBoolean", false)
	deceasedDate := getString(raw, "deceasedDateTime", "")
	if deceasedDate != "" {
		deceased = true
	}

	version := ""
	if meta, ok := getMap(raw, "meta"); ok {
		version = getString(meta, "versionId", "")
	}

	now := model.Now()
	if version == "" {
		version = now
	}
	id := getString(raw, "id", "")
	if id == "" {
		id = uuid.New().String()
	}

	return model.Patient{
		PatientID:     id,
		Version:       version,
		Active:        getBool(raw, "active", true),
		Identifiers:   identifiers,
		Names:         names,
		Gender:        getString(raw, "gender", model.GenderUnknown),
		BirthDate:     getString(raw, "birthDate", ""),
		Deceased:      deceased,
		DeceasedDate:  deceasedDate,
		Addresses:     addresses,
		Telecoms:      telecoms,
		MaritalStatus: maritalStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EncodePatient maps a Patient back to its wire FHIR shape. Absent optional
// fields are omitted keys. Deceased state encodes as deceasedDateTime when a
// date is known, otherwise as deceasedBoolean; the two are mutually
// exclusive on the wire, matching the decoder's asymmetric preference.
func EncodePatient(p model.Patient) map[string]any {
	out := map[string]any{
		"resourceType": "Patient",
		"id":           p.PatientID,
		"meta": map[string]any{
			"versionId":   p.Version,
			"lastUpdated": p.UpdatedAt,
		},
		"active": p.Active,
		"gender": p.Gender,
	}

	if len(p.Identifiers) > 0 {
		identifiers := make([]any, 0, len(p.Identifiers))
		for _, id := range p.Identifiers {
			m := map[string]any{"system": id.System, "value": id.Value}
			if id.Type != "" {
				m["type"] = map[string]any{"coding": []any{map[string]any{"code": id.Type}}}
			}
			if id.Use != "" {
				m["use"] = id.Use
			}
			identifiers = append(identifiers, m)
		}
		out["identifier"] = identifiers
	}

	if len(p.Names) > 0 {
		names := make([]any, 0, len(p.Names))
		for _, n := range p.Names {
			m := map[string]any{"family": n.Family, "given": toAnyList(n.Given)}
			if len(n.Prefix) > 0 {
				m["prefix"] = toAnyList(n.Prefix)
			}
			if len(n.Suffix) > 0 {
				m["suffix"] = toAnyList(n.Suffix)
			}
			if n.Use != "" {
				m["use"] = n.Use
			}
			names = append(names, m)
		}
		out["name"] = names
	}

	if p.BirthDate != "" {
		out["birthDate"] = p.BirthDate
	}
	if p.DeceasedDate != "" {
		out["deceasedDateTime"] = p.DeceasedDate
	} else {
		out["deceasedBoolean"] = p.Deceased
	}

	if len(p.Addresses) > 0 {
		addresses := make([]any, 0, len(p.Addresses))
		for _, a := range p.Addresses {
			m := map[string]any{"use": a.Use}
			if len(a.Line) > 0 {
				m["line"] = toAnyList(a.Line)
			}
			if a.City != "" {
				m["city"] = a.City
			}
			if a.State != "" {
				m["state"] = a.State
			}
			if a.PostalCode != "" {
				m["postalCode"] = a.PostalCode
			}
			if a.Country != "" {
				m["country"] = a.Country
			}
			addresses = append(addresses, m)
		}
		out["address"] = addresses
	}

	if len(p.Telecoms) > 0 {
		telecoms := make([]any, 0, len(p.Telecoms))
		for _, t := range p.Telecoms {
			m := map[string]any{"system": t.System, "value": t.Value, "use": t.Use}
			if t.Rank > 0 {
				m["rank"] = t.Rank
			}
			telecoms = append(telecoms, m)
		}
		out["telecom"] = telecoms
	}

	if p.MaritalStatus != "" {
		out["maritalStatus"] = map[string]any{"coding": []any{map[string]any{"code": p.MaritalStatus}}}
	}

	return out
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
