// Package codec provides the bidirectional mapping between wire-level FHIR
// JSON and the internal flattened resource model.
//
// Decoding is lenient about missing optional data: documented defaults are
// substituted and semantic problems are left for the validator. A
// DecodeError is returned only when the input is not a well-formed object or
// a required nested structure (e.g. code.coding) is present with the wrong
// shape. Encoding is the inverse mapping; fields whose value is semantically
// absent are omitted from the output, never emitted as null.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// DecodeError reports input that could not be mapped onto the internal
// model: malformed shape, not a FHIR semantic violation.
type DecodeError struct {
	Resource string
	Field    string
	Message  string
	Cause    error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %s: %s: %s (%s)", e.Resource, e.Field, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("decode %s: %s: %s", e.Resource, e.Field, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// parseObject unmarshals raw JSON into a generic object.
func parseObject(resource string, data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Resource: resource, Field: "(root)", Message: "not a JSON object", Cause: err}
	}
	return raw, nil
}

func getMap(raw map[string]any, key string) (map[string]any, bool) {
	m, ok := raw[key].(map[string]any)
	return m, ok
}

func getList(raw map[string]any, key string) []any {
	l, _ := raw[key].([]any)
	return l
}

// requireList returns the list under key, or a DecodeError when the key is
// present but not a list. An absent key yields nil without error.
func requireList(resource string, raw map[string]any, key string) ([]any, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, &DecodeError{Resource: resource, Field: key, Message: "must be a list"}
	}
	return l, nil
}

func getString(raw map[string]any, key, def string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return def
}

func getBool(raw map[string]any, key string, def bool) bool {
	if b, ok := raw[key].(bool); ok {
		return b
	}
	return def
}

func getFloat(raw map[string]any, key string) float64 {
	if f, ok := raw[key].(float64); ok {
		return f
	}
	return 0
}

func getInt(raw map[string]any, key string, def int) int {
	if f, ok := raw[key].(float64); ok {
		return int(f)
	}
	return def
}

func stringList(raw map[string]any, key string) []string {
	var out []string
	for _, v := range getList(raw, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// decodeConcept maps a wire CodeableConcept. A coding entry with the wrong
// shape is an error; the coding list itself may be absent.
func decodeConcept(resource, field string, raw map[string]any) (model.CodeableConcept, error) {
	coding, err := requireList(resource, raw, "coding")
	if err != nil {
		return model.CodeableConcept{}, &DecodeError{Resource: resource, Field: field + ".coding", Message: "must be a list"}
	}
	c := model.CodeableConcept{Text: getString(raw, "text", "")}
	for _, entry := range coding {
		m, ok := entry.(map[string]any)
		if !ok {
			return model.CodeableConcept{}, &DecodeError{Resource: resource, Field: field + ".coding", Message: "entries must be objects"}
		}
		c.Coding = append(c.Coding, model.Coding{
			System:  getString(m, "system", ""),
			Code:    getString(m, "code", ""),
			Display: getString(m, "display", ""),
		})
	}
	return c, nil
}

// encodeConcept maps a CodeableConcept back to its wire shape.
func encodeConcept(c model.CodeableConcept) map[string]any {
	out := map[string]any{}
	if len(c.Coding) > 0 {
		coding := make([]any, 0, len(c.Coding))
		for _, cd := range c.Coding {
			m := map[string]any{}
			if cd.System != "" {
				m["system"] = cd.System
			}
			if cd.Code != "" {
				m["code"] = cd.Code
			}
			if cd.Display != "" {
				m["display"] = cd.Display
			}
			coding = append(coding, m)
		}
		out["coding"] = coding
	}
	if c.Text != "" {
		out["text"] = c.Text
	}
	return out
}

// resolveValue resolves the value[x] keys on raw to a single CodeableValue
// using first-match priority: Quantity > String > Boolean > Integer >
// CodeableConcept. When several value keys are present the earlier-priority
// one wins silently; when none are present the result is the absent value,
// never a false/zero stand-in.
func resolveValue(resource string, raw map[string]any) (model.CodeableValue, error) {
	if v, ok := raw["valueQuantity"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return model.CodeableValue{}, &DecodeError{Resource: resource, Field: "valueQuantity", Message: "must be an object"}
		}
		return model.QuantityValue(model.Quantity{
			Value:  getFloat(m, "value"),
			Unit:   getString(m, "unit", ""),
			System: getString(m, "system", ""),
			Code:   getString(m, "code", ""),
		}), nil
	}
	if v, ok := raw["valueString"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.CodeableValue{}, &DecodeError{Resource: resource, Field: "valueString", Message: "must be a string"}
		}
		return model.StringValue(s), nil
	}
	if v, ok := raw["valueBoolean"]; ok {
		b, ok := v.(bool)
		if !ok {
			return model.CodeableValue{}, &DecodeError{Resource: resource, Field: "valueBoolean", Message: "must be a boolean"}
		}
		return model.BoolValue(b), nil
	}
	if v, ok := raw["valueInteger"]; ok {
		f, ok := v.(float64)
		if !ok {
			return model.CodeableValue{}, &DecodeError{Resource: resource, Field: "valueInteger", Message: "must be a number"}
		}
		return model.IntValue(int64(f)), nil
	}
	if v, ok := raw["valueCodeableConcept"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return model.CodeableValue{}, &DecodeError{Resource: resource, Field: "valueCodeableConcept", Message: "must be an object"}
		}
		c, err := decodeConcept(resource, "valueCodeableConcept", m)
		if err != nil {
			return model.CodeableValue{}, err
		}
		return model.ConceptValue(c), nil
	}
	return model.CodeableValue{}, nil
}

// encodeValue writes the single wire field corresponding to the active
// variant onto out. An absent value writes nothing.
func encodeValue(out map[string]any, v model.CodeableValue) {
	switch v.Kind() {
	case model.ValueQuantity:
		q, _ := v.Quantity()
		m := map[string]any{"value": q.Value, "unit": q.Unit}
		if q.System != "" {
			m["system"] = q.System
		}
		if q.Code != "" {
			m["code"] = q.Code
		}
		out["valueQuantity"] = m
	case model.ValueString:
		s, _ := v.String()
		out["valueString"] = s
	case model.ValueBoolean:
		b, _ := v.Bool()
		out["valueBoolean"] = b
	case model.ValueInteger:
		i, _ := v.Int()
		out["valueInteger"] = i
	case model.ValueConcept:
		c, _ := v.Concept()
		out["valueCodeableConcept"] = encodeConcept(c)
	}
}
