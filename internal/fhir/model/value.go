package model

import "encoding/json"

// ValueKind identifies the active variant of a CodeableValue.
type ValueKind int

// CodeableValue variants, in resolution priority order. ValueAbsent is the
// zero value: an Observation without any value field decodes to it, and it is
// distinct from Boolean(false), Integer(0) or an empty string.
const (
	ValueAbsent ValueKind = iota
	ValueQuantity
	ValueString
	ValueBoolean
	ValueInteger
	ValueConcept
)

// CodeableValue is a tagged union over the value[x] polymorphism FHIR allows
// on Observations and their components. Exactly one variant is active per
// instance; the constructors are the only way to set one, so a value can
// never hold two variants at once.
type CodeableValue struct {
	kind     ValueKind
	quantity Quantity
	str      string
	boolean  bool
	integer  int64
	concept  CodeableConcept
}

// QuantityValue returns a CodeableValue holding a Quantity.
func QuantityValue(q Quantity) CodeableValue {
	return CodeableValue{kind: ValueQuantity, quantity: q}
}

// StringValue returns a CodeableValue holding a string.
func StringValue(s string) CodeableValue {
	return CodeableValue{kind: ValueString, str: s}
}

// BoolValue returns a CodeableValue holding a boolean. BoolValue(false) is a
// present value, not an absent one.
func BoolValue(b bool) CodeableValue {
	return CodeableValue{kind: ValueBoolean, boolean: b}
}

// IntValue returns a CodeableValue holding an integer. IntValue(0) is a
// present value, not an absent one.
func IntValue(i int64) CodeableValue {
	return CodeableValue{kind: ValueInteger, integer: i}
}

// ConceptValue returns a CodeableValue holding a CodeableConcept.
func ConceptValue(c CodeableConcept) CodeableValue {
	return CodeableValue{kind: ValueConcept, concept: c}
}

// Kind returns the active variant.
func (v CodeableValue) Kind() ValueKind { return v.kind }

// IsAbsent reports whether no variant is active.
func (v CodeableValue) IsAbsent() bool { return v.kind == ValueAbsent }

// Quantity returns the quantity payload when the Quantity variant is active.
func (v CodeableValue) Quantity() (Quantity, bool) {
	return v.quantity, v.kind == ValueQuantity
}

// String returns the string payload when the String variant is active.
func (v CodeableValue) String() (string, bool) {
	return v.str, v.kind == ValueString
}

// Bool returns the boolean payload when the Boolean variant is active.
func (v CodeableValue) Bool() (bool, bool) {
	return v.boolean, v.kind == ValueBoolean
}

// Int returns the integer payload when the Integer variant is active.
func (v CodeableValue) Int() (int64, bool) {
	return v.integer, v.kind == ValueInteger
}

// Concept returns the concept payload when the CodeableConcept variant is
// active.
func (v CodeableValue) Concept() (CodeableConcept, bool) {
	return v.concept, v.kind == ValueConcept
}

// valueEnvelope is the internal storage shape of a CodeableValue. Exactly
// one key is set for a present value; an absent value serializes as null.
type valueEnvelope struct {
	Quantity *Quantity        `json:"quantity,omitempty"`
	String   *string          `json:"string,omitempty"`
	Boolean  *bool            `json:"boolean,omitempty"`
	Integer  *int64           `json:"integer,omitempty"`
	Concept  *CodeableConcept `json:"concept,omitempty"`
}

// MarshalJSON serializes the active variant for internal storage. This is
// not the FHIR wire shape; the codec package owns that mapping.
func (v CodeableValue) MarshalJSON() ([]byte, error) {
	var env valueEnvelope
	switch v.kind {
	case ValueAbsent:
		return []byte("null"), nil
	case ValueQuantity:
		env.Quantity = &v.quantity
	case ValueString:
		env.String = &v.str
	case ValueBoolean:
		env.Boolean = &v.boolean
	case ValueInteger:
		env.Integer = &v.integer
	case ValueConcept:
		env.Concept = &v.concept
	}
	return json.Marshal(env)
}

// UnmarshalJSON restores a CodeableValue from its storage shape. null and
// an empty envelope both restore the absent value.
func (v *CodeableValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = CodeableValue{}
		return nil
	}
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch {
	case env.Quantity != nil:
		*v = QuantityValue(*env.Quantity)
	case env.String != nil:
		*v = StringValue(*env.String)
	case env.Boolean != nil:
		*v = BoolValue(*env.Boolean)
	case env.Integer != nil:
		*v = IntValue(*env.Integer)
	case env.Concept != nil:
		*v = ConceptValue(*env.Concept)
	default:
		*v = CodeableValue{}
	}
	return nil
}

// Numeric returns the scalar payload of a Quantity or Integer variant.
// String, Boolean and CodeableConcept variants carry no numeric payload.
func (v CodeableValue) Numeric() (float64, bool) {
	switch v.kind {
	case ValueQuantity:
		return v.quantity.Value, true
	case ValueInteger:
		return float64(v.integer), true
	}
	return 0, false
}
