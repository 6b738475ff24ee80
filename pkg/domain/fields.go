package domain

import "strings"

// FieldKind tags the display/coercion type inferred for a raw entity field.
// UI rendering and value coercion both depend on this mapping, so the suffix
// heuristics below are part of the contract, not a convenience.
type FieldKind string

// Inferred field kinds.
const (
	FieldNumber    FieldKind = "number"
	FieldDate      FieldKind = "date"
	FieldBoolean   FieldKind = "boolean"
	FieldReference FieldKind = "reference"
	FieldTextArray FieldKind = "text_array"
	FieldText      FieldKind = "text"
)

// InferFieldKind maps a field name to its kind. An entry in overrides wins
// outright; otherwise the name's affixes decide, checked in this order:
//
//	_ids            -> text_array (plural references render as chips)
//	_id, _link      -> reference
//	_date, _at      -> date
//	_flag, is_      -> boolean
//	_score, _rate,
//	amount_, *value* -> number
//
// Anything else is plain text.
func InferFieldKind(name string, overrides map[string]FieldKind) FieldKind {
	if kind, ok := overrides[name]; ok {
		return kind
	}
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "_ids"):
		return FieldTextArray
	case strings.HasSuffix(lower, "_id"), strings.HasSuffix(lower, "_link"):
		return FieldReference
	case strings.HasSuffix(lower, "_date"), strings.HasSuffix(lower, "_at"):
		return FieldDate
	case strings.HasSuffix(lower, "_flag"), strings.HasPrefix(lower, "is_"):
		return FieldBoolean
	case strings.HasSuffix(lower, "_score"), strings.HasSuffix(lower, "_rate"),
		strings.HasPrefix(lower, "amount"), strings.Contains(lower, "value"):
		return FieldNumber
	default:
		return FieldText
	}
}
