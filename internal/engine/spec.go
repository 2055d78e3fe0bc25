// Package engine renders parameterized quiz templates into concrete,
// numerically answerable questions and grades free-text answers against
// the computed expected answer.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConditionKey is the reserved spec key holding a boolean expression over
// the other generated values.
const ConditionKey = "condition"

// VariatingSpec is the parsed form of a template's variating-values mapping.
type VariatingSpec struct {
	// EntityFilters maps entity kind -> occurrence index -> equality filter.
	// Built from keys of the form "medicine.namn" whose value arrays are
	// indexed by occurrence.
	EntityFilters map[string]map[int]map[string]any
	// ScalarSpecs maps a plain variable name to its generation array.
	// A nil entry marks a malformed (non-array) spec; generation of that
	// variable fails explicitly rather than defaulting.
	ScalarSpecs map[string][]any
	// Condition is the raw boolean expression, or "" when absent.
	Condition string
}

// ParseSpecJSON decodes JSON text (possibly double-encoded, as older rows
// in the wild are) and parses it. Empty input yields an empty spec.
func ParseSpecJSON(raw string) (VariatingSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return ParseSpec(nil), nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return VariatingSpec{}, fmt.Errorf("variating values: %w", err)
	}
	// Double-encoded rows decode to a string holding the real object.
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return VariatingSpec{}, fmt.Errorf("variating values (double-encoded): %w", err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return VariatingSpec{}, fmt.Errorf("variating values: expected object, got %T", v)
	}
	return ParseSpec(m), nil
}

// ParseSpec splits a variating-values mapping into entity filters, scalar
// generation specs and the optional condition. Parsing is permissive:
// any key that does not look like an entity reference is kept as a scalar
// spec, and malformed entries never make the whole spec fail.
func ParseSpec(spec map[string]any) VariatingSpec {
	out := VariatingSpec{
		EntityFilters: map[string]map[int]map[string]any{},
		ScalarSpecs:   map[string][]any{},
	}
	for key, val := range spec {
		if key == ConditionKey {
			if s, ok := val.(string); ok {
				out.Condition = s
			}
			continue
		}
		parts := strings.Split(key, ".")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			arr, ok := val.([]any)
			if !ok {
				// entity-looking key without an occurrence array: fall
				// back to scalar interpretation
				out.ScalarSpecs[key] = asArray(val)
				continue
			}
			kind, field := parts[0], parts[1]
			if out.EntityFilters[kind] == nil {
				out.EntityFilters[kind] = map[int]map[string]any{}
			}
			for idx, fv := range arr {
				if out.EntityFilters[kind][idx] == nil {
					out.EntityFilters[kind][idx] = map[string]any{}
				}
				out.EntityFilters[kind][idx][field] = fv
			}
			continue
		}
		out.ScalarSpecs[key] = asArray(val)
	}
	return out
}

// asArray keeps arrays as-is and marks anything else as an invalid spec
// (nil), so the failure surfaces at generation time, not silently.
func asArray(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}
