package engine

import (
	"reflect"
	"testing"
)

func TestParseSpecSplitsKinds(t *testing.T) {
	spec := ParseSpec(map[string]any{
		"weight":        []any{50.0, 90.0},
		"medicine.namn": []any{"Alvedon", "Ipren"},
		"medicine.form": []any{"tablett"},
		"condition":     "weight > 60",
	})

	if spec.Condition != "weight > 60" {
		t.Errorf("condition = %q", spec.Condition)
	}
	if got := spec.ScalarSpecs["weight"]; !reflect.DeepEqual(got, []any{50.0, 90.0}) {
		t.Errorf("weight spec = %v", got)
	}
	if _, ok := spec.ScalarSpecs["medicine.namn"]; ok {
		t.Error("entity key leaked into scalar specs")
	}

	med := spec.EntityFilters["medicine"]
	if len(med) != 2 {
		t.Fatalf("medicine occurrences = %d, want 2", len(med))
	}
	want0 := map[string]any{"namn": "Alvedon", "form": "tablett"}
	if !reflect.DeepEqual(med[0], want0) {
		t.Errorf("medicine[0] filter = %v, want %v", med[0], want0)
	}
	want1 := map[string]any{"namn": "Ipren"}
	if !reflect.DeepEqual(med[1], want1) {
		t.Errorf("medicine[1] filter = %v, want %v", med[1], want1)
	}
}

func TestParseSpecPermissive(t *testing.T) {
	spec := ParseSpec(map[string]any{
		"a.b.c":     []any{1.0},     // two dots: not an entity reference
		"dose":      "not an array", // malformed scalar spec
		"condition": 42.0,           // condition must be a string
	})
	if _, ok := spec.ScalarSpecs["a.b.c"]; !ok {
		t.Error("malformed key should fall back to scalar spec")
	}
	if spec.ScalarSpecs["dose"] != nil {
		t.Error("non-array spec should be marked invalid, not coerced")
	}
	if spec.Condition != "" {
		t.Errorf("condition = %q, want empty", spec.Condition)
	}
	if len(spec.EntityFilters) != 0 {
		t.Errorf("unexpected entity filters: %v", spec.EntityFilters)
	}
}

func TestParseSpecJSON(t *testing.T) {
	spec, err := ParseSpecJSON(`{"weight": [40, 80], "condition": "weight > 50"}`)
	if err != nil {
		t.Fatalf("ParseSpecJSON: %v", err)
	}
	if len(spec.ScalarSpecs["weight"]) != 2 {
		t.Errorf("weight spec = %v", spec.ScalarSpecs["weight"])
	}

	// double-encoded rows occur in legacy data
	spec, err = ParseSpecJSON(`"{\"dose\": [5]}"`)
	if err != nil {
		t.Fatalf("double-encoded: %v", err)
	}
	if len(spec.ScalarSpecs["dose"]) != 1 {
		t.Errorf("dose spec = %v", spec.ScalarSpecs["dose"])
	}

	if _, err := ParseSpecJSON(`[1,2]`); err == nil {
		t.Error("non-object spec should error")
	}
	if _, err := ParseSpecJSON(""); err != nil {
		t.Errorf("empty spec should parse: %v", err)
	}
}
