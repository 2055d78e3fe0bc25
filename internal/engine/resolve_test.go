package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeEntityStore matches records by exact field equality, the same
// single-record semantics as the SQL store.
type fakeEntityStore struct {
	mu      sync.Mutex
	records map[string][]Record
	lookups int
}

func (s *fakeEntityStore) Lookup(_ context.Context, kind string, filter map[string]any) (Record, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	for _, rec := range s.records[kind] {
		match := true
		for f, v := range filter {
			if rec[f] != v {
				match = false
				break
			}
		}
		if match {
			// copy: the resolver mutates records when flattening
			out := Record{}
			for k, v := range rec {
				out[k] = v
			}
			return out, nil
		}
	}
	return nil, ErrEntityNotFound
}

func medicineStore() *fakeEntityStore {
	return &fakeEntityStore{records: map[string][]Record{
		"medicine": {
			{
				"id":        int64(1),
				"namn":      "Alvedon",
				"fass_link": "https://www.fass.se/alvedon",
				// nested sub-spec is JSON text on the record
				"variating_values": `{"dosage": [15], "styrka": [250, 500, 1000]}`,
			},
			{
				"id":        int64(2),
				"namn":      "Ipren",
				"fass_link": "https://www.fass.se/ipren",
			},
		},
	}}
}

func TestResolveEntitiesFlattensNestedSpec(t *testing.T) {
	store := medicineStore()
	filters := map[string]map[int]map[string]any{
		"medicine": {0: {"namn": "Alvedon"}},
	}
	resolved, err := ResolveEntities(context.Background(), store, filters)
	if err != nil {
		t.Fatalf("ResolveEntities: %v", err)
	}
	slot := resolved["medicine"][0]
	if slot == nil || slot.NotFound {
		t.Fatal("expected a resolved slot")
	}
	if _, ok := slot.Record[nestedSpecField]; ok {
		t.Error("raw sub-spec field must be removed after flattening")
	}
	if _, ok := slot.Record["dosage"]; !ok {
		t.Error("sub-spec key not merged onto record")
	}
	if slot.Record["namn"] != "Alvedon" {
		t.Errorf("identity field changed: %v", slot.Record["namn"])
	}
	if store.lookups != 1 {
		t.Errorf("lookups = %d, want exactly one per occurrence", store.lookups)
	}
}

func TestResolveEntitiesSubSpecCannotOverwriteIdentity(t *testing.T) {
	store := &fakeEntityStore{records: map[string][]Record{
		"medicine": {{
			"namn":             "Alvedon",
			"variating_values": `{"namn": ["evil"], "dos": [1, 9]}`,
		}},
	}}
	resolved, err := ResolveEntities(context.Background(), store,
		map[string]map[int]map[string]any{"medicine": {0: {"namn": "Alvedon"}}})
	if err != nil {
		t.Fatal(err)
	}
	rec := resolved["medicine"][0].Record
	if rec["namn"] != "Alvedon" {
		t.Errorf("identity field overwritten: %v", rec["namn"])
	}
	if _, ok := rec["dos"]; !ok {
		t.Error("non-identity sub-spec key should merge")
	}
}

func TestResolveEntitiesPartialFailure(t *testing.T) {
	store := medicineStore()
	filters := map[string]map[int]map[string]any{
		"medicine": {
			0: {"namn": "Alvedon"},
			1: {"namn": "Finnsinte"},
		},
	}
	resolved, err := ResolveEntities(context.Background(), store, filters)
	if err != nil {
		t.Fatalf("partial failure must not abort resolution: %v", err)
	}
	if resolved["medicine"][0].NotFound {
		t.Error("medicine[0] should resolve")
	}
	if !resolved["medicine"][1].NotFound {
		t.Error("medicine[1] should be marked not found")
	}
}

type blockingStore struct{}

func (blockingStore) Lookup(ctx context.Context, _ string, _ map[string]any) (Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveEntitiesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ResolveEntities(ctx, blockingStore{},
		map[string]map[int]map[string]any{"medicine": {0: {"namn": "x"}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestResolveEntitiesConcurrentOccurrences(t *testing.T) {
	store := &fakeEntityStore{records: map[string][]Record{"medicine": {}}}
	for i := 0; i < 8; i++ {
		store.records["medicine"] = append(store.records["medicine"],
			Record{"namn": fmt.Sprintf("med-%d", i)})
	}
	filters := map[string]map[int]map[string]any{"medicine": {}}
	for i := 0; i < 8; i++ {
		filters["medicine"][i] = map[string]any{"namn": fmt.Sprintf("med-%d", i)}
	}
	resolved, err := ResolveEntities(context.Background(), store, filters)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 8; i++ {
		if resolved["medicine"][i].NotFound {
			t.Errorf("medicine[%d] missing", i)
		}
	}
	if store.lookups != 8 {
		t.Errorf("lookups = %d, want 8", store.lookups)
	}
}
