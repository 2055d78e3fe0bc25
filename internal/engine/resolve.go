package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
)

// ErrEntityNotFound is returned by EntityStore implementations when no
// record matches the filter.
var ErrEntityNotFound = errors.New("entity not found")

// Record is one entity row, column name -> value.
type Record map[string]any

// EntityStore looks up a single entity record by equality filter.
// Implementations are read-only; first match wins.
type EntityStore interface {
	Lookup(ctx context.Context, kind string, filter map[string]any) (Record, error)
}

// nestedSpecField is the column on entity records that may carry a
// JSON-encoded scalar sub-specification to flatten onto the record.
const nestedSpecField = "variating_values"

// identity fields a flattened sub-spec must never overwrite.
var protectedFields = map[string]bool{"id": true, "namn": true, "name": true}

// ResolvedSlot is the outcome of one (entity, index) lookup. Either
// Record is set, or NotFound is true and the slot renders as an error
// marker downstream.
type ResolvedSlot struct {
	Record   Record
	NotFound bool
}

// ResolvedEntities maps entity kind -> occurrence index -> slot.
type ResolvedEntities map[string]map[int]*ResolvedSlot

// Field returns the value for an entity reference, or (nil, false) when
// the slot is missing, not found, or lacks the field.
func (r ResolvedEntities) Field(kind string, idx int, field string) (any, bool) {
	slot := r[kind][idx]
	if slot == nil || slot.NotFound {
		return nil, false
	}
	v, ok := slot.Record[field]
	return v, ok
}

// ResolveEntities fills every (entity, index) slot from the store. Lookups
// are independent and run concurrently; a missing record marks its own
// slot and never aborts the others. Only context cancellation stops the
// whole resolution.
func ResolveEntities(ctx context.Context, store EntityStore, filters map[string]map[int]map[string]any) (ResolvedEntities, error) {
	out := ResolvedEntities{}
	g, ctx := errgroup.WithContext(ctx)

	for kind, occurrences := range filters {
		out[kind] = map[int]*ResolvedSlot{}
		for idx, filter := range occurrences {
			slot := &ResolvedSlot{}
			out[kind][idx] = slot
			kind, idx, filter := kind, idx, filter
			g.Go(func() error {
				rec, err := store.Lookup(ctx, kind, filter)
				switch {
				case err == nil:
					flattenNestedSpec(rec)
					slot.Record = rec
				case errors.Is(err, ErrEntityNotFound):
					log.Printf("no %s[%d] matching %v", kind, idx, filter)
					slot.NotFound = true
				case ctx.Err() != nil:
					return ctx.Err()
				default:
					log.Printf("lookup %s[%d] %v: %v", kind, idx, filter, err)
					slot.NotFound = true
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// flattenNestedSpec merges a record's own scalar sub-specification onto
// the record and removes the raw field. One level deep only; existing
// identity columns win over sub-spec keys.
func flattenNestedSpec(rec Record) {
	raw, ok := rec[nestedSpecField]
	if !ok {
		return
	}
	delete(rec, nestedSpecField)

	var sub map[string]any
	switch t := raw.(type) {
	case string:
		if t == "" {
			return
		}
		if err := json.Unmarshal([]byte(t), &sub); err != nil {
			log.Printf("nested spec on record: %v", err)
			return
		}
	case []byte:
		if err := json.Unmarshal(t, &sub); err != nil {
			log.Printf("nested spec on record: %v", err)
			return
		}
	case map[string]any:
		sub = t
	default:
		return
	}

	parsed := ParseSpec(sub)
	for name, arr := range parsed.ScalarSpecs {
		if protectedFields[name] {
			continue
		}
		if _, exists := rec[name]; exists {
			continue
		}
		rec[name] = arr
	}
}

// ErrorMarker is the explicit, greppable placeholder substituted for an
// unresolvable reference.
func ErrorMarker(name string) string {
	return fmt.Sprintf("[ERROR:%s]", name)
}
