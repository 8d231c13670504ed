package audit

import (
	"bytes"
	"encoding/json"
)

// DefaultExcludedFields returns the bookkeeping fields dropped from
// rendered diffs. Callers with additional bookkeeping columns pass
// their own set instead of patching this list.
func DefaultExcludedFields() map[string]struct{} {
	return map[string]struct{}{
		"id":         {},
		"created_at": {},
		"updated_at": {},
	}
}

// ComputeDiff builds the field-level diff between prior and new state.
//
// With before == nil (an insert) the diff is {field: {new}} for every
// field of after. With both present (an update) the diff contains only
// fields whose canonical serialized form differs, as {field: {old,
// new}}. Fields named in exclude are omitted either way; pass nil for
// the default bookkeeping set.
func ComputeDiff(before, after map[string]interface{}, exclude map[string]struct{}) Changes {
	if exclude == nil {
		exclude = DefaultExcludedFields()
	}

	changes := make(Changes)
	for field, newValue := range after {
		if _, skip := exclude[field]; skip {
			continue
		}
		if before == nil {
			changes[field] = FieldChange{New: newValue}
			continue
		}
		oldValue, existed := before[field]
		if existed && canonicalEqual(oldValue, newValue) {
			continue
		}
		changes[field] = FieldChange{Old: oldValue, New: newValue}
	}

	if len(changes) == 0 {
		return nil
	}
	return changes
}

// canonicalEqual compares two values by canonical JSON so that
// structurally equal nested objects compare equal regardless of key
// order. Unserializable values compare unequal, which errs on the side
// of recording the change.
func canonicalEqual(a, b interface{}) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
