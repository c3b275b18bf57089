package values

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// Diff represents the difference between two record versions, mirroring
// the teacher's Diff struct: a JSON Patch (RFC 6902) and a JSON Merge
// Patch (RFC 7396) representation of the same change, so a remote
// consumer can apply whichever it supports without re-fetching the whole
// document.
type Diff struct {
	// JSONPatch holds RFC 6902 operations, one per changed top-level path
	// this package can express as add/remove/replace.
	JSONPatch []JSONPatchOp `json:"jsonPatch,omitempty"`
	// MergePatch holds an RFC 7396 merge patch document.
	MergePatch []byte `json:"mergePatch,omitempty"`
	// HasChanges is false when old and new are deeply equal.
	HasChanges bool `json:"-"`
}

// JSONPatchOp is a single RFC 6902 operation.
type JSONPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// ComputeDiff builds a Diff describing the change from old to new. It is
// used to attach a diff to State deliveries and provider notifications,
// grounded on the teacher's generateDiff (old/new → *Diff off of one
// update).
//
// old and new are typically both Record (the item-subscription case), in
// which case JSONPatch carries per-field add/remove/replace operations.
// Callers diffing a query's row slice pass the previous and current
// []query.Row snapshot instead; JSONPatch is left empty since a row list
// is not field-addressable the way a Record is. MergePatch is whatever
// jsonpatch.CreateMergePatch builds from the two encoded values; where it
// cannot build one (for example for two arrays of different lengths, or
// for scalar values), ComputeDiff returns its error and no Diff.
func ComputeDiff(oldVal, newVal any) (*Diff, error) {
	if Equal(oldVal, newVal) {
		return &Diff{HasChanges: false}, nil
	}

	oldJSON, err := json.Marshal(oldVal)
	if err != nil {
		return nil, fmt.Errorf("marshal old value: %w", err)
	}
	newJSON, err := json.Marshal(newVal)
	if err != nil {
		return nil, fmt.Errorf("marshal new value: %w", err)
	}

	merge, err := jsonpatch.CreateMergePatch(oldJSON, newJSON)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}

	var ops []JSONPatchOp
	oldRecord, oldIsRecord := oldVal.(Record)
	newRecord, newIsRecord := newVal.(Record)
	if oldIsRecord && newIsRecord {
		ops = fieldPatchOps(oldRecord, newRecord)
	}

	return &Diff{
		JSONPatch:  ops,
		MergePatch: merge,
		HasChanges: true,
	}, nil
}

// fieldPatchOps produces a shallow, top-level add/remove/replace op list.
// It does not attempt structural diffing of nested records — the merge
// patch above already carries the full nested change for consumers that
// need it; the JSON Patch form exists for consumers that want per-field
// operations at the top level (e.g. an UI binding animating a single
// changed field).
func fieldPatchOps(oldRecord, newRecord Record) []JSONPatchOp {
	var ops []JSONPatchOp
	for k, v := range newRecord {
		if old, ok := oldRecord[k]; !ok {
			ops = append(ops, JSONPatchOp{Op: "add", Path: "/" + k, Value: v})
		} else if !Equal(old, v) {
			ops = append(ops, JSONPatchOp{Op: "replace", Path: "/" + k, Value: v})
		}
	}
	for k := range oldRecord {
		if _, ok := newRecord[k]; !ok {
			ops = append(ops, JSONPatchOp{Op: "remove", Path: "/" + k})
		}
	}
	return ops
}
