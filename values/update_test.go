package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRecordIdentity(t *testing.T) {
	r := Record{"a": 1, "b": "x"}

	t.Run("empty updates return same instance", func(t *testing.T) {
		out := UpdateRecord(r, nil)
		assert.True(t, sameMap(r, out))
	})

	t.Run("setting current value is a no-op", func(t *testing.T) {
		out := UpdateRecord(r, []Update{{Key: "a", Op: OpSet, Value: 1}})
		assert.True(t, sameMap(r, out))
	})
}

func TestUpdateRecordSet(t *testing.T) {
	r := Record{"a": 1}
	out := UpdateRecord(r, []Update{{Key: "a", Op: OpSet, Value: 2}})
	assert.Equal(t, 2, out["a"])
	assert.Equal(t, 1, r["a"])
}

func TestUpdateRecordSum(t *testing.T) {
	r := Record{"n": 10.0}
	out := UpdateRecord(r, []Update{{Key: "n", Op: OpSum, Value: -3.0}})
	assert.Equal(t, 7.0, out["n"])
}

func TestUpdateRecordArrayOps(t *testing.T) {
	r := Record{"tags": []any{"a", "b"}}

	out := UpdateRecord(r, []Update{{Key: "tags", Op: OpWithItems, Value: []any{"b", "c"}}})
	assert.ElementsMatch(t, []any{"a", "b", "c"}, out["tags"])

	out2 := UpdateRecord(r, []Update{{Key: "tags", Op: OpOmitItems, Value: []any{"a"}}})
	assert.Equal(t, []any{"b"}, out2["tags"])
}

func TestUpdateRecordDottedPath(t *testing.T) {
	r := Record{}
	out := UpdateRecord(r, []Update{{Key: "meta.count", Op: OpSet, Value: 5}})

	meta, ok := out["meta"].(Record)
	require.True(t, ok)
	assert.Equal(t, 5, meta["count"])
	assert.Empty(t, r)
}

func TestUpdateRecordDottedPathThroughNonObjectPanics(t *testing.T) {
	r := Record{"leaf": 1}
	assert.Panics(t, func() {
		UpdateRecord(r, []Update{{Key: "leaf.count", Op: OpSet, Value: 5}})
	})
}
