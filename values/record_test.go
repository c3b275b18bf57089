package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithField(t *testing.T) {
	t.Run("unchanged when value is equal", func(t *testing.T) {
		obj := Record{"n": 1}
		out := WithField(obj, "n", 1)
		assert.True(t, sameMap(obj, out))
	})

	t.Run("returns new record when value differs", func(t *testing.T) {
		obj := Record{"n": 1}
		out := WithField(obj, "n", 2)
		assert.False(t, sameMap(obj, out))
		assert.Equal(t, 2, out["n"])
		assert.Equal(t, 1, obj["n"])
	})
}

func TestWithoutField(t *testing.T) {
	t.Run("unchanged when key absent", func(t *testing.T) {
		obj := Record{"n": 1}
		out := WithoutField(obj, "missing")
		assert.True(t, sameMap(obj, out))
	})

	t.Run("removes present key", func(t *testing.T) {
		obj := Record{"n": 1, "m": 2}
		out := WithoutField(obj, "n")
		_, ok := out["n"]
		require.False(t, ok)
		assert.Equal(t, 2, out["m"])
	})
}

func TestMergeFields(t *testing.T) {
	t.Run("unchanged when patch is a no-op", func(t *testing.T) {
		obj := Record{"n": 1, "m": 2}
		out := MergeFields(obj, Record{"n": 1})
		assert.True(t, sameMap(obj, out))
	})

	t.Run("merges new and changed fields", func(t *testing.T) {
		obj := Record{"n": 1, "m": 2}
		out := MergeFields(obj, Record{"n": 5, "k": 9})
		assert.Equal(t, 5, out["n"])
		assert.Equal(t, 2, out["m"])
		assert.Equal(t, 9, out["k"])
	})
}

func TestCompareTypeOrder(t *testing.T) {
	values := []any{1.0, "a", true, nil, Record{"x": 1}, Absent}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			assert.Negative(t, Compare(values[i], values[j]),
				"expected %#v < %#v", values[i], values[j])
		}
	}
}

func TestCompareNumeric(t *testing.T) {
	assert.Negative(t, Compare(1, 2))
	assert.Positive(t, Compare(2.5, 1))
	assert.Zero(t, Compare(3, 3.0))
}

// sameMap reports whether a and b are the same underlying map value, the
// "unchanged" check this package's API promises.
func sameMap(a, b Record) bool {
	// Go maps aren't comparable with ==, but two Record values obtained
	// from the same WithField/WithoutField/MergeFields call chain are the
	// same instance iff mutating one is observed through the other.
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	probe := "\x00__sentinel__"
	a[probe] = true
	_, ok := b[probe]
	delete(a, probe)
	return ok
}
