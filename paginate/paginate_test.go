package paginate

import (
	"testing"

	"docdb"
	"docdb/memstore"
	"docdb/sched"
	"docdb/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*docdb.Database, *sched.Queue) {
	q := sched.New()
	t.Cleanup(q.Close)
	provider := memstore.New(q)
	db := docdb.NewDatabase(docdb.Schema{"items": {}}, provider)
	t.Cleanup(db.Close)
	return db, q
}

func seed(db *docdb.Database, n int) {
	for i := 1; i <= n; i++ {
		db.Item("items", idFor(i)).Set(values.Record{"n": float64(i)})
	}
}

func idFor(i int) string {
	return string(rune('a' + i))
}

func TestNewRequiresSortAndLimit(t *testing.T) {
	db, _ := newTestDB(t)
	q := sched.New()
	defer q.Close()

	_, err := New(q, db.Collection("items"))
	require.Error(t, err)

	_, err = New(q, db.Collection("items").Asc("n"))
	require.Error(t, err)
}

func TestForwardExtendsWindow(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 9)
	q := sched.New()
	defer q.Close()

	ref := db.Collection("items").Asc("n")
	ref = ref.Max(2)
	p, err := New(q, ref)
	require.NoError(t, err)

	first := p.Value()
	require.Len(t, first, 2)
	assert.Equal(t, 1.0, first[0].Record["n"])
	assert.Equal(t, 2.0, first[1].Record["n"])
	assert.False(t, p.Complete())

	p.Forward()
	got := p.Value()
	require.Len(t, got, 4)
	assert.Equal(t, 3.0, got[2].Record["n"])
	assert.Equal(t, 4.0, got[3].Record["n"])
}

func TestForwardMarksCompleteOnShortPage(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 3)
	q := sched.New()
	defer q.Close()

	p, err := New(q, db.Collection("items").Asc("n").Max(2))
	require.NoError(t, err)
	assert.False(t, p.Complete())

	p.Forward()
	assert.True(t, p.Complete())
	assert.Len(t, p.Value(), 3)
}

func TestBackwardNoopAtAbsoluteStart(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 9)
	q := sched.New()
	defer q.Close()

	p, err := New(q, db.Collection("items").Asc("n").Max(2))
	require.NoError(t, err)
	before := p.Value()

	p.Backward()
	assert.Equal(t, before, p.Value())
}

func TestBackwardRespectsBaseFilter(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 9)
	q := sched.New()
	defer q.Close()

	// The base query already excludes n<=2, so Backward cannot recover
	// rows the base itself wouldn't match.
	p, err := New(q, db.Collection("items").Asc("n").GT("n", 2.0).Max(2))
	require.NoError(t, err)
	first := p.Value()
	require.Len(t, first, 2)
	assert.Equal(t, 3.0, first[0].Record["n"])

	p.Backward()
	assert.Equal(t, first, p.Value())
}

func TestForwardNoopWhenComplete(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 3)
	q := sched.New()
	defer q.Close()

	p, err := New(q, db.Collection("items").Asc("n").Max(2))
	require.NoError(t, err)
	p.Forward()
	require.True(t, p.Complete())
	got := p.Value()

	p.Forward()
	assert.Equal(t, got, p.Value())
}

func TestSubscribeDeliversWindow(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 9)
	q := sched.New()
	defer q.Close()

	p, err := New(q, db.Collection("items").Asc("n").Max(2))
	require.NoError(t, err)

	var got []docdb.Row
	p.Subscribe(func(rows []docdb.Row, _ *values.Diff) { got = rows }, nil)
	q.Drain()
	require.Len(t, got, 2)

	p.Forward()
	q.Drain()
	assert.Len(t, got, 4)
}

func TestReset(t *testing.T) {
	db, _ := newTestDB(t)
	seed(db, 5)
	q := sched.New()
	defer q.Close()

	p, err := New(q, db.Collection("items").Asc("n").Max(2))
	require.NoError(t, err)
	p.Forward()
	require.Len(t, p.Value(), 4)

	p.Reset()
	assert.Len(t, p.Value(), 2)
}
