package docdb_test

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
	db := docdb.NewDatabase(docdb.Schema{"widgets": {}}, provider)
	t.Cleanup(db.Close)
	return db, q
}

func TestItemRefRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)
	item := db.Item("widgets", "w1")

	_, ok := item.Value()
	assert.False(t, ok)

	item.Set(values.Record{"n": 1.0})
	v, ok := item.Value()
	require.True(t, ok)
	assert.Equal(t, 1.0, v["n"])

	item.Update([]docdb.Update{{Key: "n", Op: values.OpSum, Value: 1.0}})
	v, ok = item.Value()
	require.True(t, ok)
	assert.Equal(t, 2.0, v["n"])

	item.Delete()
	_, ok = item.Value()
	assert.False(t, ok)

	item.Delete() // idempotent
	_, ok = item.Value()
	assert.False(t, ok)
}

func TestItemRefSubscribe(t *testing.T) {
	db, q := newTestDB(t)
	item := db.Item("widgets", "w1")

	var deliveries int
	item.Subscribe(func(values.Record, bool, *values.Diff) { deliveries++ }, nil)
	q.Drain()
	assert.Equal(t, 1, deliveries)

	item.Set(values.Record{"n": 1.0})
	q.Drain()
	assert.Equal(t, 2, deliveries)
}

func TestQueryRefBuilderAndTerminalOps(t *testing.T) {
	db, _ := newTestDB(t)
	db.Item("widgets", "a").Set(values.Record{"group": "x", "n": 1.0})
	db.Item("widgets", "b").Set(values.Record{"group": "x", "n": 2.0})
	db.Item("widgets", "c").Set(values.Record{"group": "y", "n": 3.0})

	q := db.Collection("widgets").Is("group", "x").Asc("n")
	rows := q.Value()
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)

	assert.Equal(t, 2, q.Count())

	updated := q.Update([]docdb.Update{{Key: "n", Op: values.OpSum, Value: 10.0}})
	assert.Equal(t, 2, updated)

	deleted := db.Collection("widgets").Is("group", "y").Delete()
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 2, db.Collection("widgets").Count())
}

func TestQueryRefSubscribeEmptyView(t *testing.T) {
	db, q := newTestDB(t)
	var got []docdb.Row
	delivered := false
	db.Collection("widgets").Subscribe(func(rows []docdb.Row, _ *values.Diff) {
		got = rows
		delivered = true
	}, nil)
	q.Drain()
	assert.True(t, delivered)
	assert.Empty(t, got)
}
