package memstore

import (
	"testing"

	"docdb/query"
	"docdb/sched"
	"docdb/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *sched.Queue) {
	q := sched.New()
	t.Cleanup(q.Close)
	s := New(q)
	t.Cleanup(s.Close)
	return s, q
}

func TestBasicAddDelete(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetItem("basics", "a", values.Record{"n": 1.0})
	s.SetItem("basics", "b", values.Record{"n": 2.0})
	s.DeleteItem("basics", "a")

	assert.Equal(t, 1, s.CountQuery("basics", query.Descriptor{}))
	_, ok := s.GetItem("basics", "a")
	assert.False(t, ok)
	rec, ok := s.GetItem("basics", "b")
	require.True(t, ok)
	assert.Equal(t, 2.0, rec["n"])
}

func TestQueryCorrectness(t *testing.T) {
	s, _ := newTestStore(t)
	groups := []string{"a", "b", "c"}
	for i := 0; i < 9; i++ {
		s.AddItem("basics", values.Record{"group": groups[i%3]})
	}
	rows := s.GetQuery("basics", query.Descriptor{}.Is("group", "a"))
	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "a", r.Record["group"])
	}
}

func TestContainsFilter(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddItem("basics", values.Record{"tags": []any{"odd", "red"}})
	s.AddItem("basics", values.Record{"tags": []any{"even"}})

	rows := s.GetQuery("basics", query.Descriptor{}.Contains("tags", "odd"))
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"odd", "red"}, rows[0].Record["tags"])
}

func TestSortAndLimitWithDeletes(t *testing.T) {
	s, q := newTestStore(t)
	for n := 100.0; n <= 900; n += 100 {
		s.AddItem("basics", values.Record{"num": n})
	}
	d, err := query.Descriptor{}.SortAsc("num").WithLimit(2)
	require.NoError(t, err)

	rows := s.GetQuery("basics", d)
	require.Len(t, rows, 2)
	assert.Equal(t, 100.0, rows[0].Record["num"])
	assert.Equal(t, 200.0, rows[1].Record["num"])

	var deliveries [][]query.Row
	s.SubscribeQuery("basics", d, func(view []query.Row, _ *values.Diff) {
		deliveries = append(deliveries, view)
	}, nil)
	q.Drain()
	require.Len(t, deliveries, 1)

	// delete the num=100 record: a new view [200, 300] must be delivered.
	var idOf100 string
	for _, r := range s.GetQuery("basics", query.Descriptor{}) {
		if r.Record["num"] == 100.0 {
			idOf100 = r.ID
		}
	}
	require.NotEmpty(t, idOf100)
	s.DeleteItem("basics", idOf100)
	q.Drain()
	require.Len(t, deliveries, 2)
	assert.Equal(t, 200.0, deliveries[1][0].Record["num"])
	assert.Equal(t, 300.0, deliveries[1][1].Record["num"])

	// delete the num=900 record: outside the limited slice, no new delivery.
	var idOf900 string
	for _, r := range s.GetQuery("basics", query.Descriptor{}) {
		if r.Record["num"] == 900.0 {
			idOf900 = r.ID
		}
	}
	require.NotEmpty(t, idOf900)
	s.DeleteItem("basics", idOf900)
	q.Drain()
	assert.Len(t, deliveries, 2, "a delete outside the limited window must not redeliver")
}

func TestCoalescedNotification(t *testing.T) {
	s, q := newTestStore(t)

	var deliveries [][]string
	s.SubscribeQuery("basics", query.Descriptor{}, func(view []query.Row, _ *values.Diff) {
		var names []string
		for _, r := range view {
			names = append(names, r.ID)
		}
		deliveries = append(deliveries, names)
	}, nil)
	q.Drain()
	require.Len(t, deliveries, 1)

	xID := s.AddItem("basics", values.Record{"name": "x"})
	yID := s.AddItem("basics", values.Record{"name": "y"})
	s.DeleteItem("basics", xID)
	q.Drain()

	require.Len(t, deliveries, 2)
	assert.Equal(t, []string{yID}, deliveries[1])
}

func TestSubscribeThenImmediatelyUnsubscribeDeliversNothing(t *testing.T) {
	s, q := newTestStore(t)
	s.AddItem("basics", values.Record{"n": 1.0})

	called := false
	unsub := s.SubscribeItem("basics", "missing", func(values.Record, bool, *values.Diff) { called = true }, nil)
	unsub()
	q.Drain()
	assert.False(t, called)
}

func TestEmptyViewDeliveryOnSubscribe(t *testing.T) {
	s, q := newTestStore(t)
	var got []query.Row
	delivered := false
	s.SubscribeQuery("empty", query.Descriptor{}, func(view []query.Row, _ *values.Diff) {
		got = view
		delivered = true
	}, nil)
	q.Drain()
	assert.True(t, delivered)
	assert.Empty(t, got)
}

func TestNewSubscriberToLiveQueryGetsCachedView(t *testing.T) {
	s, q := newTestStore(t)
	s.AddItem("basics", values.Record{"n": 1.0})

	var first, second int
	s.SubscribeQuery("basics", query.Descriptor{}, func(view []query.Row, _ *values.Diff) { first++ }, nil)
	q.Drain()
	require.Equal(t, 1, first)

	s.SubscribeQuery("basics", query.Descriptor{}, func(view []query.Row, _ *values.Diff) { second++ }, nil)
	q.Drain()
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, first, "existing subscriber must not be redelivered when a new one joins with no change")
}

func TestUpdateItemOnAbsentTreatsAsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	s.UpdateItem("basics", "new", []values.Update{{Key: "n", Op: values.OpSet, Value: 1}})
	rec, ok := s.GetItem("basics", "new")
	require.True(t, ok)
	assert.Equal(t, 1, rec["n"])
}

func TestUpdateQueryAppliesToAllMatches(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddItem("basics", values.Record{"group": "a", "n": 1.0})
	s.AddItem("basics", values.Record{"group": "a", "n": 2.0})
	s.AddItem("basics", values.Record{"group": "b", "n": 3.0})

	n := s.UpdateQuery("basics", query.Descriptor{}.Is("group", "a"),
		[]values.Update{{Key: "n", Op: values.OpSum, Value: 10.0}})
	assert.Equal(t, 2, n)

	var got []any
	for _, r := range s.GetQuery("basics", query.Descriptor{}.Is("group", "a")) {
		got = append(got, r.Record["n"])
	}
	assert.ElementsMatch(t, []any{11.0, 12.0}, got)
}

func TestInEmptyArrayMatchesNothing(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddItem("basics", values.Record{"status": "open"})
	rows := s.GetQuery("basics", query.Descriptor{}.In("status", []any{}))
	assert.Empty(t, rows)
}

func TestMaxExceedingMatchesYieldsAll(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddItem("basics", values.Record{"n": 1.0})
	s.AddItem("basics", values.Record{"n": 2.0})
	d, err := query.Descriptor{}.WithLimit(100)
	require.NoError(t, err)
	rows := s.GetQuery("basics", d)
	assert.Len(t, rows, 2)
}

func TestAddItemGeneratesDistinctIDs(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.AddItem("basics", values.Record{"n": 1.0})
	b := s.AddItem("basics", values.Record{"n": 2.0})
	assert.Len(t, a, idLength)
	assert.NotEqual(t, a, b)
}
