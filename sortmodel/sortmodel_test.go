package sortmodel

import (
	"cmp"
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/metrics"
	"github.com/ajwerner/treeproj/internal/treetest"
	"github.com/ajwerner/treeproj/treestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	intType    = reflect.TypeFor[int]()
	stringType = reflect.TypeFor[string]()
)

func makeList(t *testing.T, values ...int) (*treestore.Store, []treeproj.Iter) {
	t.Helper()
	s := treestore.New(intType, stringType)
	var iters []treeproj.Iter
	for _, v := range values {
		it, err := s.Append(nil, v)
		require.NoError(t, err)
		iters = append(iters, it)
	}
	return s, iters
}

func makeSorted(t *testing.T, src treeproj.Model, order Order) *Model {
	t.Helper()
	m, err := New(src)
	require.NoError(t, err)
	require.NoError(t, m.SetSortColumn(0, order))
	return m
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, treeproj.ErrNoSourceModel)
}

func TestRepositionOnChange(t *testing.T) {
	s, iters := makeList(t, 1, 2, 3)
	m := makeSorted(t, s, Ascending)
	require.Equal(t, []any{1, 2, 3}, treetest.Column(m, nil, 0))
	rec := treetest.Record(m)

	require.NoError(t, s.Set(iters[1], 0, 10))
	require.Equal(t, []string{
		"changed [1]",
		"reordered [] [0 2 1]",
	}, rec.Events())
	require.Equal(t, []any{1, 3, 10}, treetest.Column(m, nil, 0))
	treetest.CheckModel(t, m)

	// A change which keeps the position is only announced as a change.
	require.NoError(t, s.Set(iters[0], 0, 2))
	require.Equal(t, []string{"changed [0]"}, rec.Events())
}

func TestSetSortColumn(t *testing.T) {
	s, _ := makeList(t, 3, 1, 2)
	m, err := New(s)
	require.NoError(t, err)
	require.Equal(t, []any{3, 1, 2}, treetest.Column(m, nil, 0))
	id, _, ok := m.SortColumn()
	require.False(t, ok)
	require.Equal(t, UnsortedSortColumnID, id)

	rec := treetest.Record(m)
	require.NoError(t, m.SetSortColumn(0, Ascending))
	require.Equal(t, []string{"reordered [] [1 2 0]"}, rec.Events())
	require.Equal(t, []any{1, 2, 3}, treetest.Column(m, nil, 0))

	require.NoError(t, m.SetSortColumn(0, Descending))
	require.Equal(t, []string{"reordered [] [2 1 0]"}, rec.Events())
	require.Equal(t, []any{3, 2, 1}, treetest.Column(m, nil, 0))
	id, order, ok := m.SortColumn()
	require.True(t, ok)
	require.Equal(t, 0, id)
	require.Equal(t, Descending, order)

	// Selecting the current ordering again is a no-op.
	require.NoError(t, m.SetSortColumn(0, Descending))
	require.Empty(t, rec.Events())

	require.NoError(t, m.SetSortColumn(UnsortedSortColumnID, Ascending))
	require.Equal(t, []string{"reordered [] [0 2 1]"}, rec.Events())
	require.Equal(t, []any{3, 1, 2}, treetest.Column(m, nil, 0))
}

func TestSetSortColumnErrors(t *testing.T) {
	s, _ := makeList(t, 1)
	m, err := New(s)
	require.NoError(t, err)
	require.ErrorIs(t, m.SetSortColumn(2, Ascending), treeproj.ErrColumnOutOfRange)
	require.ErrorIs(t, m.SetSortColumn(-3, Ascending), treeproj.ErrColumnOutOfRange)
	require.ErrorIs(t, m.SetSortColumn(DefaultSortColumnID, Ascending), ErrNoDefaultSortFunc)
	require.ErrorIs(t, m.SetSortFunc(7, nil), treeproj.ErrColumnOutOfRange)
}

func TestSortFuncs(t *testing.T) {
	s := treestore.New(intType, stringType)
	for i, name := range []string{"ccc", "a", "bb"} {
		_, err := s.Append(nil, i, name)
		require.NoError(t, err)
	}
	m, err := New(s)
	require.NoError(t, err)

	require.NoError(t, m.SetSortColumn(1, Ascending))
	require.Equal(t, []any{"a", "bb", "ccc"}, treetest.Column(m, nil, 1))

	byLength := func(src treeproj.Model, a, b treeproj.Iter) int {
		return cmp.Compare(len(src.Value(a, 1).(string)), len(src.Value(b, 1).(string)))
	}
	require.NoError(t, m.SetSortColumn(1, Descending))
	require.Equal(t, []any{"ccc", "bb", "a"}, treetest.Column(m, nil, 1))
	reverseAlpha := func(src treeproj.Model, a, b treeproj.Iter) int {
		return -strings.Compare(src.Value(a, 1).(string), src.Value(b, 1).(string))
	}
	require.NoError(t, m.SetSortFunc(1, reverseAlpha))
	require.Equal(t, []any{"a", "bb", "ccc"}, treetest.Column(m, nil, 1))

	require.False(t, m.HasDefaultSortFunc())
	m.SetDefaultSortFunc(byLength)
	require.True(t, m.HasDefaultSortFunc())
	require.NoError(t, m.SetSortColumn(DefaultSortColumnID, Ascending))
	require.Equal(t, []any{"a", "bb", "ccc"}, treetest.Column(m, nil, 1))
	_, _, ok := m.SortColumn()
	require.False(t, ok)

	m.ResetDefaultSortFunc()
	require.False(t, m.HasDefaultSortFunc())
	id, _, _ := m.SortColumn()
	require.Equal(t, UnsortedSortColumnID, id)
	require.Equal(t, []any{"ccc", "a", "bb"}, treetest.Column(m, nil, 1))
}

func TestInsertAndDelete(t *testing.T) {
	s, iters := makeList(t, 5, 1, 3)
	m := makeSorted(t, s, Ascending)
	require.Equal(t, []any{1, 3, 5}, treetest.Column(m, nil, 0))
	rec := treetest.Record(m)

	_, err := s.Append(nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"inserted [1]"}, rec.Events())
	_, err = s.Insert(nil, 0, 9)
	require.NoError(t, err)
	require.Equal(t, []string{"inserted [4]"}, rec.Events())
	require.Equal(t, []any{1, 2, 3, 5, 9}, treetest.Column(m, nil, 0))

	require.True(t, s.Remove(iters[0]))
	require.Equal(t, []string{"deleted [3]"}, rec.Events())
	require.Equal(t, []any{1, 2, 3, 9}, treetest.Column(m, nil, 0))

	for _, cpath := range []treeproj.Path{{0}, {1}, {2}, {3}} {
		path, ok := m.ConvertChildPathToPath(cpath)
		require.True(t, ok)
		back, ok := m.ConvertPathToChildPath(path)
		require.True(t, ok)
		require.Equal(t, cpath, back)
	}
	treetest.CheckModel(t, m)
}

func TestSourceReorder(t *testing.T) {
	s, _ := makeList(t, 1, 2, 3)

	// Without a sort column the projection follows the source order.
	unsorted, err := New(s)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, treetest.Column(unsorted, nil, 0))
	urec := treetest.Record(unsorted)

	sorted := makeSorted(t, s, Descending)
	require.Equal(t, []any{3, 2, 1}, treetest.Column(sorted, nil, 0))
	srec := treetest.Record(sorted)

	require.NoError(t, s.Reorder(nil, []int{2, 0, 1}))
	require.Equal(t, []string{"reordered [] [2 0 1]"}, urec.Events())
	require.Equal(t, []any{3, 1, 2}, treetest.Column(unsorted, nil, 0))

	require.Empty(t, srec.Events())
	require.Equal(t, []any{3, 2, 1}, treetest.Column(sorted, nil, 0))
	for i, want := range []treeproj.Path{{0}, {2}, {1}} {
		cpath, ok := sorted.ConvertPathToChildPath(treeproj.Path{i})
		require.True(t, ok)
		require.Equal(t, want, cpath)
	}
}

func TestNestedLevels(t *testing.T) {
	s := treestore.New(intType)
	parent, err := s.Append(nil, 1)
	require.NoError(t, err)
	var children []treeproj.Iter
	for _, v := range []int{30, 10, 20} {
		it, err := s.Append(&parent, v)
		require.NoError(t, err)
		children = append(children, it)
	}
	m := makeSorted(t, s, Ascending)
	it, ok := m.GetIter(treeproj.Path{0})
	require.True(t, ok)
	require.True(t, m.IterHasChild(it))
	require.Equal(t, []any{10, 20, 30}, treetest.Column(m, &it, 0))
	rec := treetest.Record(m)

	require.NoError(t, s.Set(children[1], 0, 40))
	require.Equal(t, []string{
		"changed [0 0]",
		"reordered [0] [1 2 0]",
	}, rec.Events())
	it, _ = m.GetIter(treeproj.Path{0})
	require.Equal(t, []any{20, 30, 40}, treetest.Column(m, &it, 0))

	require.Equal(t, "1\n  20\n  30\n  40\n", treetest.Dump(m, 0))
	treetest.CheckModel(t, m)
}

func TestParentChangeIsNotAToggle(t *testing.T) {
	s := treestore.New(intType)
	a, err := s.Append(nil, 1)
	require.NoError(t, err)
	_, err = s.Append(&a, 5)
	require.NoError(t, err)
	_, err = s.Append(nil, 2)
	require.NoError(t, err)
	m := makeSorted(t, s, Ascending)
	require.Equal(t, []any{1, 2}, treetest.Column(m, nil, 0))
	rec := treetest.Record(m)

	require.NoError(t, s.Set(a, 0, 0))
	require.Equal(t, []string{"changed [0]"}, rec.Events())

	require.NoError(t, s.Set(a, 0, 3))
	require.Equal(t, []string{"changed [0]", "reordered [] [1 0]"}, rec.Events())
	require.Equal(t, "2\n3\n  5\n", treetest.Dump(m, 0))
}

func TestChangeBeforeFirstQuery(t *testing.T) {
	s, iters := makeList(t, 1, 2, 3)
	m := makeSorted(t, s, Ascending)
	rec := treetest.Record(m)

	require.NoError(t, s.Set(iters[1], 0, 7))
	require.Empty(t, rec.Events())
	require.Zero(t, m.Stats().Levels)
	require.Equal(t, []any{1, 3, 7}, treetest.Column(m, nil, 0))
}

func TestIterConversions(t *testing.T) {
	s, iters := makeList(t, 3, 1, 2)
	m := makeSorted(t, s, Ascending)
	for i, citer := range iters {
		it, ok := m.ConvertChildIterToIter(citer)
		require.True(t, ok)
		back, ok := m.ConvertIterToChildIter(it)
		require.True(t, ok)
		require.Equal(t, citer, back)
		require.Equal(t, s.Value(citer, 0), m.Value(it, 0), "row %d", i)
	}
}

func TestRefsAndClearCache(t *testing.T) {
	s := treestore.New(intType)
	for i := 0; i < 3; i++ {
		parent, err := s.Append(nil, i)
		require.NoError(t, err)
		for j := 0; j < 2; j++ {
			_, err := s.Append(&parent, j)
			require.NoError(t, err)
		}
	}
	m := makeSorted(t, s, Descending)
	treetest.CheckModel(t, m)
	require.Equal(t, 4, m.Stats().Levels)

	it, ok := m.GetIter(treeproj.Path{1, 0})
	require.True(t, ok)
	m.RefNode(it)
	citer, ok := m.ConvertIterToChildIter(it)
	require.True(t, ok)
	// The level holds one reference, the consumer another.
	require.Equal(t, 2, s.RefCount(citer))

	m.ClearCache()
	require.Equal(t, 2, m.Stats().Levels)

	m.UnrefNode(it)
	require.Equal(t, 1, s.RefCount(citer))
	m.ClearCache()
	require.Equal(t, 1, m.Stats().Levels)
	require.Equal(t, 0, m.Stats().ZeroRefLevels)
	require.Equal(t, 0, s.TotalRefs())

	m.Detach()
	require.Equal(t, 0, m.IterNChildren(nil))
	require.Equal(t, 0, m.Stats().Levels)
}

func TestDragDataDelete(t *testing.T) {
	s, _ := makeList(t, 3, 1, 2)
	m := makeSorted(t, s, Ascending)
	require.True(t, m.RowDraggable(treeproj.Path{0}))
	require.False(t, m.RowDraggable(treeproj.Path{5}))
	rec := treetest.Record(m)
	require.True(t, m.DragDataDelete(treeproj.Path{0}))
	require.Equal(t, []string{"deleted [0]"}, rec.Events())
	require.Equal(t, []any{3, 2}, treetest.Column(s, nil, 0))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, iters := makeList(t, 1, 2, 3)
	m, err := New(s, WithRegisterer(reg))
	require.NoError(t, err)
	require.NoError(t, m.SetSortColumn(0, Ascending))
	treetest.CheckModel(t, m)
	require.NoError(t, s.Set(iters[0], 0, 7))

	n, err := testutil.GatherAndCount(reg, "treeproj_events_emitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.EventsEmitted.WithLabelValues(metrics.KindReordered)))
}

// checkSorted verifies that every level of m is ordered and holds the same
// values as the corresponding level of the source.
func checkSorted(t *testing.T, m *Model, parent *treeproj.Iter, desc string) {
	t.Helper()
	got := treetest.Column(m, parent, 0)
	var cparent *treeproj.Iter
	if parent != nil {
		c, ok := m.ConvertIterToChildIter(*parent)
		require.True(t, ok, desc)
		cparent = &c
	}
	want := treetest.Column(m.Model(), cparent, 0)
	require.ElementsMatch(t, want, got, desc)
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1].(int), got[i].(int), "%s: %v", desc, got)
	}
	for it, ok := m.IterChildren(parent); ok; it, ok = m.IterNext(it) {
		if m.IterHasChild(it) {
			checkSorted(t, m, &it, desc)
		}
	}
}

func TestRandomizedOrder(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed))
		s := treestore.New(intType)
		m := makeSorted(t, s, Ascending)
		for i := 0; i < 300; i++ {
			desc := treetest.Mutate(rng, s, 20)
			checkSorted(t, m, nil, desc)
			treetest.CheckModel(t, m)
			if rng.IntN(10) == 0 {
				m.ClearCache()
			}
		}
	}
}

func TestCompareValues(t *testing.T) {
	for _, tc := range []struct {
		a, b any
		want int
	}{
		{nil, nil, 0},
		{nil, 1, -1},
		{1, nil, 1},
		{1, 2, -1},
		{uint8(3), uint8(2), 1},
		{2.5, 2.5, 0},
		{"b", "a", 1},
		{false, true, -1},
		{true, true, 0},
		{1, "a", 0},
		{struct{}{}, struct{}{}, 0},
	} {
		assert.Equal(t, tc.want, CompareValues(tc.a, tc.b), "%v %v", tc.a, tc.b)
	}
}

func TestOrderString(t *testing.T) {
	require.Equal(t, "ascending", Ascending.String())
	require.Equal(t, "descending", Descending.String())
	require.True(t, errors.Is(ErrNoDefaultSortFunc, ErrNoDefaultSortFunc))
}
