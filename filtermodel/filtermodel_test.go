package filtermodel

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/metrics"
	"github.com/ajwerner/treeproj/internal/treetest"
	"github.com/ajwerner/treeproj/sortmodel"
	"github.com/ajwerner/treeproj/treestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	intType  = reflect.TypeFor[int]()
	boolType = reflect.TypeFor[bool]()
)

func greaterThan(n int) VisibleFunc {
	return func(src treeproj.Model, it treeproj.Iter) bool {
		v, _ := src.Value(it, 0).(int)
		return v > n
	}
}

func appendRows(t *testing.T, s *treestore.Store, parent *treeproj.Iter, values ...int) []treeproj.Iter {
	t.Helper()
	var iters []treeproj.Iter
	for _, v := range values {
		it, err := s.Append(parent, v)
		require.NoError(t, err)
		iters = append(iters, it)
	}
	return iters
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, treeproj.ErrNoSourceModel)
}

func TestInsertThenVisible(t *testing.T) {
	s := treestore.New(intType)
	appendRows(t, s, nil, 1, 2, 3)
	m, err := New(s, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetVisibleFunc(greaterThan(10)))
	require.Equal(t, 0, m.IterNChildren(nil))
	// The empty root level keeps a placeholder for the first row.
	require.Equal(t, 1, m.Stats().Elements)
	rec := treetest.Record(m)

	it, err := s.Insert(nil, 0, 5)
	require.NoError(t, err)
	require.Empty(t, rec.Events())

	require.NoError(t, s.Set(it, 0, 15))
	require.Equal(t, []string{"inserted [0]"}, rec.Events())
	require.Equal(t, []any{15}, treetest.Column(m, nil, 0))

	path, ok := m.ConvertChildPathToPath(treeproj.Path{0})
	require.True(t, ok)
	require.Equal(t, treeproj.Path{0}, path)
	_, ok = m.ConvertChildPathToPath(treeproj.Path{1})
	require.False(t, ok)
	treetest.CheckModel(t, m)
}

func TestDeleteFreesDescendantLevels(t *testing.T) {
	s := treestore.New(intType)
	top := appendRows(t, s, nil, 1)
	mid := appendRows(t, s, &top[0], 2)
	appendRows(t, s, &mid[0], 3)
	m, err := New(s, nil)
	require.NoError(t, err)

	grandchild, ok := m.GetIter(treeproj.Path{0, 0, 0})
	require.True(t, ok)
	require.Equal(t, 3, m.Value(grandchild, 0))
	m.RefNode(grandchild)
	require.Equal(t, 3, m.Stats().Levels)
	rec := treetest.Record(m)

	require.True(t, s.Remove(mid[0]))
	require.Equal(t, []string{
		"deleted [0 0]",
		"has-child-toggled [0]",
		"has-child-toggled [0]",
	}, rec.Events())

	m.UnrefNode(grandchild)
	st := m.Stats()
	require.Equal(t, 1, st.Levels)
	require.Equal(t, 1, st.Elements)
	require.Equal(t, 0, st.ZeroRefLevels)
	require.Equal(t, 0, s.TotalRefs())
	require.False(t, m.IterHasChild(mustIter(t, m, 0)))
}

func mustIter(t *testing.T, m treeproj.Model, indices ...int) treeproj.Iter {
	t.Helper()
	it, ok := m.GetIter(treeproj.NewPath(indices...))
	require.True(t, ok, "GetIter(%v)", indices)
	return it
}

func TestVirtualRoot(t *testing.T) {
	s := treestore.New(intType)
	top := appendRows(t, s, nil, 0, 1, 2)
	appendRows(t, s, &top[2], 10, 11)
	m, err := New(s, treeproj.Path{2})
	require.NoError(t, err)
	require.Equal(t, []any{10, 11}, treetest.Column(m, nil, 0))
	require.Equal(t, 1, s.RefCount(top[2]))
	rec := treetest.Record(m)

	_, err = s.Insert(nil, 0, 99)
	require.NoError(t, err)
	require.Equal(t, treeproj.Path{3}, m.VirtualRoot())
	require.Empty(t, rec.Events())

	appendRows(t, s, &top[2], 12)
	require.Equal(t, []string{"inserted [2]"}, rec.Events())
	cpath, ok := m.ConvertPathToChildPath(treeproj.Path{2})
	require.True(t, ok)
	require.Equal(t, treeproj.Path{3, 2}, cpath)

	require.NoError(t, s.Reorder(&top[2], []int{2, 0, 1}))
	require.Equal(t, []string{"reordered [] [2 0 1]"}, rec.Events())
	require.Equal(t, []any{12, 10, 11}, treetest.Column(m, nil, 0))

	require.NoError(t, s.Reorder(nil, []int{3, 0, 1, 2}))
	require.Equal(t, treeproj.Path{0}, m.VirtualRoot())
	require.Empty(t, rec.Events())
	path, ok := m.ConvertChildPathToPath(treeproj.Path{0, 1})
	require.True(t, ok)
	require.Equal(t, treeproj.Path{1}, path)
	_, ok = m.ConvertChildPathToPath(treeproj.Path{0})
	require.False(t, ok)
	treetest.CheckModel(t, m)

	require.True(t, s.Remove(top[2]))
	require.Equal(t, []string{"deleted [0]", "deleted [0]", "deleted [0]"}, rec.Events())
	require.Equal(t, 0, m.IterNChildren(nil))
	require.Equal(t, 0, s.TotalRefs())

	// The model stays empty even if a row takes the place of the root.
	appendRows(t, s, nil, 7)
	require.Equal(t, 0, m.IterNChildren(nil))
	require.Empty(t, rec.Events())
}

func TestVirtualRootDetach(t *testing.T) {
	s := treestore.New(intType)
	top := appendRows(t, s, nil, 0)
	mid := appendRows(t, s, &top[0], 1)
	appendRows(t, s, &mid[0], 2, 3)
	m, err := New(s, treeproj.Path{0, 0})
	require.NoError(t, err)
	require.Equal(t, 1, s.RefCount(top[0]))
	require.Equal(t, 1, s.RefCount(mid[0]))

	it := mustIter(t, m, 1)
	m.RefNode(it)
	require.Equal(t, "2\n3\n", treetest.Dump(m, 0))
	require.NotZero(t, s.TotalRefs())

	m.Detach()
	require.Equal(t, 0, s.TotalRefs())
	require.Equal(t, 0, m.IterNChildren(nil))
	require.Nil(t, m.Model())
}

func TestVirtualRootAncestorDeletedLater(t *testing.T) {
	s := treestore.New(intType)
	top := appendRows(t, s, nil, 0)
	mid := appendRows(t, s, &top[0], 1)
	leaf := appendRows(t, s, &mid[0], 2)
	appendRows(t, s, &leaf[0], 3)
	m, err := New(s, treeproj.Path{0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, []any{3}, treetest.Column(m, nil, 0))
	rec := treetest.Record(m)

	// Another consumer of the store holds a reference of its own.
	s.RefNode(top[0])
	require.Equal(t, 2, s.RefCount(top[0]))

	require.True(t, s.Remove(leaf[0]))
	require.Equal(t, []string{"deleted [0]"}, rec.Events())
	require.Equal(t, 1, s.RefCount(top[0]))
	require.Equal(t, 0, s.RefCount(mid[0]))

	require.True(t, s.Remove(mid[0]))
	require.Empty(t, rec.Events())
	require.Equal(t, 1, s.RefCount(top[0]))
	require.Equal(t, 1, s.TotalRefs())

	_, err = s.Append(&top[0], 4)
	require.NoError(t, err)
	require.Equal(t, 0, m.IterNChildren(nil))
	require.Empty(t, rec.Events())

	m.Detach()
	require.Equal(t, 1, s.TotalRefs())
	s.UnrefNode(top[0])
	require.Equal(t, 0, s.TotalRefs())
}

func TestVisibleColumn(t *testing.T) {
	s := treestore.New(intType, boolType)
	r0, err := s.Append(nil, 0, true)
	require.NoError(t, err)
	r00, err := s.Append(&r0, 1, true)
	require.NoError(t, err)
	r1, err := s.Append(nil, 2, true)
	require.NoError(t, err)
	r2, err := s.Append(nil, 3, false)
	require.NoError(t, err)

	m, err := New(s, nil)
	require.NoError(t, err)
	require.ErrorIs(t, m.SetVisibleColumn(2), treeproj.ErrColumnOutOfRange)
	require.ErrorIs(t, m.SetVisibleColumn(0), treeproj.ErrColumnType)
	require.NoError(t, m.SetVisibleColumn(1))
	require.ErrorIs(t, m.SetVisibleColumn(1), treeproj.ErrVisibleMethodSet)
	require.ErrorIs(t, m.SetVisibleFunc(greaterThan(0)), treeproj.ErrVisibleMethodSet)

	require.Equal(t, "0\n  1\n2\n", treetest.Dump(m, 0))
	rec := treetest.Record(m)

	require.NoError(t, s.Set(r1, 1, false))
	require.Equal(t, []string{"deleted [1]"}, rec.Events())
	require.NoError(t, s.Set(r2, 1, true))
	require.Equal(t, []string{"inserted [1]"}, rec.Events())
	require.Equal(t, []any{0, 3}, treetest.Column(m, nil, 0))

	require.NoError(t, s.Set(r0, 1, false))
	require.Equal(t, []string{"deleted [0]"}, rec.Events())
	require.Equal(t, 0, s.RefCount(r00))
	require.NoError(t, s.Set(r0, 1, true))
	require.Equal(t, []string{"inserted [0]", "has-child-toggled [0]"}, rec.Events())
	require.Equal(t, "0\n  1\n3\n", treetest.Dump(m, 0))

	require.NoError(t, s.Set(r00, 1, false))
	require.Equal(t, []string{"deleted [0 0]", "has-child-toggled [0]"}, rec.Events())
	require.False(t, m.IterHasChild(mustIter(t, m, 0)))
	require.NoError(t, s.Set(r00, 1, true))
	require.Equal(t, []string{"inserted [0 0]", "has-child-toggled [0]"}, rec.Events())
	treetest.CheckModel(t, m)
}

func TestVisibleMethodSetOnce(t *testing.T) {
	s := treestore.New(intType, boolType)
	appendRows(t, s, nil, 1, 2)
	m, err := New(s, nil)
	require.NoError(t, err)

	require.NoError(t, m.SetVisibleFunc(nil))
	require.ErrorIs(t, m.SetVisibleFunc(greaterThan(1)), treeproj.ErrVisibleMethodSet)
	require.ErrorIs(t, m.SetVisibleColumn(1), treeproj.ErrVisibleMethodSet)
	require.Equal(t, []any{1, 2}, treetest.Column(m, nil, 0))

	// A rejected column does not count as a visibility method.
	other, err := New(s, nil)
	require.NoError(t, err)
	require.ErrorIs(t, other.SetVisibleColumn(0), treeproj.ErrColumnType)
	require.NoError(t, other.SetVisibleFunc(greaterThan(1)))
	require.Equal(t, []any{2}, treetest.Column(other, nil, 0))
}

func TestModifyFunc(t *testing.T) {
	s := treestore.New(intType)
	appendRows(t, s, nil, 1, 2, 3)
	m, err := New(s, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetVisibleFunc(greaterThan(1)))

	stringType := reflect.TypeFor[string]()
	require.NoError(t, m.SetModifyFunc([]reflect.Type{stringType, intType},
		func(src treeproj.Model, it treeproj.Iter, col int) any {
			v := src.Value(it, 0).(int)
			if col == 0 {
				return fmt.Sprintf("row %d", v)
			}
			return v * v
		}))
	require.ErrorIs(t, m.SetModifyFunc(nil, nil), treeproj.ErrModifyFuncSet)

	require.Equal(t, 2, m.NColumns())
	require.Equal(t, stringType, m.ColumnType(0))
	require.Nil(t, m.ColumnType(2))
	require.Equal(t, []any{"row 2", "row 3"}, treetest.Column(m, nil, 0))
	require.Equal(t, []any{4, 9}, treetest.Column(m, nil, 1))
	require.Nil(t, m.Value(mustIter(t, m, 0), 2))

	queried, err := New(s, nil)
	require.NoError(t, err)
	require.Equal(t, 1, queried.NColumns())
	require.ErrorIs(t, queried.SetModifyFunc([]reflect.Type{intType}, nil), treeproj.ErrModifyFuncSet)
}

func TestRefilter(t *testing.T) {
	s := treestore.New(intType)
	appendRows(t, s, nil, 1, 5, 3, 8)
	threshold := 4
	m, err := New(s, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetVisibleFunc(func(src treeproj.Model, it treeproj.Iter) bool {
		return src.Value(it, 0).(int) > threshold
	}))
	require.Equal(t, []any{5, 8}, treetest.Column(m, nil, 0))
	rec := treetest.Record(m)

	threshold = 2
	m.Refilter()
	require.Equal(t, []string{
		"changed [0]",
		"inserted [1]",
		"changed [2]",
	}, rec.Events())
	require.Equal(t, []any{5, 3, 8}, treetest.Column(m, nil, 0))

	threshold = 6
	m.Refilter()
	require.Equal(t, []string{
		"deleted [0]",
		"deleted [0]",
		"changed [0]",
	}, rec.Events())
	require.Equal(t, []any{8}, treetest.Column(m, nil, 0))
	treetest.CheckModel(t, m)
}

// noisy is a Store which can be made to announce changes it never made.
type noisy struct {
	*treestore.Store
	extra treeproj.Emitter
}

func (n *noisy) Subscribe(o treeproj.Observer) (unsubscribe func()) {
	u1, u2 := n.Store.Subscribe(o), n.extra.Subscribe(o)
	return func() { u1(); u2() }
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := &noisy{Store: treestore.New(intType)}
	top := appendRows(t, s.Store, nil, 1, 2)
	appendRows(t, s.Store, &top[0], 3)
	m, err := New(s, nil, WithRegisterer(reg))
	require.NoError(t, err)
	treetest.CheckModel(t, m)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.CachedLevels))

	require.True(t, s.Remove(top[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.CachedLevels))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.EventsEmitted.WithLabelValues(metrics.KindDeleted)))

	rec := treetest.Record(m)
	s.extra.EmitRowChanged(treeproj.Path{5, 5}, treeproj.Iter{})
	require.Empty(t, rec.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.TranslationsAborted.WithLabelValues(metrics.KindChanged)))
	require.Equal(t, []any{2}, treetest.Column(m, nil, 0))
}

// transient hides the persistence of the iters of a Store.
type transient struct{ *treestore.Store }

func (transient) Flags() treeproj.Flags { return 0 }

// expectedDump renders the rows of src the filter should show below parent.
func expectedDump(src treeproj.Model, parent *treeproj.Iter, visible VisibleFunc, depth int, b *strings.Builder) {
	for it, ok := src.IterChildren(parent); ok; it, ok = src.IterNext(it) {
		if !visible(src, it) {
			continue
		}
		fmt.Fprintf(b, "%s%v\n", strings.Repeat("  ", depth), src.Value(it, 0))
		expectedDump(src, &it, visible, depth+1, b)
	}
}

func notMultipleOf3(src treeproj.Model, it treeproj.Iter) bool {
	return src.Value(it, 0).(int)%3 != 0
}

func checkFilter(t *testing.T, m *Model, desc string) {
	t.Helper()
	var b strings.Builder
	expectedDump(m.Model(), nil, notMultipleOf3, 0, &b)
	require.Equal(t, b.String(), treetest.Dump(m, 0), desc)
	treetest.CheckModel(t, m)
	for _, path := range treetest.Paths(m) {
		cpath, ok := m.ConvertPathToChildPath(path)
		require.True(t, ok, "%s: %v", desc, path)
		back, ok := m.ConvertChildPathToPath(cpath)
		require.True(t, ok, "%s: %v", desc, cpath)
		require.Equal(t, path, back, desc)

		it := mustIter(t, m, path...)
		citer, ok := m.ConvertIterToChildIter(it)
		require.True(t, ok, desc)
		it2, ok := m.ConvertChildIterToIter(citer)
		require.True(t, ok, desc)
		p2, _ := m.GetPath(it2)
		require.Equal(t, path, p2, desc)
	}
}

func TestRandomizedVisibility(t *testing.T) {
	for _, tc := range []struct {
		name   string
		source func(s *treestore.Store) (treeproj.Model, func())
	}{
		{"store", func(s *treestore.Store) (treeproj.Model, func()) {
			return s, func() {}
		}},
		{"transient", func(s *treestore.Store) (treeproj.Model, func()) {
			return transient{s}, func() {}
		}},
		{"sorted", func(s *treestore.Store) (treeproj.Model, func()) {
			sm, err := sortmodel.New(s)
			require.NoError(t, err)
			require.NoError(t, sm.SetSortColumn(0, sortmodel.Descending))
			return sm, sm.Detach
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for seed := uint64(0); seed < 8; seed++ {
				rng := rand.New(rand.NewPCG(seed, 42))
				s := treestore.New(intType)
				src, detach := tc.source(s)
				m, err := New(src, nil)
				require.NoError(t, err)
				require.NoError(t, m.SetVisibleFunc(notMultipleOf3))

				var held []treeproj.Iter
				for i := 0; i < 300; i++ {
					desc := fmt.Sprintf("seed %d step %d: %s", seed, i, treetest.Mutate(rng, s, 20))
					checkFilter(t, m, desc)
					switch rng.IntN(10) {
					case 0:
						m.ClearCache()
					case 1, 2:
						if paths := treetest.Paths(m); len(paths) > 0 {
							it := mustIter(t, m, paths[rng.IntN(len(paths))]...)
							m.RefNode(it)
							held = append(held, it)
						}
					case 3:
						if len(held) > 0 {
							j := rng.IntN(len(held))
							m.UnrefNode(held[j])
							held = append(held[:j], held[j+1:]...)
						}
					}
				}
				for _, it := range held {
					m.UnrefNode(it)
				}
				m.ClearCache()
				require.Equal(t, 0, m.Stats().ZeroRefLevels)
				m.Detach()
				detach()
				require.Equal(t, 0, s.TotalRefs())
			}
		})
	}
}
