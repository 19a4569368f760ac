// Copyright 2021 Andrew Werner.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package sortmodel implements a projection of a tree model which presents
// the rows of every level sorted by a comparison function. The sort model
// never hides rows; it only reorders siblings.
package sortmodel

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/abstract"
	"github.com/ajwerner/treeproj/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultSortColumnID selects the default sort func as the ordering.
	DefaultSortColumnID = -1
	// UnsortedSortColumnID presents rows in the order of the source model.
	UnsortedSortColumnID = -2
)

// Order is the direction in which rows are sorted.
type Order uint8

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// CompareFunc orders two rows of the source model. It returns a negative
// number if a sorts before b, a positive number if it sorts after and zero
// if they are equal.
type CompareFunc func(src treeproj.Model, a, b treeproj.Iter) int

// ErrNoDefaultSortFunc is returned when DefaultSortColumnID is selected but
// no default sort func is set.
var ErrNoDefaultSortFunc = errors.New("no default sort func")

// Model is a sorted projection of a source tree model.
type Model struct {
	p       *abstract.Projection
	metrics *metrics.Metrics

	sortColumn  int
	order       Order
	funcs       map[int]CompareFunc
	defaultFunc CompareFunc
}

var (
	_ treeproj.Model      = (*Model)(nil)
	_ treeproj.DragSource = (*Model)(nil)
)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option configures a Model.
type Option func(*options)

// WithLogger sets the logger which receives records about source events
// that could not be translated.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the metrics of the model on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a sort model over src. Rows are presented unsorted until a
// sort column is set.
func New(src treeproj.Model, opts ...Option) (*Model, error) {
	if src == nil {
		return nil, treeproj.ErrNoSourceModel
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m := &Model{
		sortColumn: UnsortedSortColumnID,
		funcs:      make(map[int]CompareFunc),
	}
	cfg := abstract.Config{
		Policy: (*policy)(m),
		Logger: o.logger,
	}
	if o.registerer != nil {
		m.metrics = metrics.New(o.registerer, "sort")
		cfg.Metrics = m.metrics
	}
	m.p = abstract.New(src, cfg)
	return m, nil
}

// Model returns the source model.
func (m *Model) Model() treeproj.Model { return m.p.Source() }

// SetSortColumn selects the column, or one of the special ids, which
// orders the rows and the direction of the ordering. Cached levels are
// re-sorted.
func (m *Model) SetSortColumn(id int, order Order) error {
	switch {
	case id == UnsortedSortColumnID:
	case id == DefaultSortColumnID:
		if m.defaultFunc == nil {
			return ErrNoDefaultSortFunc
		}
	case id < 0 || id >= m.NColumns():
		return fmt.Errorf("sortmodel: sort column %d: %w", id, treeproj.ErrColumnOutOfRange)
	}
	if id == m.sortColumn && order == m.order {
		return nil
	}
	m.sortColumn, m.order = id, order
	m.p.Resort()
	return nil
}

// SortColumn returns the current sort column and order. ok is false if one
// of the special ids is selected.
func (m *Model) SortColumn() (id int, order Order, ok bool) {
	return m.sortColumn, m.order, m.sortColumn >= 0
}

// SetSortFunc sets the comparison used when column id is the sort column.
// A nil fn restores the default comparison of column values.
func (m *Model) SetSortFunc(id int, fn CompareFunc) error {
	if id < 0 || id >= m.NColumns() {
		return fmt.Errorf("sortmodel: sort func %d: %w", id, treeproj.ErrColumnOutOfRange)
	}
	if fn == nil {
		delete(m.funcs, id)
	} else {
		m.funcs[id] = fn
	}
	if m.sortColumn == id {
		m.p.Resort()
	}
	return nil
}

// SetDefaultSortFunc sets the comparison used when DefaultSortColumnID is
// the sort column. Setting a nil fn while the default column is selected
// leaves the rows in source order.
func (m *Model) SetDefaultSortFunc(fn CompareFunc) {
	m.defaultFunc = fn
	if m.sortColumn == DefaultSortColumnID {
		m.p.Resort()
	}
}

// HasDefaultSortFunc reports whether a default sort func is set.
func (m *Model) HasDefaultSortFunc() bool { return m.defaultFunc != nil }

// ResetDefaultSortFunc removes the default sort func. If it was in use the
// rows return to source order.
func (m *Model) ResetDefaultSortFunc() {
	m.SetDefaultSortFunc(nil)
	if m.sortColumn == DefaultSortColumnID {
		m.sortColumn = UnsortedSortColumnID
	}
}

// Resort re-sorts every cached level. It is needed when the sort func
// depends on state outside the source model.
func (m *Model) Resort() { m.p.Resort() }

// ConvertChildPathToPath converts a path of the source model into a path of
// the sort model.
func (m *Model) ConvertChildPathToPath(cpath treeproj.Path) (treeproj.Path, bool) {
	return m.p.ConvertChildPathToPath(cpath)
}

// ConvertPathToChildPath converts a path of the sort model into a path of
// the source model.
func (m *Model) ConvertPathToChildPath(path treeproj.Path) (treeproj.Path, bool) {
	return m.p.ConvertPathToChildPath(path)
}

// ConvertChildIterToIter converts an iter of the source model into an iter
// of the sort model.
func (m *Model) ConvertChildIterToIter(citer treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.ConvertChildIterToIter(citer)
}

// ConvertIterToChildIter converts an iter of the sort model into an iter of
// the source model.
func (m *Model) ConvertIterToChildIter(it treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.ConvertIterToChildIter(it)
}

// ClearCache frees every cached level which holds no references. It is
// only useful to reclaim memory.
func (m *Model) ClearCache() { m.p.ClearCache() }

// Stats reports the size of the cache.
func (m *Model) Stats() abstract.Stats { return m.p.Stats() }

// Detach frees the cache and stops following the source model. The model
// is empty afterwards.
func (m *Model) Detach() { m.p.Detach() }

func (m *Model) Flags() treeproj.Flags                          { return m.p.Flags() }
func (m *Model) NColumns() int                                  { return m.p.NColumns() }
func (m *Model) ColumnType(col int) reflect.Type                { return m.p.ColumnType(col) }
func (m *Model) GetIter(p treeproj.Path) (treeproj.Iter, bool)  { return m.p.GetIter(p) }
func (m *Model) GetPath(it treeproj.Iter) (treeproj.Path, bool) { return m.p.GetPath(it) }
func (m *Model) Value(it treeproj.Iter, col int) any            { return m.p.Value(it, col) }
func (m *Model) IterHasChild(it treeproj.Iter) bool             { return m.p.IterHasChild(it) }
func (m *Model) IterNChildren(parent *treeproj.Iter) int        { return m.p.IterNChildren(parent) }
func (m *Model) RefNode(it treeproj.Iter)                       { m.p.RefNode(it) }
func (m *Model) UnrefNode(it treeproj.Iter)                     { m.p.UnrefNode(it) }
func (m *Model) RowDraggable(p treeproj.Path) bool              { return m.p.RowDraggable(p) }
func (m *Model) DragDataDelete(p treeproj.Path) bool            { return m.p.DragDataDelete(p) }

func (m *Model) IterNext(it treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.IterNext(it)
}

func (m *Model) IterChildren(parent *treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.IterChildren(parent)
}

func (m *Model) IterNthChild(parent *treeproj.Iter, n int) (treeproj.Iter, bool) {
	return m.p.IterNthChild(parent, n)
}

func (m *Model) IterParent(child treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.IterParent(child)
}

func (m *Model) Subscribe(o treeproj.Observer) (unsubscribe func()) {
	return m.p.Subscribe(o)
}

// policy adapts a Model to the ordering plug-in of the projection core.
type policy Model

var _ abstract.Policy = (*policy)(nil)

func (p *policy) active() CompareFunc {
	switch id := p.sortColumn; {
	case id == UnsortedSortColumnID:
		return nil
	case id == DefaultSortColumnID:
		return p.defaultFunc
	default:
		if fn, ok := p.funcs[id]; ok {
			return fn
		}
		return ColumnCompare(id)
	}
}

func (p *policy) Visible(treeproj.Model, treeproj.Iter) bool { return true }

func (p *policy) Filters() bool { return false }

func (p *policy) Sorted() bool { return p.active() != nil }

func (p *policy) Compare(src treeproj.Model, a, b treeproj.Iter) int {
	c := p.active()(src, a, b)
	if p.order == Descending {
		return -c
	}
	return c
}
