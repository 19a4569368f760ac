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

// Package filtermodel implements a projection of a tree model which hides
// the rows a predicate rejects. A row is shown only if it and all of its
// ancestors below the virtual root are visible. The filter model keeps the
// order of the source model.
package filtermodel

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/abstract"
	"github.com/ajwerner/treeproj/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// VisibleFunc reports whether the source row at it should be shown.
type VisibleFunc func(src treeproj.Model, it treeproj.Iter) bool

// ModifyFunc computes the value of column col of the filter model for the
// source row at it.
type ModifyFunc func(src treeproj.Model, it treeproj.Iter, col int) any

// Model is a filtered projection of a source tree model.
type Model struct {
	p       *abstract.Projection
	metrics *metrics.Metrics

	visibleFunc      VisibleFunc
	visibleColumn    int
	visibleMethodSet bool

	modifyTypes    []reflect.Type
	modifyFunc     ModifyFunc
	columnsQueried bool
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

// New creates a filter model over src. If root is not empty the filter
// model presents the descendants of the source row at root only. Every row
// is visible until a visible func or column is set.
func New(src treeproj.Model, root treeproj.Path, opts ...Option) (*Model, error) {
	if src == nil {
		return nil, treeproj.ErrNoSourceModel
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m := &Model{visibleColumn: -1}
	cfg := abstract.Config{
		Policy:      (*policy)(m),
		VirtualRoot: root,
		Logger:      o.logger,
	}
	if o.registerer != nil {
		m.metrics = metrics.New(o.registerer, "filter")
		cfg.Metrics = m.metrics
	}
	m.p = abstract.New(src, cfg)
	return m, nil
}

// Model returns the source model.
func (m *Model) Model() treeproj.Model { return m.p.Source() }

// VirtualRoot returns the source path the model is rooted at, or nil.
func (m *Model) VirtualRoot() treeproj.Path { return m.p.VirtualRoot() }

// SetVisibleFunc sets the predicate deciding which rows are shown. The
// predicate is expected to be consistent: if its result changes for a
// reason other than a change of the row the caller must call Refilter.
// A nil fn shows every row.
//
// Only one of SetVisibleFunc and SetVisibleColumn may be called, once.
func (m *Model) SetVisibleFunc(fn VisibleFunc) error {
	if m.visibleMethodSet {
		return treeproj.ErrVisibleMethodSet
	}
	m.visibleFunc, m.visibleMethodSet = fn, true
	m.refilterCached()
	return nil
}

// SetVisibleColumn shows the rows whose bool column col is true.
//
// Only one of SetVisibleFunc and SetVisibleColumn may be called, once.
func (m *Model) SetVisibleColumn(col int) error {
	if m.visibleMethodSet {
		return treeproj.ErrVisibleMethodSet
	}
	src := m.p.Source()
	if col < 0 || col >= src.NColumns() {
		return fmt.Errorf("filtermodel: visible column %d: %w", col, treeproj.ErrColumnOutOfRange)
	}
	if t := src.ColumnType(col); t != reflect.TypeFor[bool]() {
		return fmt.Errorf("filtermodel: visible column %d holds %v: %w", col, t, treeproj.ErrColumnType)
	}
	m.visibleColumn, m.visibleMethodSet = col, true
	m.refilterCached()
	return nil
}

// refilterCached re-evaluates the visibility of the cached rows. Nothing
// needs to be done before the model was first queried.
func (m *Model) refilterCached() {
	if m.p.Stats().Levels > 0 {
		m.p.Refilter()
	}
}

// SetModifyFunc replaces the columns of the source model with the given
// types, whose values fn computes. It must be called before the columns
// of the model are queried, and only once.
func (m *Model) SetModifyFunc(types []reflect.Type, fn ModifyFunc) error {
	if m.modifyFunc != nil || m.columnsQueried {
		return treeproj.ErrModifyFuncSet
	}
	m.modifyTypes = slices.Clone(types)
	m.modifyFunc = fn
	return nil
}

// Refilter re-evaluates the visibility of every row of the source model
// below the virtual root. It is needed when the visible func depends on
// state outside the source model. It traverses the whole source model.
func (m *Model) Refilter() { m.p.Refilter() }

// ConvertChildPathToPath converts a path of the source model into a path of
// the filter model. It fails if the row is not visible.
func (m *Model) ConvertChildPathToPath(cpath treeproj.Path) (treeproj.Path, bool) {
	return m.p.ConvertChildPathToPath(cpath)
}

// ConvertPathToChildPath converts a path of the filter model into a path of
// the source model.
func (m *Model) ConvertPathToChildPath(path treeproj.Path) (treeproj.Path, bool) {
	return m.p.ConvertPathToChildPath(path)
}

// ConvertChildIterToIter converts an iter of the source model into an iter
// of the filter model. It fails if the row is not visible.
func (m *Model) ConvertChildIterToIter(citer treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.ConvertChildIterToIter(citer)
}

// ConvertIterToChildIter converts an iter of the filter model into an iter
// of the source model.
func (m *Model) ConvertIterToChildIter(it treeproj.Iter) (treeproj.Iter, bool) {
	return m.p.ConvertIterToChildIter(it)
}

// ClearCache frees every cached level which holds no references.
func (m *Model) ClearCache() { m.p.ClearCache() }

// Stats reports the size of the cache.
func (m *Model) Stats() abstract.Stats { return m.p.Stats() }

// Detach frees the cache, releases the references held on the source model
// and stops following it. The model is empty afterwards.
func (m *Model) Detach() { m.p.Detach() }

// NColumns returns the number of columns of the source model, or of the
// modify func if one is set.
func (m *Model) NColumns() int {
	m.columnsQueried = true
	if m.modifyFunc != nil {
		return len(m.modifyTypes)
	}
	return m.p.NColumns()
}

// ColumnType returns the type of column col.
func (m *Model) ColumnType(col int) reflect.Type {
	m.columnsQueried = true
	if m.modifyFunc != nil {
		if col < 0 || col >= len(m.modifyTypes) {
			return nil
		}
		return m.modifyTypes[col]
	}
	return m.p.ColumnType(col)
}

// Value returns the value of column col of the row it addresses.
func (m *Model) Value(it treeproj.Iter, col int) any {
	m.columnsQueried = true
	if m.modifyFunc == nil {
		return m.p.Value(it, col)
	}
	if col < 0 || col >= len(m.modifyTypes) {
		return nil
	}
	citer, ok := m.p.ConvertIterToChildIter(it)
	if !ok {
		return nil
	}
	return m.modifyFunc(m.p.Source(), citer, col)
}

func (m *Model) Flags() treeproj.Flags                          { return m.p.Flags() }
func (m *Model) GetIter(p treeproj.Path) (treeproj.Iter, bool)  { return m.p.GetIter(p) }
func (m *Model) GetPath(it treeproj.Iter) (treeproj.Path, bool) { return m.p.GetPath(it) }
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

// policy adapts a Model to the visibility plug-in of the projection core.
type policy Model

var _ abstract.Policy = (*policy)(nil)

func (p *policy) Visible(src treeproj.Model, it treeproj.Iter) bool {
	switch {
	case p.visibleFunc != nil:
		return p.visibleFunc(src, it)
	case p.visibleColumn >= 0:
		v, _ := src.Value(it, p.visibleColumn).(bool)
		return v
	default:
		return true
	}
}

func (p *policy) Filters() bool { return true }

func (p *policy) Sorted() bool { return false }

func (p *policy) Compare(treeproj.Model, treeproj.Iter, treeproj.Iter) int { return 0 }
