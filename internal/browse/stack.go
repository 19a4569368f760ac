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

package browse

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/filtermodel"
	"github.com/ajwerner/treeproj/internal/config"
	"github.com/ajwerner/treeproj/sortmodel"
	"github.com/ajwerner/treeproj/treestore"
	"github.com/prometheus/client_golang/prometheus"
)

// Stack is a document loaded into a store with a sort model on top of it
// and a filter model on top of the sort model.
type Stack struct {
	Doc    *config.Document
	Store  *treestore.Store
	Sort   *sortmodel.Model
	Filter *filtermodel.Model

	pred   *config.Predicate
	filter string
}

// Options configure the models of a Stack.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// NewStack builds the models presenting doc as its view describes.
func NewStack(doc *config.Document, opts Options) (*Stack, error) {
	store, err := doc.Build()
	if err != nil {
		return nil, err
	}
	s := &Stack{Doc: doc, Store: store}

	var sortOpts []sortmodel.Option
	var filterOpts []filtermodel.Option
	if opts.Logger != nil {
		sortOpts = append(sortOpts, sortmodel.WithLogger(opts.Logger))
		filterOpts = append(filterOpts, filtermodel.WithLogger(opts.Logger))
	}
	if opts.Registerer != nil {
		sortOpts = append(sortOpts, sortmodel.WithRegisterer(opts.Registerer))
		filterOpts = append(filterOpts, filtermodel.WithRegisterer(opts.Registerer))
	}
	if s.Sort, err = sortmodel.New(store, sortOpts...); err != nil {
		return nil, err
	}
	if col, ok := doc.ColumnIndex(doc.View.Sort); ok {
		order := sortmodel.Ascending
		if doc.View.Descending() {
			order = sortmodel.Descending
		}
		if err := s.Sort.SetSortColumn(col, order); err != nil {
			return nil, err
		}
	}

	// The root is given in document order; the filter model sees the rows
	// of the sort model.
	root, err := doc.View.RootPath()
	if err != nil {
		return nil, err
	}
	if len(root) > 0 {
		sorted, ok := s.Sort.ConvertChildPathToPath(root)
		if !ok {
			return nil, fmt.Errorf("root %s does not exist", root)
		}
		root = sorted
	}
	if s.Filter, err = filtermodel.New(s.Sort, root, filterOpts...); err != nil {
		return nil, err
	}
	if err := s.Filter.SetVisibleFunc(s.visible); err != nil {
		return nil, err
	}
	if err := s.SetFilter(doc.View.Filter); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) visible(src treeproj.Model, it treeproj.Iter) bool {
	return s.pred == nil || s.pred.Match(src, it)
}

// Model returns the model to present.
func (s *Stack) Model() treeproj.Model { return s.Filter }

// SetFilter replaces the filter predicate. The empty string shows every
// row.
func (s *Stack) SetFilter(expr string) error {
	expr = strings.TrimSpace(expr)
	var pred *config.Predicate
	if expr != "" {
		p, err := s.Doc.ParsePredicate(expr)
		if err != nil {
			return err
		}
		pred = &p
	}
	s.pred, s.filter = pred, expr
	if s.Filter.Stats().Levels > 0 {
		s.Filter.Refilter()
	}
	return nil
}

// CycleSort sorts by the next column, or stops sorting after the last one.
func (s *Stack) CycleSort() {
	id, order, ok := s.Sort.SortColumn()
	next := 0
	if ok {
		next = id + 1
	}
	if next >= s.Sort.NColumns() {
		next = sortmodel.UnsortedSortColumnID
	}
	// The column is in range.
	_ = s.Sort.SetSortColumn(next, order)
}

// Reverse flips the sort order.
func (s *Stack) Reverse() {
	id, order, _ := s.Sort.SortColumn()
	if order == sortmodel.Ascending {
		order = sortmodel.Descending
	} else {
		order = sortmodel.Ascending
	}
	_ = s.Sort.SetSortColumn(id, order)
}

// SourceIter returns the store iter of a row of the presented model.
func (s *Stack) SourceIter(it treeproj.Iter) (treeproj.Iter, bool) {
	sit, ok := s.Filter.ConvertIterToChildIter(it)
	if !ok {
		return treeproj.Iter{}, false
	}
	return s.Sort.ConvertIterToChildIter(sit)
}

// Delete removes the row at path of the presented model from the store.
func (s *Stack) Delete(path treeproj.Path) bool {
	return s.Filter.RowDraggable(path) && s.Filter.DragDataDelete(path)
}

// Status describes the current view.
func (s *Stack) Status() string {
	var parts []string
	if id, order, ok := s.Sort.SortColumn(); ok {
		parts = append(parts, fmt.Sprintf("sorted by %s %s", s.Doc.Columns[id].Name, order))
	} else {
		parts = append(parts, "unsorted")
	}
	if s.filter != "" {
		parts = append(parts, "filter: "+s.filter)
	}
	if root := s.Filter.VirtualRoot(); len(root) > 0 {
		parts = append(parts, "root: "+root.String())
	}
	st := s.Filter.Stats()
	parts = append(parts, fmt.Sprintf("cache: %d levels, %d rows", st.Levels, st.Elements))
	return strings.Join(parts, " | ")
}

// Close detaches the models from the store.
func (s *Stack) Close() {
	s.Filter.Detach()
	s.Sort.Detach()
}
