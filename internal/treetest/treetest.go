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

// Package treetest contains helpers for testing tree models: an observer
// which records change notifications, a textual dump of a model and a
// consistency check of the navigation operations of a model.
package treetest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ajwerner/treeproj"
	"github.com/stretchr/testify/require"
)

// Recorder records the notifications emitted by a model as strings such as
// "inserted [0 1]" or "reordered [] [1 0]".
type Recorder struct {
	events []string
}

// Record subscribes a new Recorder to m.
func Record(m treeproj.Model) *Recorder {
	r := &Recorder{}
	m.Subscribe(r.Observer())
	return r
}

// Observer returns an observer which appends to the Recorder.
func (r *Recorder) Observer() treeproj.Observer {
	return treeproj.ObserverFuncs{
		Changed:         func(p treeproj.Path, _ treeproj.Iter) { r.add("changed", p) },
		Inserted:        func(p treeproj.Path, _ treeproj.Iter) { r.add("inserted", p) },
		HasChildToggled: func(p treeproj.Path, _ treeproj.Iter) { r.add("has-child-toggled", p) },
		Deleted:         func(p treeproj.Path) { r.add("deleted", p) },
		Reordered: func(p treeproj.Path, _ *treeproj.Iter, newOrder []int) {
			r.events = append(r.events, fmt.Sprintf("reordered %v %v", []int(p), newOrder))
		},
	}
}

func (r *Recorder) add(kind string, p treeproj.Path) {
	r.events = append(r.events, fmt.Sprintf("%s %v", kind, []int(p)))
}

// Events returns the recorded events and forgets them.
func (r *Recorder) Events() []string {
	ev := r.events
	r.events = nil
	return ev
}

// Dump renders the rows of m depth first, one per line, as the value of
// column col indented by two spaces per level.
func Dump(m treeproj.Model, col int) string {
	var b strings.Builder
	treeproj.ForEach(m, func(p treeproj.Path, it treeproj.Iter) bool {
		fmt.Fprintf(&b, "%s%v\n", strings.Repeat("  ", len(p)-1), m.Value(it, col))
		return false
	})
	return b.String()
}

// Column returns the values of column col of the children of parent.
func Column(m treeproj.Model, parent *treeproj.Iter, col int) []any {
	var vals []any
	for it, ok := m.IterChildren(parent); ok; it, ok = m.IterNext(it) {
		vals = append(vals, m.Value(it, col))
	}
	return vals
}

// CheckModel verifies that the navigation operations of m agree with each
// other for every row.
func CheckModel(t require.TestingT, m treeproj.Model) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	checkChildren(t, m, nil, treeproj.Path{})
}

func checkChildren(t require.TestingT, m treeproj.Model, parent *treeproj.Iter, ppath treeproj.Path) {
	n := m.IterNChildren(parent)
	i := 0
	for it, ok := m.IterChildren(parent); ok; it, ok = m.IterNext(it) {
		path := ppath.Child(i)
		got, ok := m.GetPath(it)
		require.True(t, ok, "GetPath(%v)", path)
		require.Equal(t, path, got)

		byPath, ok := m.GetIter(path)
		require.True(t, ok, "GetIter(%v)", path)
		nth, ok := m.IterNthChild(parent, i)
		require.True(t, ok, "IterNthChild(%v, %d)", ppath, i)
		require.Equal(t, m.Value(it, 0), m.Value(byPath, 0))
		require.Equal(t, m.Value(it, 0), m.Value(nth, 0))

		if parent != nil {
			up, ok := m.IterParent(it)
			require.True(t, ok, "IterParent(%v)", path)
			upPath, _ := m.GetPath(up)
			require.Equal(t, ppath, upPath)
		} else {
			_, ok := m.IterParent(it)
			require.False(t, ok, "IterParent(%v)", path)
		}

		hasChild := m.IterHasChild(it)
		require.Equal(t, hasChild, m.IterNChildren(&it) > 0, "IterHasChild(%v)", path)
		if hasChild {
			checkChildren(t, m, &it, path)
		}
		i++
	}
	require.Equal(t, n, i, "IterNChildren(%v)", ppath)
	_, ok := m.IterNthChild(parent, n)
	require.False(t, ok)
}

// Paths returns the paths of every row of m in depth-first order.
func Paths(m treeproj.Model) []treeproj.Path {
	var paths []treeproj.Path
	treeproj.ForEach(m, func(p treeproj.Path, _ treeproj.Iter) bool {
		paths = append(paths, slices.Clone(p))
		return false
	})
	return paths
}
