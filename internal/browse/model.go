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

// Package browse implements an interactive terminal browser over a stack
// of projection models, and the plain rendering used by the show command.
package browse

import (
	"github.com/ajwerner/treeproj"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// AppModel holds the TUI state.
type AppModel struct {
	Stack *Stack

	// UI State
	SelectedIdx int
	WindowSize  tea.WindowSizeMsg
	Err         error

	// Filter input
	InputMode   bool
	InputBuffer textinput.Model

	// expanded maps the store iter of every expanded row to the iter the
	// reference on the presented model was taken with.
	expanded map[treeproj.Iter]treeproj.Iter
	rows     []row
}

// row is a line of the browser.
type row struct {
	path     treeproj.Path
	it       treeproj.Iter
	key      treeproj.Iter
	depth    int
	hasChild bool
	expanded bool
}

// InitialModel returns the initial state for browsing s.
func InitialModel(s *Stack) AppModel {
	ti := textinput.New()
	ti.Placeholder = "size > 100"
	ti.CharLimit = 80
	ti.Width = 40
	ti.SetValue(s.filter)

	m := AppModel{
		Stack:       s,
		InputBuffer: ti,
		expanded:    make(map[treeproj.Iter]treeproj.Iter),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd { return nil }

// refresh recomputes the visible lines after the models changed.
func (m *AppModel) refresh() {
	model := m.Stack.Model()
	m.rows = m.rows[:0]
	var walk func(parent *treeproj.Iter, ppath treeproj.Path)
	walk = func(parent *treeproj.Iter, ppath treeproj.Path) {
		i := 0
		for it, ok := model.IterChildren(parent); ok; it, ok = model.IterNext(it) {
			key, _ := m.Stack.SourceIter(it)
			_, expanded := m.expanded[key]
			r := row{
				path:     ppath.Child(i),
				it:       it,
				key:      key,
				depth:    len(ppath),
				hasChild: model.IterHasChild(it),
				expanded: expanded,
			}
			m.rows = append(m.rows, r)
			if r.expanded && r.hasChild {
				walk(&r.it, r.path)
			}
			i++
		}
	}
	walk(nil, treeproj.Path{})
	if m.SelectedIdx >= len(m.rows) {
		m.SelectedIdx = len(m.rows) - 1
	}
	if m.SelectedIdx < 0 {
		m.SelectedIdx = 0
	}
}

// setExpanded expands or collapses the selected row. Expanded rows are
// referenced so that the projection keeps their children cached.
func (m *AppModel) setExpanded(expand bool) {
	if len(m.rows) == 0 {
		return
	}
	r := m.rows[m.SelectedIdx]
	model := m.Stack.Model()
	switch {
	case expand && r.hasChild && !r.expanded:
		model.RefNode(r.it)
		m.expanded[r.key] = r.it
	case !expand && r.expanded:
		model.UnrefNode(m.expanded[r.key])
		delete(m.expanded, r.key)
		m.Stack.Filter.ClearCache()
	}
	m.refresh()
}

// release drops the references held on expanded rows.
func (m *AppModel) release() {
	for key, it := range m.expanded {
		m.Stack.Model().UnrefNode(it)
		delete(m.expanded, key)
	}
}
