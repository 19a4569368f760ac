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
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.Err = m.Stack.SetFilter(m.InputBuffer.Value())
				m.refresh()
				return m, nil
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue(m.Stack.filter)
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		m.Err = nil
		switch msg.String() {
		case "ctrl+c", "q":
			m.release()
			return m, tea.Quit
		case "up", "k":
			if m.SelectedIdx > 0 {
				m.SelectedIdx--
			}
		case "down", "j":
			if m.SelectedIdx < len(m.rows)-1 {
				m.SelectedIdx++
			}
		case "right", "l", "enter":
			m.setExpanded(true)
		case "left", "h":
			m.setExpanded(false)
		case "s":
			m.Stack.CycleSort()
			m.refresh()
		case "r":
			m.Stack.Reverse()
			m.refresh()
		case "x":
			if len(m.rows) > 0 {
				r := m.rows[m.SelectedIdx]
				if it, ok := m.expanded[r.key]; ok {
					m.Stack.Model().UnrefNode(it)
					delete(m.expanded, r.key)
				}
				m.Stack.Delete(r.path)
				m.refresh()
			}
		case "/":
			m.InputMode = true
			m.InputBuffer.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}
