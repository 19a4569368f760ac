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
	"strings"

	"github.com/ajwerner/treeproj"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
)

func (m AppModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("treeproj"))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(m.Stack.Status()))
	b.WriteString("\n\n")

	names := columnNames(m.Stack)
	widths := columnWidths(m.Stack.Model(), names, m.rows)
	b.WriteString("  " + headerStyle.Render(formatCells(names, widths, 0)) + "\n")

	first, last := m.window()
	for i := first; i < last; i++ {
		r := m.rows[i]
		line := marker(r) + " " + formatCells(rowCells(m.Stack.Model(), r.it, len(names)), widths, r.depth)
		if i == m.SelectedIdx {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  (no rows)") + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.InputMode:
		b.WriteString("filter: " + m.InputBuffer.View())
	case m.Err != nil:
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", m.Err)))
	default:
		b.WriteString(dimStyle.Render("↑/↓ move • →/← expand/collapse • s sort • r reverse • / filter • x delete • q quit"))
	}
	return b.String()
}

// window returns the range of rows which fit on the screen, keeping the
// selected row visible.
func (m AppModel) window() (first, last int) {
	height := m.WindowSize.Height - 6
	if height <= 0 || height >= len(m.rows) {
		return 0, len(m.rows)
	}
	first = max(0, m.SelectedIdx-height/2)
	last = min(len(m.rows), first+height)
	return last - height, last
}

func marker(r row) string {
	switch {
	case !r.hasChild:
		return " "
	case r.expanded:
		return "▾"
	default:
		return "▸"
	}
}

func columnNames(s *Stack) []string {
	names := make([]string, len(s.Doc.Columns))
	for i, c := range s.Doc.Columns {
		names[i] = c.Name
	}
	return names
}

func rowCells(m treeproj.Model, it treeproj.Iter, n int) []string {
	cells := make([]string, n)
	for i := range cells {
		if v := m.Value(it, i); v != nil {
			cells[i] = fmt.Sprint(v)
		}
	}
	return cells
}

func columnWidths(m treeproj.Model, names []string, rows []row) []int {
	widths := make([]int, len(names))
	for i, n := range names {
		widths[i] = lipgloss.Width(n)
	}
	for _, r := range rows {
		for i, c := range rowCells(m, r.it, len(names)) {
			w := lipgloss.Width(c)
			if i == 0 {
				w += 2 * r.depth
			}
			widths[i] = max(widths[i], w)
		}
	}
	return widths
}

// formatCells pads cells to widths; the first cell is indented by depth.
func formatCells(cells []string, widths []int, depth int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if i == 0 {
			c = strings.Repeat("  ", depth) + c
		}
		parts[i] = c + strings.Repeat(" ", max(0, widths[i]-lipgloss.Width(c)))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// Render renders every row of the presented model of s, fully expanded,
// as a table.
func Render(s *Stack) string {
	model := s.Model()
	names := columnNames(s)
	var rows []row
	treeproj.ForEach(model, func(p treeproj.Path, it treeproj.Iter) bool {
		rows = append(rows, row{path: p.Copy(), it: it, depth: len(p) - 1})
		return false
	})
	widths := columnWidths(model, names, rows)

	var b strings.Builder
	b.WriteString(headerStyle.Render(formatCells(names, widths, 0)) + "\n")
	for _, r := range rows {
		b.WriteString(formatCells(rowCells(model, r.it, len(names)), widths, r.depth) + "\n")
	}
	return b.String()
}
