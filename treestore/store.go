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

// Package treestore provides an in-memory tree model with persistent
// iters. It is the usual source model underneath the sort and filter
// projections.
package treestore

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"slices"

	"github.com/ajwerner/treeproj"
)

type node struct {
	id       uint64
	parent   *node
	children []*node
	values   []any
	refs     int
}

func (n *node) index() int {
	return slices.Index(n.parent.children, n)
}

// Store is a mutable tree of rows with a fixed set of typed columns.
//
// Iters returned by a Store stay valid until the row they address is
// removed.
type Store struct {
	types   []reflect.Type
	root    node
	nodes   map[uint64]*node
	nextID  uint64
	stamp   uint32
	emitter treeproj.Emitter
}

var (
	_ treeproj.Model      = (*Store)(nil)
	_ treeproj.DragSource = (*Store)(nil)
)

// New creates an empty Store with the given column types.
func New(types ...reflect.Type) *Store {
	s := &Store{
		types: slices.Clone(types),
		nodes: make(map[uint64]*node),
		stamp: rand.Uint32() | 1,
	}
	return s
}

// Flags implements treeproj.Model.
func (s *Store) Flags() treeproj.Flags { return treeproj.ItersPersist }

// NColumns implements treeproj.Model.
func (s *Store) NColumns() int { return len(s.types) }

// ColumnType implements treeproj.Model.
func (s *Store) ColumnType(col int) reflect.Type {
	if col < 0 || col >= len(s.types) {
		return nil
	}
	return s.types[col]
}

// Subscribe implements treeproj.Model.
func (s *Store) Subscribe(o treeproj.Observer) (unsubscribe func()) {
	return s.emitter.Subscribe(o)
}

func (s *Store) iter(n *node) treeproj.Iter {
	return treeproj.Iter{Stamp: s.stamp, Data1: n.id}
}

// lookup resolves it, or the invisible root node if it is nil.
func (s *Store) lookup(it *treeproj.Iter) (*node, bool) {
	if it == nil {
		return &s.root, true
	}
	if it.Stamp != s.stamp {
		return nil, false
	}
	n, ok := s.nodes[it.Data1]
	return n, ok
}

func (s *Store) path(n *node) treeproj.Path {
	var rev []int
	for ; n.parent != nil; n = n.parent {
		rev = append(rev, n.index())
	}
	p := make(treeproj.Path, len(rev))
	for i, idx := range rev {
		p[len(rev)-1-i] = idx
	}
	return p
}

// GetIter implements treeproj.Model.
func (s *Store) GetIter(p treeproj.Path) (treeproj.Iter, bool) {
	if len(p) == 0 {
		return treeproj.Iter{}, false
	}
	n := &s.root
	for _, idx := range p {
		if idx < 0 || idx >= len(n.children) {
			return treeproj.Iter{}, false
		}
		n = n.children[idx]
	}
	return s.iter(n), true
}

// GetPath implements treeproj.Model.
func (s *Store) GetPath(it treeproj.Iter) (treeproj.Path, bool) {
	n, ok := s.lookup(&it)
	if !ok {
		return nil, false
	}
	return s.path(n), true
}

// Value implements treeproj.Model.
func (s *Store) Value(it treeproj.Iter, col int) any {
	n, ok := s.lookup(&it)
	if !ok || col < 0 || col >= len(n.values) {
		return nil
	}
	return n.values[col]
}

// IterNext implements treeproj.Model.
func (s *Store) IterNext(it treeproj.Iter) (treeproj.Iter, bool) {
	n, ok := s.lookup(&it)
	if !ok {
		return treeproj.Iter{}, false
	}
	siblings := n.parent.children
	if i := n.index() + 1; i < len(siblings) {
		return s.iter(siblings[i]), true
	}
	return treeproj.Iter{}, false
}

// IterChildren implements treeproj.Model.
func (s *Store) IterChildren(parent *treeproj.Iter) (treeproj.Iter, bool) {
	return s.IterNthChild(parent, 0)
}

// IterHasChild implements treeproj.Model.
func (s *Store) IterHasChild(it treeproj.Iter) bool {
	return s.IterNChildren(&it) > 0
}

// IterNChildren implements treeproj.Model.
func (s *Store) IterNChildren(parent *treeproj.Iter) int {
	n, ok := s.lookup(parent)
	if !ok {
		return 0
	}
	return len(n.children)
}

// IterNthChild implements treeproj.Model.
func (s *Store) IterNthChild(parent *treeproj.Iter, i int) (treeproj.Iter, bool) {
	n, ok := s.lookup(parent)
	if !ok || i < 0 || i >= len(n.children) {
		return treeproj.Iter{}, false
	}
	return s.iter(n.children[i]), true
}

// IterParent implements treeproj.Model.
func (s *Store) IterParent(child treeproj.Iter) (treeproj.Iter, bool) {
	n, ok := s.lookup(&child)
	if !ok || n.parent == &s.root {
		return treeproj.Iter{}, false
	}
	return s.iter(n.parent), true
}

// RefNode implements treeproj.Model. The Store only counts references; see
// RefCount.
func (s *Store) RefNode(it treeproj.Iter) {
	if n, ok := s.lookup(&it); ok {
		n.refs++
	}
}

// UnrefNode implements treeproj.Model.
func (s *Store) UnrefNode(it treeproj.Iter) {
	if n, ok := s.lookup(&it); ok && n.refs > 0 {
		n.refs--
	}
}

// RefCount returns the number of references held on the row it addresses.
func (s *Store) RefCount(it treeproj.Iter) int {
	if n, ok := s.lookup(&it); ok {
		return n.refs
	}
	return 0
}

// TotalRefs returns the number of references held on all rows.
func (s *Store) TotalRefs() int {
	total := 0
	for _, n := range s.nodes {
		total += n.refs
	}
	return total
}

func (s *Store) checkValues(values []any) error {
	if len(values) > len(s.types) {
		return fmt.Errorf("%w: %d values for %d columns",
			treeproj.ErrColumnOutOfRange, len(values), len(s.types))
	}
	for i, v := range values {
		if err := s.checkValue(i, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) checkValue(col int, v any) error {
	if col < 0 || col >= len(s.types) {
		return fmt.Errorf("%w: %d", treeproj.ErrColumnOutOfRange, col)
	}
	if v != nil && !reflect.TypeOf(v).AssignableTo(s.types[col]) {
		return fmt.Errorf("%w: column %d holds %v, got %T",
			treeproj.ErrColumnType, col, s.types[col], v)
	}
	return nil
}

// Insert adds a row with the given values as the pos'th child of parent,
// or at the top level if parent is nil. A pos out of range appends the row.
// Missing trailing values are left nil.
func (s *Store) Insert(parent *treeproj.Iter, pos int, values ...any) (treeproj.Iter, error) {
	pn, ok := s.lookup(parent)
	if !ok {
		return treeproj.Iter{}, fmt.Errorf("treestore: insert: invalid parent iter")
	}
	if err := s.checkValues(values); err != nil {
		return treeproj.Iter{}, err
	}
	s.nextID++
	n := &node{id: s.nextID, parent: pn, values: make([]any, len(s.types))}
	copy(n.values, values)
	s.nodes[n.id] = n
	if pos < 0 || pos > len(pn.children) {
		pos = len(pn.children)
	}
	pn.children = slices.Insert(pn.children, pos, n)

	it := s.iter(n)
	p := s.path(n)
	s.emitter.EmitRowInserted(p, it)
	if len(pn.children) == 1 && pn != &s.root {
		s.emitter.EmitRowHasChildToggled(p[:len(p)-1], s.iter(pn))
	}
	return it, nil
}

// Append adds a row as the last child of parent.
func (s *Store) Append(parent *treeproj.Iter, values ...any) (treeproj.Iter, error) {
	return s.Insert(parent, -1, values...)
}

// Set stores v in column col of the row it addresses.
func (s *Store) Set(it treeproj.Iter, col int, v any) error {
	n, ok := s.lookup(&it)
	if !ok {
		return fmt.Errorf("treestore: set: invalid iter")
	}
	if err := s.checkValue(col, v); err != nil {
		return err
	}
	n.values[col] = v
	s.emitter.EmitRowChanged(s.path(n), it)
	return nil
}

// Remove deletes the row it addresses together with its descendants.
func (s *Store) Remove(it treeproj.Iter) bool {
	n, ok := s.lookup(&it)
	if !ok {
		return false
	}
	p := s.path(n)
	pn := n.parent
	pn.children = slices.Delete(pn.children, p.Last(), p.Last()+1)
	s.forget(n)

	s.emitter.EmitRowDeleted(p)
	if len(pn.children) == 0 && pn != &s.root {
		s.emitter.EmitRowHasChildToggled(p[:len(p)-1], s.iter(pn))
	}
	return true
}

func (s *Store) forget(n *node) {
	delete(s.nodes, n.id)
	for _, c := range n.children {
		s.forget(c)
	}
}

// Clear removes every row.
func (s *Store) Clear() {
	for len(s.root.children) > 0 {
		s.Remove(s.iter(s.root.children[0]))
	}
}

// Reorder permutes the children of parent, or the top level rows if parent
// is nil. newOrder[newPos] is the old position of the row moved to newPos.
func (s *Store) Reorder(parent *treeproj.Iter, newOrder []int) error {
	pn, ok := s.lookup(parent)
	if !ok {
		return fmt.Errorf("treestore: reorder: invalid parent iter")
	}
	if len(newOrder) != len(pn.children) {
		return fmt.Errorf("treestore: reorder: %d positions for %d rows",
			len(newOrder), len(pn.children))
	}
	seen := make([]bool, len(newOrder))
	reordered := make([]*node, len(newOrder))
	for newPos, oldPos := range newOrder {
		if oldPos < 0 || oldPos >= len(newOrder) || seen[oldPos] {
			return fmt.Errorf("treestore: reorder: %v is not a permutation", newOrder)
		}
		seen[oldPos] = true
		reordered[newPos] = pn.children[oldPos]
	}
	pn.children = reordered

	var p treeproj.Path
	var pit *treeproj.Iter
	if pn != &s.root {
		p = s.path(pn)
		it := s.iter(pn)
		pit = &it
	} else {
		p = treeproj.Path{}
	}
	s.emitter.EmitRowsReordered(p, pit, newOrder)
	return nil
}

// RowDraggable implements treeproj.DragSource. Every row may be dragged.
func (s *Store) RowDraggable(p treeproj.Path) bool {
	_, ok := s.GetIter(p)
	return ok
}

// DragDataDelete implements treeproj.DragSource by removing the row.
func (s *Store) DragDataDelete(p treeproj.Path) bool {
	it, ok := s.GetIter(p)
	return ok && s.Remove(it)
}
