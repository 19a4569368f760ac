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

// Package treeproj defines the contract shared by hierarchical data sources
// and the projections layered over them.
//
// A Model exposes rows addressed either by Path (value semantics) or by Iter
// (a cheap handle into the model's own storage). Structural changes are
// announced to subscribed Observers. The sortmodel and filtermodel packages
// implement Model on top of another Model, presenting a reordered or reduced
// view which tracks the source as it mutates.
package treeproj

import "reflect"

// Flags describe properties of a Model.
type Flags uint8

const (
	// ItersPersist indicates that Iters obtained from the model remain valid
	// for as long as the row they reference exists.
	ItersPersist Flags = 1 << iota
	// ListOnly indicates that no row of the model has children.
	ListOnly
)

// Iter is a transient reference to a row. Its fields are owned by the Model
// which produced it and are opaque to everybody else.
//
// Unless the model reports ItersPersist, an Iter is only valid until the
// next structural change of the model. A Model must treat an Iter whose Stamp
// does not match its own as invalid.
type Iter struct {
	Stamp uint32
	Data1 uint64
	Data2 uint64
}

// Valid reports whether the iter has been set by a model. The zero Iter is
// never valid.
func (it Iter) Valid() bool { return it.Stamp != 0 }

// Model is a tree of rows with a fixed set of typed columns.
//
// Methods taking a parent *Iter interpret nil as the root of the model.
type Model interface {
	Flags() Flags
	NColumns() int
	ColumnType(col int) reflect.Type

	GetIter(p Path) (Iter, bool)
	GetPath(it Iter) (Path, bool)
	Value(it Iter, col int) any

	IterNext(it Iter) (Iter, bool)
	IterChildren(parent *Iter) (Iter, bool)
	IterHasChild(it Iter) bool
	IterNChildren(parent *Iter) int
	IterNthChild(parent *Iter, n int) (Iter, bool)
	IterParent(child Iter) (Iter, bool)

	// RefNode and UnrefNode let a consumer declare interest in a row. Models
	// may use the information to keep caches for referenced rows alive.
	RefNode(it Iter)
	UnrefNode(it Iter)

	// Subscribe registers o for change notifications and returns a function
	// which removes the registration.
	Subscribe(o Observer) (unsubscribe func())
}

// Observer receives change notifications from a Model. Notifications are
// delivered synchronously, after the model has applied the change, so the
// paths and iters passed refer to the new state of the model.
//
// For RowsReordered, newOrder[newPosition] == oldPosition for the children
// of the row at p (the root when p is empty); it is nil when p is the root.
type Observer interface {
	RowChanged(p Path, it Iter)
	RowInserted(p Path, it Iter)
	RowHasChildToggled(p Path, it Iter)
	RowDeleted(p Path)
	RowsReordered(p Path, it *Iter, newOrder []int)
}

// DragSource is implemented by models which support moving rows out of the
// model through a drag and drop operation.
type DragSource interface {
	RowDraggable(p Path) bool
	DragDataDelete(p Path) bool
}

// GetFirstIter returns an iter to the first row of m.
func GetFirstIter(m Model) (Iter, bool) {
	return m.IterChildren(nil)
}

// Values reads every column of the row at it.
func Values(m Model, it Iter) []any {
	vals := make([]any, m.NColumns())
	for i := range vals {
		vals[i] = m.Value(it, i)
	}
	return vals
}
