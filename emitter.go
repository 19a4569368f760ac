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

package treeproj

// Emitter fans change notifications out to subscribed observers. It is meant
// to be embedded in Model implementations to provide Subscribe.
//
// The zero value is ready to use. Emitter is not safe for concurrent use.
type Emitter struct {
	next      int
	observers []subscription
}

type subscription struct {
	id int
	o  Observer
}

// Subscribe registers o. Observers are notified in subscription order.
func (e *Emitter) Subscribe(o Observer) (unsubscribe func()) {
	e.next++
	id := e.next
	e.observers = append(e.observers, subscription{id: id, o: o})
	return func() {
		for i, s := range e.observers {
			if s.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered observers.
func (e *Emitter) Len() int { return len(e.observers) }

// snapshot protects emission from observers which (un)subscribe while being
// notified.
func (e *Emitter) snapshot() []subscription {
	return append([]subscription(nil), e.observers...)
}

// EmitRowChanged notifies observers that the values of the row at p changed.
// Each observer receives its own copy of p.
func (e *Emitter) EmitRowChanged(p Path, it Iter) {
	for _, s := range e.snapshot() {
		s.o.RowChanged(p.Copy(), it)
	}
}

// EmitRowInserted notifies observers that a row was inserted at p.
func (e *Emitter) EmitRowInserted(p Path, it Iter) {
	for _, s := range e.snapshot() {
		s.o.RowInserted(p.Copy(), it)
	}
}

// EmitRowHasChildToggled notifies observers that the row at p gained its
// first child or lost its last one.
func (e *Emitter) EmitRowHasChildToggled(p Path, it Iter) {
	for _, s := range e.snapshot() {
		s.o.RowHasChildToggled(p.Copy(), it)
	}
}

// EmitRowDeleted notifies observers that the row at p was deleted. The
// row is already gone from the model.
func (e *Emitter) EmitRowDeleted(p Path) {
	for _, s := range e.snapshot() {
		s.o.RowDeleted(p.Copy())
	}
}

// EmitRowsReordered notifies observers that the children of the row at p,
// or the top-level rows if p is empty, were reordered. newOrder[i] is the
// former position of the row now at position i.
func (e *Emitter) EmitRowsReordered(p Path, it *Iter, newOrder []int) {
	for _, s := range e.snapshot() {
		s.o.RowsReordered(p.Copy(), it, append([]int(nil), newOrder...))
	}
}

// ObserverFuncs adapts a set of functions to the Observer interface. Nil
// fields are ignored.
type ObserverFuncs struct {
	Changed         func(p Path, it Iter)
	Inserted        func(p Path, it Iter)
	HasChildToggled func(p Path, it Iter)
	Deleted         func(p Path)
	Reordered       func(p Path, it *Iter, newOrder []int)
}

var _ Observer = ObserverFuncs{}

func (f ObserverFuncs) RowChanged(p Path, it Iter) {
	if f.Changed != nil {
		f.Changed(p, it)
	}
}

func (f ObserverFuncs) RowInserted(p Path, it Iter) {
	if f.Inserted != nil {
		f.Inserted(p, it)
	}
}

func (f ObserverFuncs) RowHasChildToggled(p Path, it Iter) {
	if f.HasChildToggled != nil {
		f.HasChildToggled(p, it)
	}
}

func (f ObserverFuncs) RowDeleted(p Path) {
	if f.Deleted != nil {
		f.Deleted(p)
	}
}

func (f ObserverFuncs) RowsReordered(p Path, it *Iter, newOrder []int) {
	if f.Reordered != nil {
		f.Reordered(p, it, newOrder)
	}
}
