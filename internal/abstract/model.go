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

package abstract

import (
	"reflect"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/arena"
)

// Flags reports ListOnly if the source model does. Iters of a projection
// never persist.
func (p *Projection) Flags() treeproj.Flags {
	if p.src == nil {
		return 0
	}
	return p.src.Flags() & treeproj.ListOnly
}

// NColumns returns the number of columns of the source model.
func (p *Projection) NColumns() int {
	if p.src == nil {
		return 0
	}
	return p.src.NColumns()
}

// ColumnType returns the type of a column of the source model.
func (p *Projection) ColumnType(col int) reflect.Type {
	if p.src == nil {
		return nil
	}
	return p.src.ColumnType(col)
}

// GetIter returns an Iter for the row at path, materializing the levels
// along it.
func (p *Projection) GetIter(path treeproj.Path) (treeproj.Iter, bool) {
	if p.src == nil || len(path) == 0 {
		return treeproj.Iter{}, false
	}
	var lh, eh arena.Handle
	for _, idx := range path {
		lh = p.childLevel(lh, eh)
		if lh.Nil() {
			return treeproj.Iter{}, false
		}
		var ok bool
		if eh, ok = p.nthVisible(lh, idx); !ok {
			return treeproj.Iter{}, false
		}
	}
	return p.iterFor(lh, eh), true
}

// GetPath returns the path of the row it addresses.
func (p *Projection) GetPath(it treeproj.Iter) (treeproj.Path, bool) {
	lh, eh, ok := p.resolve(it)
	if !ok {
		return nil, false
	}
	return p.pathOf(lh, eh)
}

// Value returns the value of col in the source row it addresses.
func (p *Projection) Value(it treeproj.Iter, col int) any {
	_, eh, ok := p.resolve(it)
	if !ok {
		return nil
	}
	sit, ok := p.sourceIter(eh)
	if !ok {
		return nil
	}
	return p.src.Value(sit, col)
}

// IterNext returns the next visible sibling of it.
func (p *Projection) IterNext(it treeproj.Iter) (treeproj.Iter, bool) {
	lh, eh, ok := p.resolve(it)
	if !ok {
		return treeproj.Iter{}, false
	}
	l := p.lvl(lh)
	for _, next := range l.elts[p.elt(eh).pos+1:] {
		if p.elt(next).visible {
			return p.iterFor(lh, next), true
		}
	}
	return treeproj.Iter{}, false
}

// IterChildren returns the first child of parent, or the first row of the
// projection if parent is nil.
func (p *Projection) IterChildren(parent *treeproj.Iter) (treeproj.Iter, bool) {
	return p.IterNthChild(parent, 0)
}

// IterHasChild reports whether the row it addresses has visible children.
func (p *Projection) IterHasChild(it treeproj.Iter) bool {
	return p.IterNChildren(&it) > 0
}

// IterNChildren returns the number of visible children of parent, or of
// the root if parent is nil.
func (p *Projection) IterNChildren(parent *treeproj.Iter) int {
	lh, ok := p.parentLevel(parent)
	if !ok || lh.Nil() {
		return 0
	}
	return p.lvl(lh).visibleNodes
}

// IterNthChild returns the n'th visible child of parent, or the n'th row of
// the root if parent is nil.
func (p *Projection) IterNthChild(parent *treeproj.Iter, n int) (treeproj.Iter, bool) {
	lh, ok := p.parentLevel(parent)
	if !ok || lh.Nil() {
		return treeproj.Iter{}, false
	}
	eh, ok := p.nthVisible(lh, n)
	if !ok {
		return treeproj.Iter{}, false
	}
	return p.iterFor(lh, eh), true
}

// IterParent returns the parent of child. Rows of the root level have no
// parent.
func (p *Projection) IterParent(child treeproj.Iter) (treeproj.Iter, bool) {
	lh, _, ok := p.resolve(child)
	if !ok {
		return treeproj.Iter{}, false
	}
	l := p.lvl(lh)
	if l.parentElt.Nil() || !p.elt(l.parentElt).visible {
		return treeproj.Iter{}, false
	}
	return p.iterFor(l.parentLevel, l.parentElt), true
}

// parentLevel resolves parent and returns its materialized children level.
func (p *Projection) parentLevel(parent *treeproj.Iter) (arena.Handle, bool) {
	if p.src == nil {
		return arena.Handle{}, false
	}
	if parent == nil {
		return p.childLevel(arena.Handle{}, arena.Handle{}), true
	}
	lh, eh, ok := p.resolve(*parent)
	if !ok {
		return arena.Handle{}, false
	}
	return p.childLevel(lh, eh), true
}

// RefNode declares interest in the row it addresses. While a row is
// referenced its level stays cached. The reference is forwarded to the
// source model.
//
// Unlike the other methods RefNode and UnrefNode accept Iters issued before
// the last structural change, as long as the row is still cached.
func (p *Projection) RefNode(it treeproj.Iter) {
	lh, eh, ok := p.resolveHandles(it)
	if !ok {
		return
	}
	if sit, ok := p.sourceIter(eh); ok {
		p.src.RefNode(sit)
	}
	p.refElt(lh, eh)
}

// UnrefNode releases a reference taken with RefNode. Releasing a reference
// on a row which was removed in the meantime has no effect.
func (p *Projection) UnrefNode(it treeproj.Iter) {
	lh, eh, ok := p.resolveHandles(it)
	if !ok || p.elt(eh).refCount == 0 {
		return
	}
	if sit, ok := p.sourceIter(eh); ok {
		p.src.UnrefNode(sit)
	}
	p.unrefElt(lh, eh)
}
