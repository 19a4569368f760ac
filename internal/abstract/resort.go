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
	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/arena"
)

// Resort reorders every cached level after the ordering of the policy
// changed. A rows-reordered notification is emitted for every level whose
// visible order changed.
func (p *Projection) Resort() {
	if p.src == nil || p.root.Nil() {
		return
	}
	p.sortLevel(p.root)
}

// sortLevel re-sorts lh and the levels below it.
func (p *Projection) sortLevel(lh arena.Handle) {
	l := p.lvl(lh)
	if len(l.elts) > 0 {
		// Pin the level while observers react to the reorder.
		pin := l.elts[0]
		p.refElt(lh, pin)

		entries := make([]sortEntry, 0, len(l.byOffset))
		for _, eh := range l.byOffset {
			it, _ := p.sourceIter(eh)
			entries = append(entries, sortEntry{eh: eh, it: it})
		}
		p.sortEntries(entries)

		before := p.visibleOrder(l)
		for i, en := range entries {
			l.elts[i] = en.eh
		}
		p.reindex(l, 0)
		if order := permutation(before, p.visibleOrder(l)); !isIdentity(order) {
			p.bumpStamp()
			if ppath, pit, ok := p.levelPath(lh); ok {
				p.emitReordered(ppath, pit, order)
			}
		}
		p.unrefElt(lh, pin)
	}
	for _, eh := range l.elts {
		if c := p.elt(eh).children; !c.Nil() {
			p.sortLevel(c)
		}
	}
}

func isIdentity(order []int) bool {
	for i, o := range order {
		if i != o {
			return false
		}
	}
	return true
}

// Refilter re-evaluates the policy for every row of the source model below
// the root, as if each of them had changed. It visits the whole source
// model and is correspondingly slow.
func (p *Projection) Refilter() {
	if p.src == nil || p.vrootDeleted {
		return
	}
	var parent *treeproj.Iter
	if p.vroot != nil {
		it, ok := p.src.GetIter(p.vroot)
		if !ok {
			return
		}
		parent = &it
	}
	treeproj.ForEachBelow(p.src, parent, func(rel treeproj.Path, it treeproj.Iter) bool {
		p.rowChanged(rel.Prepend(p.vroot), it)
		return false
	})
}

// RowDraggable forwards to the source model if it is a treeproj.DragSource.
func (p *Projection) RowDraggable(path treeproj.Path) bool {
	ds, ok := p.src.(treeproj.DragSource)
	if !ok {
		return false
	}
	cpath, ok := p.ConvertPathToChildPath(path)
	return ok && ds.RowDraggable(cpath)
}

// DragDataDelete asks the source model to delete the row at path. The
// projection itself is only updated by the resulting change notification.
func (p *Projection) DragDataDelete(path treeproj.Path) bool {
	ds, ok := p.src.(treeproj.DragSource)
	if !ok {
		return false
	}
	cpath, ok := p.ConvertPathToChildPath(path)
	return ok && ds.DragDataDelete(cpath)
}
