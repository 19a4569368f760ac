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

import "github.com/ajwerner/treeproj/internal/arena"

// refElt takes a reference on eh. It does not touch the source model.
func (p *Projection) refElt(lh, eh arena.Handle) {
	l, e := p.lvl(lh), p.elt(eh)
	e.refCount++
	l.refCount++
	if l.refCount == 1 {
		p.propagateZeroRef(lh, -1)
	}
}

// unrefElt drops a reference on eh. It does not touch the source model.
func (p *Projection) unrefElt(lh, eh arena.Handle) {
	l, e := p.lvl(lh), p.elt(eh)
	if e.refCount == 0 {
		return
	}
	e.refCount--
	l.refCount--
	if l.refCount == 0 {
		p.propagateZeroRef(lh, +1)
	}
}

// propagateZeroRef records that lh gained (+1) or lost (-1) the state of
// having no references, on every ancestor element and, unless lh is the
// root level, in the projection-wide count.
func (p *Projection) propagateZeroRef(lh arena.Handle, delta int) {
	l := p.lvl(lh)
	for plh, peh := l.parentLevel, l.parentElt; !plh.Nil(); {
		p.elt(peh).zeroRefCount += delta
		pl := p.lvl(plh)
		plh, peh = pl.parentLevel, pl.parentElt
	}
	if !p.isRoot(lh) {
		p.zeroRefLevels += delta
	}
}

// dropRefs releases every consumer reference on eh. The references are
// forwarded to the source model if forward is set.
func (p *Projection) dropRefs(lh, eh arena.Handle, forward bool) {
	e := p.elt(eh)
	if e.refCount == 0 {
		return
	}
	if forward {
		if it, ok := p.sourceIter(eh); ok {
			for n := e.refCount; n > 0; n-- {
				p.src.UnrefNode(it)
			}
		}
	}
	for e.refCount > 0 {
		p.unrefElt(lh, eh)
	}
}

// ClearCache frees every level which is not referenced and has no
// referenced descendant. The root level is kept.
func (p *Projection) ClearCache() {
	if p.src == nil || p.root.Nil() {
		return
	}
	p.clearLevel(p.root)
}

// clearLevel frees what it can below lh, then lh itself if nothing below
// it survived.
func (p *Projection) clearLevel(lh arena.Handle) {
	l := p.lvl(lh)
	pinned := false
	for _, eh := range l.elts {
		e := p.elt(eh)
		if e.children.Nil() {
			continue
		}
		if e.zeroRefCount > 0 {
			p.clearLevel(e.children)
		}
		if !e.children.Nil() {
			pinned = true
		}
	}
	if !pinned && l.refCount == 0 && !p.isRoot(lh) {
		p.freeLevel(lh, true)
	}
}
