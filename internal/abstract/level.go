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
	"slices"
	"sort"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/arena"
)

// element is the cached proxy of one source row.
type element struct {
	// offset is the index of the row among its siblings in the source.
	offset int
	// pos is the index of the element in its level's display order.
	pos      int
	level    arena.Handle
	children arena.Handle

	// refCount counts the references consumers hold on the element.
	refCount int
	// zeroRefCount counts the descendant levels without references.
	zeroRefCount int

	visible bool
	// srcRef is set while the projection holds a reference on the
	// corresponding source row.
	srcRef bool
	// siter caches the source iter if the source's iters persist.
	siter treeproj.Iter
}

// level is the cached set of children of one row, or of the root.
type level struct {
	// elts is the display order.
	elts []arena.Handle
	// byOffset holds the same elements ordered by source offset.
	byOffset []arena.Handle

	// refCount is the sum of the refCounts of the elements.
	refCount     int
	visibleNodes int

	parentLevel arena.Handle
	parentElt   arena.Handle
}

func (p *Projection) lvl(h arena.Handle) *level     { return p.levels.Get(h) }
func (p *Projection) elt(h arena.Handle) *element   { return p.elts.Get(h) }
func (p *Projection) isRoot(lh arena.Handle) bool   { return lh == p.root }
func (p *Projection) sorted() bool                  { return p.cfg.Policy.Sorted() }
func (p *Projection) visible(it treeproj.Iter) bool { return p.cfg.Policy.Visible(p.src, it) }

// buildLevel materializes the children of parentElt, or the root level if
// parentElt is nil. Nothing is built if the source row has no children.
//
// Levels in which no row is visible keep the first source row as an
// invisible placeholder so that a row becoming visible later has a level
// to be fetched into.
func (p *Projection) buildLevel(parentLevel, parentElt arena.Handle, emit bool) {
	if p.src == nil || p.inRowDeleted {
		return
	}
	var parent *treeproj.Iter
	if !parentElt.Nil() {
		it, ok := p.sourceIter(parentElt)
		if !ok {
			return
		}
		parent = &it
	} else if p.vroot != nil {
		if p.vrootDeleted {
			return
		}
		it, ok := p.src.GetIter(p.vroot)
		if !ok {
			return
		}
		parent = &it
	}
	first, ok := p.src.IterChildren(parent)
	if !ok {
		return
	}

	lh, l := p.levels.Alloc()
	l.parentLevel, l.parentElt = parentLevel, parentElt
	if parentElt.Nil() {
		p.root = lh
	} else {
		p.elt(parentElt).children = lh
	}
	p.propagateZeroRef(lh, +1)
	p.cfg.Metrics.LevelBuilt()

	var entries []sortEntry
	offset := 0
	for it, more := first, true; more; it, more = p.src.IterNext(it) {
		if p.visible(it) {
			eh := p.newElement(lh, offset, it, true)
			l.byOffset = append(l.byOffset, eh)
			l.visibleNodes++
			entries = append(entries, sortEntry{eh: eh, it: it})
		}
		offset++
	}
	if len(entries) == 0 {
		eh := p.newElement(lh, 0, first, false)
		l.byOffset = append(l.byOffset, eh)
		entries = append(entries, sortEntry{eh: eh, it: first})
	}
	p.sortEntries(entries)
	l.elts = make([]arena.Handle, len(entries))
	for i, en := range entries {
		l.elts[i] = en.eh
	}
	p.reindex(l, 0)

	if !emit {
		return
	}
	for _, en := range entries {
		e := p.elt(en.eh)
		if e == nil || !e.visible {
			continue
		}
		path, ok := p.pathOf(lh, en.eh)
		if !ok {
			continue
		}
		it := p.iterFor(lh, en.eh)
		p.emitInserted(path, it)
		if p.src.IterHasChild(en.it) {
			p.emitHasChildToggled(path, it)
		}
	}
}

// newElement allocates an element for the source row it. Elements outside
// the root level, and placeholders, hold a reference on their source row.
func (p *Projection) newElement(lh arena.Handle, offset int, it treeproj.Iter, visible bool) arena.Handle {
	eh, e := p.elts.Alloc()
	e.offset = offset
	e.level = lh
	e.visible = visible
	if p.persist {
		e.siter = it
	}
	if !visible || !p.isRoot(lh) || p.vroot != nil {
		e.srcRef = true
		p.src.RefNode(it)
	}
	return eh
}

// freeLevel releases lh and everything below it. If release is set the
// source references held by the released elements, including those
// forwarded on behalf of consumers, are dropped. It must not be set when
// the rows no longer exist in the source.
func (p *Projection) freeLevel(lh arena.Handle, release bool) {
	l := p.lvl(lh)
	if l == nil {
		return
	}
	for _, eh := range l.elts {
		e := p.elt(eh)
		if !e.children.Nil() {
			p.freeLevel(e.children, release)
		}
		if !release {
			continue
		}
		if n := e.refCount + btoi(e.srcRef); n > 0 {
			if it, ok := p.sourceIter(eh); ok {
				for ; n > 0; n-- {
					p.src.UnrefNode(it)
				}
			}
		}
	}
	if l.refCount == 0 {
		p.propagateZeroRef(lh, -1)
	}
	if l.parentElt.Nil() {
		p.root = arena.Handle{}
	} else if pe := p.elt(l.parentElt); pe != nil {
		pe.children = arena.Handle{}
	}
	for _, eh := range l.elts {
		p.elts.Free(eh)
	}
	p.levels.Free(lh)
	p.cfg.Metrics.LevelFreed()
}

// reindex refreshes the display positions of the elements from i onwards.
func (p *Projection) reindex(l *level, i int) {
	for ; i < len(l.elts); i++ {
		p.elt(l.elts[i]).pos = i
	}
}

// offsetIndex returns the index in byOffset at which an element with the
// given offset is or would be stored.
func (p *Projection) offsetIndex(l *level, offset int) (int, bool) {
	i := sort.Search(len(l.byOffset), func(i int) bool {
		return p.elt(l.byOffset[i]).offset >= offset
	})
	return i, i < len(l.byOffset) && p.elt(l.byOffset[i]).offset == offset
}

// findOffset looks up the element for the source row with the given offset.
func (p *Projection) findOffset(lh arena.Handle, offset int) (arena.Handle, bool) {
	l := p.lvl(lh)
	i, ok := p.offsetIndex(l, offset)
	if !ok {
		return arena.Handle{}, false
	}
	return l.byOffset[i], true
}

// shiftOffsets adds delta to the offset of every element whose offset is at
// least from.
func (p *Projection) shiftOffsets(l *level, from, delta int) {
	for _, eh := range l.byOffset {
		if e := p.elt(eh); e.offset >= from {
			e.offset += delta
		}
	}
}

// insertionIndex returns the display position an element with the given
// source row and offset takes in l. Equal rows are placed after existing
// ones.
func (p *Projection) insertionIndex(l *level, it treeproj.Iter, offset int) int {
	if !p.sorted() {
		return sort.Search(len(l.elts), func(i int) bool {
			return p.elt(l.elts[i]).offset > offset
		})
	}
	return sort.Search(len(l.elts), func(i int) bool {
		other, ok := p.sourceIter(l.elts[i])
		return ok && p.cfg.Policy.Compare(p.src, other, it) > 0
	})
}

// insertElt links eh into lh at the position dictated by the policy.
func (p *Projection) insertElt(lh, eh arena.Handle, it treeproj.Iter) {
	l, e := p.lvl(lh), p.elt(eh)
	i := p.insertionIndex(l, it, e.offset)
	l.elts = slices.Insert(l.elts, i, eh)
	p.reindex(l, i)
	j, _ := p.offsetIndex(l, e.offset)
	l.byOffset = slices.Insert(l.byOffset, j, eh)
}

// removeElt unlinks and frees eh. Its children must have been freed.
func (p *Projection) removeElt(lh, eh arena.Handle) {
	l, e := p.lvl(lh), p.elt(eh)
	l.elts = slices.Delete(l.elts, e.pos, e.pos+1)
	p.reindex(l, e.pos)
	p.unlinkOffset(l, eh)
	p.elts.Free(eh)
}

// unlinkOffset removes eh from the identity index of l, if present.
func (p *Projection) unlinkOffset(l *level, eh arena.Handle) {
	if j, ok := p.offsetIndex(l, p.elt(eh).offset); ok && l.byOffset[j] == eh {
		l.byOffset = slices.Delete(l.byOffset, j, j+1)
	}
}

// reposition moves eh to the display position dictated by the policy after
// the content of its source row changed. It returns the old and new
// positions.
func (p *Projection) reposition(lh, eh arena.Handle, it treeproj.Iter) (from, to int) {
	l, e := p.lvl(lh), p.elt(eh)
	from = e.pos
	if !p.sorted() || len(l.elts) < 2 {
		return from, from
	}
	l.elts = slices.Delete(l.elts, from, from+1)
	to = p.insertionIndex(l, it, e.offset)
	l.elts = slices.Insert(l.elts, to, eh)
	p.reindex(l, min(from, to))
	return from, to
}

type sortEntry struct {
	eh arena.Handle
	it treeproj.Iter
}

// sortEntries orders entries, given in source order, by the policy.
func (p *Projection) sortEntries(entries []sortEntry) {
	if !p.sorted() || len(entries) < 2 {
		return
	}
	slices.SortStableFunc(entries, func(a, b sortEntry) int {
		return p.cfg.Policy.Compare(p.src, a.it, b.it)
	})
}

// visibleRank returns the number of visible elements before pos.
func (p *Projection) visibleRank(l *level, pos int) int {
	if l.visibleNodes == len(l.elts) {
		return pos
	}
	n := 0
	for _, eh := range l.elts[:pos] {
		if p.elt(eh).visible {
			n++
		}
	}
	return n
}

// nthVisible returns the n'th visible element of lh in display order.
func (p *Projection) nthVisible(lh arena.Handle, n int) (arena.Handle, bool) {
	l := p.lvl(lh)
	if n < 0 || n >= l.visibleNodes {
		return arena.Handle{}, false
	}
	if l.visibleNodes == len(l.elts) {
		return l.elts[n], true
	}
	for _, eh := range l.elts {
		if !p.elt(eh).visible {
			continue
		}
		if n == 0 {
			return eh, true
		}
		n--
	}
	return arena.Handle{}, false
}

// visibleOrder returns the visible elements of l in display order.
func (p *Projection) visibleOrder(l *level) []arena.Handle {
	out := make([]arena.Handle, 0, l.visibleNodes)
	for _, eh := range l.elts {
		if p.elt(eh).visible {
			out = append(out, eh)
		}
	}
	return out
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
