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

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/arena"
	"github.com/ajwerner/treeproj/internal/metrics"
)

// relay receives the change notifications of the source model.
type relay struct{ p *Projection }

var _ treeproj.Observer = relay{}

func (r relay) RowChanged(path treeproj.Path, it treeproj.Iter)  { r.p.rowChanged(path, it) }
func (r relay) RowInserted(path treeproj.Path, it treeproj.Iter) { r.p.rowInserted(path, it) }
func (r relay) RowDeleted(path treeproj.Path)                    { r.p.rowDeleted(path) }

func (r relay) RowHasChildToggled(path treeproj.Path, it treeproj.Iter) {
	r.p.rowHasChildToggled(path, it)
}

func (r relay) RowsReordered(path treeproj.Path, it *treeproj.Iter, newOrder []int) {
	r.p.rowsReordered(path, newOrder)
}

// aborted records a source event which could not be translated.
func (p *Projection) aborted(event string, cpath treeproj.Path, reason string) {
	p.cfg.Metrics.Aborted(event)
	p.cfg.Logger.Debug("dropping source event",
		"event", event, "path", cpath.String(), "reason", reason)
}

// eventIter returns citer, or looks it up if the source did not supply one.
func (p *Projection) eventIter(cpath treeproj.Path, citer treeproj.Iter) (treeproj.Iter, bool) {
	if citer.Valid() {
		return citer, true
	}
	return p.src.GetIter(cpath)
}

func (p *Projection) rowChanged(cpath treeproj.Path, citer treeproj.Iter) {
	rel, ok := p.relPath(cpath)
	if !ok {
		return
	}
	citer, ok = p.eventIter(cpath, citer)
	if !ok {
		p.aborted(metrics.KindChanged, cpath, "unknown row")
		return
	}
	lh, eh, found := p.locate(rel, false, false)
	if !found && !p.cfg.Policy.Filters() {
		// Nothing is hidden, so a row outside the cache was never shown.
		return
	}
	want := p.visible(citer)
	cur := found && p.elt(eh).visible

	switch {
	case !cur && !want:
	case cur && !want:
		p.removeNode(lh, eh)
	case cur && want:
		p.contentChanged(lh, eh, citer)
	default:
		p.reveal(rel, citer)
	}
}

// contentChanged handles a change to a row which stays visible. The row is
// announced at its current position; if the policy moves it the move is
// announced as a reorder of its level.
func (p *Projection) contentChanged(lh, eh arena.Handle, citer treeproj.Iter) {
	path, inTarget := p.pathOf(lh, eh)
	if inTarget {
		p.emitChanged(path, p.iterFor(lh, eh))
	}

	l := p.lvl(lh)
	fromRank := p.visibleRank(l, p.elt(eh).pos)
	from, to := p.reposition(lh, eh, citer)
	if from != to {
		p.bumpStamp()
		toRank := p.visibleRank(l, p.elt(eh).pos)
		if inTarget && fromRank != toRank {
			if ppath, pit, ok := p.levelPath(lh); ok {
				p.emitReordered(ppath, pit, movePermutation(l.visibleNodes, fromRank, toRank))
			}
		}
	}

	if inTarget && p.cfg.Policy.Filters() && p.src.IterHasChild(citer) {
		if path, ok := p.pathOf(lh, eh); ok {
			p.emitHasChildToggled(path, p.iterFor(lh, eh))
		}
	}
}

// movePermutation returns the new_order array, new_order[new] = old, for a
// level of n rows in which one row moved from position from to position to.
func movePermutation(n, from, to int) []int {
	order := make([]int, n)
	for j := range order {
		switch {
		case j == to:
			order[j] = from
		case to > from && j >= from && j < to:
			order[j] = j + 1
		case to < from && j > to && j <= from:
			order[j] = j - 1
		default:
			order[j] = j
		}
	}
	return order
}

// reveal handles a row which became visible.
func (p *Projection) reveal(rel treeproj.Path, citer treeproj.Iter) {
	emitted := false
	if p.root.Nil() {
		// Building the root announces every visible row, this one included.
		p.buildLevel(arena.Handle{}, arena.Handle{}, true)
		emitted = true
	}
	p.bumpStamp()

	lh, eh, ok := p.locate(rel, false, true)
	if !ok {
		return
	}
	l, e := p.lvl(lh), p.elt(eh)
	if !e.visible {
		e.visible = true
		l.visibleNodes++
		p.reposition(lh, eh, citer)
	}

	path, inTarget := p.pathOf(lh, eh)
	if !inTarget {
		return
	}
	it := p.iterFor(lh, eh)
	if !emitted {
		p.emitInserted(path, it)
	}
	if !l.parentElt.Nil() && l.visibleNodes == 1 {
		p.emitHasChildToggled(path[:len(path)-1], p.iterFor(l.parentLevel, l.parentElt))
	}
	if !emitted && p.src.IterHasChild(citer) {
		p.emitHasChildToggled(path, it)
	}
}

// removeNode hides a row which is still present in the source.
func (p *Projection) removeNode(lh, eh arena.Handle) {
	l, e := p.lvl(lh), p.elt(eh)
	path, inTarget := p.pathOf(lh, eh)
	plh, peh := l.parentLevel, l.parentElt

	e.visible = false
	l.visibleNodes--
	toggle := inTarget && !peh.Nil() && l.visibleNodes == 0

	if !e.children.Nil() {
		p.freeLevel(e.children, true)
	}
	p.bumpStamp()
	if inTarget {
		p.emitDeleted(path)
	}
	p.dropRefs(lh, eh, true)

	switch {
	case len(l.elts) > 1:
		if e.srcRef {
			if it, ok := p.sourceIter(eh); ok {
				p.src.UnrefNode(it)
			}
		}
		p.removeElt(lh, eh)
	case p.isRoot(lh) || p.elt(peh).refCount > 0:
		// Keep the row as the placeholder of its level.
		if !e.srcRef {
			if it, ok := p.sourceIter(eh); ok {
				p.src.RefNode(it)
				e.srcRef = true
			}
		}
	default:
		p.freeLevel(lh, true)
	}

	if toggle {
		p.emitHasChildToggled(path[:len(path)-1], p.iterFor(plh, peh))
	}
}

func (p *Projection) rowInserted(cpath treeproj.Path, citer treeproj.Iter) {
	if p.vrootDeleted {
		return
	}
	if p.vroot != nil {
		shiftVirtualRoot(p.vroot, cpath, +1)
	}
	rel, ok := p.relPath(cpath)
	if !ok {
		return
	}
	citer, ok = p.eventIter(cpath, citer)
	if !ok {
		p.aborted(metrics.KindInserted, cpath, "unknown row")
		return
	}

	if p.root.Nil() {
		if p.vroot == nil && !p.visible(citer) {
			return
		}
		p.buildLevel(arena.Handle{}, arena.Handle{}, false)
		if p.root.Nil() || p.lvl(p.root).visibleNodes == 0 {
			return
		}
		p.bumpStamp()
		if lh, eh, ok := p.locate(rel, false, false); ok {
			if path, ok := p.pathOf(lh, eh); ok {
				p.emitInserted(path, p.iterFor(lh, eh))
			}
		}
		return
	}

	lh := p.root
	for _, offset := range rel[:len(rel)-1] {
		eh, ok := p.findOffset(lh, offset)
		if !ok {
			// The parent is filtered out.
			return
		}
		e := p.elt(eh)
		if e.children.Nil() {
			if path, ok := p.pathOf(lh, eh); ok {
				p.emitHasChildToggled(path, p.iterFor(lh, eh))
			}
			return
		}
		lh = e.children
	}

	l := p.lvl(lh)
	offset := rel.Last()
	p.shiftOffsets(l, offset, +1)
	if !p.visible(citer) {
		return
	}
	eh := p.newElement(lh, offset, citer, true)
	p.insertElt(lh, eh, citer)
	l.visibleNodes++
	p.bumpStamp()

	path, ok := p.pathOf(lh, eh)
	if !ok {
		return
	}
	p.emitInserted(path, p.iterFor(lh, eh))
	if !l.parentElt.Nil() && l.visibleNodes == 1 {
		p.emitHasChildToggled(path[:len(path)-1], p.iterFor(l.parentLevel, l.parentElt))
	}
}

func (p *Projection) rowHasChildToggled(cpath treeproj.Path, citer treeproj.Iter) {
	citer, ok := p.eventIter(cpath, citer)
	if !ok {
		p.aborted(metrics.KindHasChildToggled, cpath, "unknown row")
		return
	}
	if p.vroot != nil && p.root.Nil() && cpath.Equal(p.vroot) {
		p.buildLevel(arena.Handle{}, arena.Handle{}, true)
		return
	}

	rel, ok := p.relPath(cpath)
	if !ok {
		return
	}
	lh, eh, ok := p.locate(rel, false, true)
	if !ok {
		return
	}
	l, e := p.lvl(lh), p.elt(eh)
	want := p.visible(citer)
	switch {
	case !e.visible && !want:
		return
	case e.visible && !want:
		p.removeNode(lh, eh)
		return
	case !e.visible && want:
		e.visible = true
		l.visibleNodes++
		p.reposition(lh, eh, citer)
		p.bumpStamp()
		if path, ok := p.pathOf(lh, eh); ok {
			p.emitInserted(path, p.iterFor(lh, eh))
		}
	}

	if e.refCount > 0 && e.children.Nil() && p.src.IterHasChild(citer) {
		p.buildLevel(lh, eh, true)
	}
	if path, ok := p.pathOf(lh, eh); ok {
		p.emitHasChildToggled(path, p.iterFor(lh, eh))
	}
}

func (p *Projection) rowDeleted(cpath treeproj.Path) {
	if p.vrootDeleted {
		return
	}
	if p.vroot != nil && (cpath.IsAncestor(p.vroot) || cpath.Equal(p.vroot)) {
		p.virtualRootDeleted(cpath)
		return
	}
	if p.vroot != nil {
		shiftVirtualRoot(p.vroot, cpath, -1)
	}
	rel, ok := p.relPath(cpath)
	if !ok {
		return
	}

	lh, eh, found := p.locate(rel, false, false)
	if !found {
		// Not cached: only the offsets of the siblings change.
		if plh, ok := p.cachedLevel(rel[:len(rel)-1]); ok {
			p.shiftOffsets(p.lvl(plh), rel.Last()+1, -1)
		}
		return
	}

	l, e := p.lvl(lh), p.elt(eh)
	path, inTarget := p.pathOf(lh, eh)
	plh, peh := l.parentLevel, l.parentElt
	toggle := false
	if e.visible {
		e.visible = false
		l.visibleNodes--
		toggle = inTarget && !peh.Nil() && l.visibleNodes == 0
	}
	// Identities follow the source before anyone is told; the storage of
	// the row is released afterwards.
	p.unlinkOffset(l, eh)
	p.shiftOffsets(l, e.offset+1, -1)
	p.bumpStamp()
	if inTarget {
		p.emitDeleted(path)
	}

	// The source rows are gone; nothing is forwarded to the source.
	p.dropRefs(lh, eh, false)
	if !e.children.Nil() {
		p.freeLevel(e.children, false)
	}
	if len(l.elts) == 1 && !p.isRoot(lh) {
		p.freeLevel(lh, false)
	} else {
		p.removeElt(lh, eh)
	}

	if toggle {
		// Consumers may query the parent; it must not rebuild the level
		// which was just freed.
		p.inRowDeleted = true
		p.emitHasChildToggled(path[:len(path)-1], p.iterFor(plh, peh))
		p.inRowDeleted = false
	}
}

// cachedLevel returns the materialized level holding the children of the
// row at rel, or the root level for the empty path.
func (p *Projection) cachedLevel(rel treeproj.Path) (arena.Handle, bool) {
	lh := p.root
	for _, offset := range rel {
		if lh.Nil() {
			return arena.Handle{}, false
		}
		eh, ok := p.findOffset(lh, offset)
		if !ok {
			return arena.Handle{}, false
		}
		lh = p.elt(eh).children
	}
	return lh, !lh.Nil()
}

// virtualRootDeleted tears the projection down after the virtual root or
// one of its ancestors was deleted from the source.
func (p *Projection) virtualRootDeleted(cpath treeproj.Path) {
	// Ancestors above the deleted row still exist and are still pinned.
	p.unrefSourcePath(p.vroot, len(cpath)-1)
	p.vrootDeleted = true
	if p.root.Nil() {
		return
	}
	n := p.lvl(p.root).visibleNodes
	p.bumpStamp()
	for i := 0; i < n; i++ {
		p.emitDeleted(treeproj.NewPath(0))
	}
	p.freeLevel(p.root, false)
}

// shiftVirtualRoot adjusts vroot for a row inserted (delta +1) or deleted
// (delta -1) at cpath, a path no deeper than vroot.
func shiftVirtualRoot(vroot, cpath treeproj.Path, delta int) {
	d := len(cpath) - 1
	if d < 0 || d >= len(vroot) {
		return
	}
	for i := 0; i < d; i++ {
		if vroot[i] != cpath[i] {
			return
		}
	}
	if (delta > 0 && vroot[d] >= cpath[d]) || (delta < 0 && vroot[d] > cpath[d]) {
		vroot[d] += delta
	}
}

func (p *Projection) rowsReordered(cpath treeproj.Path, newOrder []int) {
	if p.vrootDeleted {
		return
	}
	if p.vroot != nil && cpath.IsAncestor(p.vroot) {
		d := len(cpath)
		for newPos, oldPos := range newOrder {
			if oldPos == p.vroot[d] {
				p.vroot[d] = newPos
				return
			}
		}
		p.aborted(metrics.KindReordered, cpath, "virtual root missing from new order")
		return
	}

	var lh arena.Handle
	switch {
	case p.vroot == nil && len(cpath) == 0, p.vroot != nil && cpath.Equal(p.vroot):
		lh = p.root
	default:
		rel, ok := p.relPath(cpath)
		if !ok {
			return
		}
		_, peh, ok := p.locate(rel, false, false)
		if !ok {
			return
		}
		lh = p.elt(peh).children
	}
	if lh.Nil() {
		return
	}

	l := p.lvl(lh)
	newOffset := make([]int, len(newOrder))
	for i := range newOffset {
		newOffset[i] = -1
	}
	for newPos, oldPos := range newOrder {
		if oldPos < 0 || oldPos >= len(newOrder) || newOffset[oldPos] >= 0 {
			p.aborted(metrics.KindReordered, cpath, "invalid new order")
			return
		}
		newOffset[oldPos] = newPos
	}
	for _, eh := range l.byOffset {
		if off := p.elt(eh).offset; off >= len(newOrder) || newOffset[off] < 0 {
			p.aborted(metrics.KindReordered, cpath, "new order does not cover level")
			return
		}
	}
	for _, eh := range l.byOffset {
		e := p.elt(eh)
		e.offset = newOffset[e.offset]
	}
	slices.SortFunc(l.byOffset, func(a, b arena.Handle) int {
		return p.elt(a).offset - p.elt(b).offset
	})
	if p.sorted() {
		// Display order does not depend on source order.
		return
	}

	before := p.visibleOrder(l)
	l.elts = slices.Clone(l.byOffset)
	p.reindex(l, 0)
	p.bumpStamp()
	if len(before) == 0 {
		return
	}
	if ppath, pit, ok := p.levelPath(lh); ok {
		p.emitReordered(ppath, pit, permutation(before, p.visibleOrder(l)))
	}
}

// permutation returns new_order, new_order[new] = old, mapping the
// positions of the handles in after to their positions in before.
func permutation(before, after []arena.Handle) []int {
	old := make(map[arena.Handle]int, len(before))
	for i, h := range before {
		old[h] = i
	}
	order := make([]int, len(after))
	for i, h := range after {
		order[i] = old[h]
	}
	return order
}
