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

// iterFor returns the Iter addressing eh in lh.
func (p *Projection) iterFor(lh, eh arena.Handle) treeproj.Iter {
	return treeproj.Iter{Stamp: p.stamp, Data1: lh.Pack(), Data2: eh.Pack()}
}

// resolve decodes an Iter issued at the current stamp.
func (p *Projection) resolve(it treeproj.Iter) (lh, eh arena.Handle, ok bool) {
	if p.src == nil || it.Stamp != p.stamp {
		return arena.Handle{}, arena.Handle{}, false
	}
	lh, eh, ok = p.resolveHandles(it)
	if !ok || !p.elt(eh).visible {
		return arena.Handle{}, arena.Handle{}, false
	}
	return lh, eh, true
}

// resolveHandles decodes an Iter regardless of its stamp. The generations
// of the handles guarantee that an Iter never resolves to an element other
// than the one it was issued for.
func (p *Projection) resolveHandles(it treeproj.Iter) (lh, eh arena.Handle, ok bool) {
	if p.src == nil || !it.Valid() {
		return arena.Handle{}, arena.Handle{}, false
	}
	lh, eh = arena.Unpack(it.Data1), arena.Unpack(it.Data2)
	e := p.elt(eh)
	if e == nil || e.level != lh || p.lvl(lh) == nil {
		return arena.Handle{}, arena.Handle{}, false
	}
	return lh, eh, true
}

// levelSourcePath returns the source path of the row whose children lh
// holds.
func (p *Projection) levelSourcePath(lh arena.Handle) treeproj.Path {
	l := p.lvl(lh)
	if l.parentElt.Nil() {
		return p.vroot.Copy()
	}
	return p.sourcePath(l.parentElt)
}

// sourcePath returns the source path of the row eh stands for.
func (p *Projection) sourcePath(eh arena.Handle) treeproj.Path {
	e := p.elt(eh)
	return p.levelSourcePath(e.level).Child(e.offset)
}

// sourceIter returns a source Iter for the row eh stands for.
func (p *Projection) sourceIter(eh arena.Handle) (treeproj.Iter, bool) {
	if e := p.elt(eh); p.persist && e.siter.Valid() {
		return e.siter, true
	}
	return p.src.GetIter(p.sourcePath(eh))
}

// pathOf returns the projection path of eh. It fails unless eh and all of
// its ancestors are visible.
func (p *Projection) pathOf(lh, eh arena.Handle) (treeproj.Path, bool) {
	var rev []int
	for !lh.Nil() {
		l, e := p.lvl(lh), p.elt(eh)
		if !e.visible {
			return nil, false
		}
		rev = append(rev, p.visibleRank(l, e.pos))
		lh, eh = l.parentLevel, l.parentElt
	}
	path := make(treeproj.Path, len(rev))
	for i, idx := range rev {
		path[len(rev)-1-i] = idx
	}
	return path, true
}

// levelPath returns the projection path and Iter of the row whose children
// lh holds. The root level yields the empty path and a nil Iter.
func (p *Projection) levelPath(lh arena.Handle) (treeproj.Path, *treeproj.Iter, bool) {
	l := p.lvl(lh)
	if l.parentElt.Nil() {
		return treeproj.Path{}, nil, true
	}
	path, ok := p.pathOf(l.parentLevel, l.parentElt)
	if !ok {
		return nil, nil, false
	}
	it := p.iterFor(l.parentLevel, l.parentElt)
	return path, &it, true
}

// relPath strips the virtual root from a source path. It fails for paths
// which are not strict descendants of the virtual root, and for every path
// once the virtual root was deleted.
func (p *Projection) relPath(cpath treeproj.Path) (treeproj.Path, bool) {
	if p.vrootDeleted {
		return nil, false
	}
	if p.vroot == nil {
		return cpath, len(cpath) > 0
	}
	return cpath.TrimPrefix(p.vroot)
}

// childLevel returns the level holding the children of eh, or the root
// level if eh is nil, materializing it if necessary. It returns the nil
// handle if there are no children.
func (p *Projection) childLevel(lh, eh arena.Handle) arena.Handle {
	if eh.Nil() {
		if p.root.Nil() {
			p.buildLevel(arena.Handle{}, arena.Handle{}, false)
		}
		return p.root
	}
	if e := p.elt(eh); e.children.Nil() {
		p.buildLevel(lh, eh, false)
	}
	return p.elt(eh).children
}

// locate finds the element of the source row at rel, a path relative to the
// virtual root. Missing levels are materialized if build is set; visible
// rows missing from a materialized level are fetched into it if fetch is
// set. Fetched elements are created invisible; the caller decides whether
// to reveal them.
func (p *Projection) locate(rel treeproj.Path, build, fetch bool) (lh, eh arena.Handle, ok bool) {
	if p.src == nil || len(rel) == 0 {
		return arena.Handle{}, arena.Handle{}, false
	}
	if p.root.Nil() {
		if !build {
			return arena.Handle{}, arena.Handle{}, false
		}
		p.buildLevel(arena.Handle{}, arena.Handle{}, false)
	}
	lh = p.root
	for i, offset := range rel {
		if lh.Nil() {
			return arena.Handle{}, arena.Handle{}, false
		}
		last := i == len(rel)-1
		eh, ok = p.findOffset(lh, offset)
		if !ok && fetch && last {
			eh, ok = p.fetchChild(lh, offset)
		}
		if !ok {
			return arena.Handle{}, arena.Handle{}, false
		}
		if last {
			return lh, eh, true
		}
		if p.elt(eh).children.Nil() && build {
			p.buildLevel(lh, eh, false)
		}
		lh = p.elt(eh).children
	}
	return arena.Handle{}, arena.Handle{}, false
}

// fetchChild pulls the source row with the given offset into lh if the
// policy shows it. The new element is invisible.
func (p *Projection) fetchChild(lh arena.Handle, offset int) (arena.Handle, bool) {
	it, ok := p.src.GetIter(p.levelSourcePath(lh).Child(offset))
	if !ok || !p.visible(it) {
		return arena.Handle{}, false
	}
	eh := p.newElement(lh, offset, it, false)
	p.insertElt(lh, eh, it)
	return eh, true
}

// ConvertChildPathToPath converts a path of the source model into the path
// of the same row in the projection. It fails if the row is not visible.
func (p *Projection) ConvertChildPathToPath(cpath treeproj.Path) (treeproj.Path, bool) {
	rel, ok := p.relPath(cpath)
	if !ok {
		return nil, false
	}
	lh, eh, ok := p.locate(rel, true, false)
	if !ok {
		return nil, false
	}
	return p.pathOf(lh, eh)
}

// ConvertPathToChildPath converts a projection path into the path of the
// same row in the source model.
func (p *Projection) ConvertPathToChildPath(path treeproj.Path) (treeproj.Path, bool) {
	it, ok := p.GetIter(path)
	if !ok {
		return nil, false
	}
	return p.sourcePath(arena.Unpack(it.Data2)), true
}

// ConvertChildIterToIter converts an Iter of the source model into an Iter
// of the projection addressing the same row.
func (p *Projection) ConvertChildIterToIter(citer treeproj.Iter) (treeproj.Iter, bool) {
	if p.src == nil {
		return treeproj.Iter{}, false
	}
	cpath, ok := p.src.GetPath(citer)
	if !ok {
		return treeproj.Iter{}, false
	}
	rel, ok := p.relPath(cpath)
	if !ok {
		return treeproj.Iter{}, false
	}
	lh, eh, ok := p.locate(rel, true, false)
	if !ok {
		return treeproj.Iter{}, false
	}
	if _, ok := p.pathOf(lh, eh); !ok {
		return treeproj.Iter{}, false
	}
	return p.iterFor(lh, eh), true
}

// ConvertIterToChildIter converts a projection Iter into an Iter of the
// source model addressing the same row.
func (p *Projection) ConvertIterToChildIter(it treeproj.Iter) (treeproj.Iter, bool) {
	_, eh, ok := p.resolve(it)
	if !ok {
		return treeproj.Iter{}, false
	}
	return p.sourceIter(eh)
}
