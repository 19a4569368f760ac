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

// Package abstract implements the projection engine shared by the sort and
// filter models.
//
// A Projection presents a reordered or reduced view of a source model. It
// mirrors the source lazily: a level (the cached children of one row) is
// only materialized when a consumer enumerates or addresses it, and levels
// no consumer references may be released again. Each cached row is an
// element which remembers the row's offset among its siblings in the source
// (its identity) separately from its position in the projection (its
// display order).
package abstract

import (
	"math/rand/v2"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/arena"
	"github.com/ajwerner/treeproj/internal/metrics"
)

// Projection is the shared core of the projection models. It implements
// treeproj.Model in projection coordinates.
//
// A Projection is not safe for concurrent use. It must be driven from the
// goroutine which mutates the source model.
type Projection struct {
	cfg Config

	src         treeproj.Model
	persist     bool
	unsubscribe func()
	emitter     treeproj.Emitter

	levels arena.Arena[level]
	elts   arena.Arena[element]
	root   arena.Handle

	stamp         uint32
	zeroRefLevels int

	vroot        treeproj.Path
	vrootDeleted bool
	inRowDeleted bool
}

var _ treeproj.Model = (*Projection)(nil)

// New creates a Projection over src. A nil src yields a detached
// projection which reports no rows until Attach is called.
func New(src treeproj.Model, cfg Config) *Projection {
	p := &Projection{cfg: cfg.withDefaults()}
	p.vroot = p.cfg.VirtualRoot
	p.stamp = rand.Uint32()
	if p.stamp == 0 {
		p.stamp = 1
	}
	if src != nil {
		p.Attach(src)
	}
	return p
}

// Attach subscribes the projection to src, detaching it from its previous
// source model first.
func (p *Projection) Attach(src treeproj.Model) {
	p.Detach()
	if src == nil {
		return
	}
	p.src = src
	p.persist = src.Flags()&treeproj.ItersPersist != 0
	p.unsubscribe = src.Subscribe(relay{p})
	p.vrootDeleted = false
	if p.vroot != nil {
		p.refSourcePath(p.vroot, len(p.vroot))
	}
}

// Detach frees every cached level, releases the references the projection
// holds on the source model and stops listening to it.
func (p *Projection) Detach() {
	if p.src == nil {
		return
	}
	if !p.root.Nil() {
		p.freeLevel(p.root, true)
	}
	p.unsubscribe()
	if p.vroot != nil && !p.vrootDeleted {
		p.unrefSourcePath(p.vroot, len(p.vroot))
	}
	p.src, p.unsubscribe = nil, nil
	p.levels.Reset()
	p.elts.Reset()
	p.zeroRefLevels = 0
	p.bumpStamp()
}

// Source returns the source model, or nil if the projection is detached.
func (p *Projection) Source() treeproj.Model { return p.src }

// Policy returns the configured policy.
func (p *Projection) Policy() Policy { return p.cfg.Policy }

// VirtualRoot returns the source path the projection is rooted at, or nil.
// The path tracks insertions, deletions and reorders above the virtual
// root.
func (p *Projection) VirtualRoot() treeproj.Path { return p.vroot.Copy() }

// Stats describes the state of the cache.
type Stats struct {
	Levels        int
	Elements      int
	ZeroRefLevels int
	Stamp         uint32
}

// Stats reports the current size of the cache.
func (p *Projection) Stats() Stats {
	return Stats{
		Levels:        p.levels.Len(),
		Elements:      p.elts.Len(),
		ZeroRefLevels: p.zeroRefLevels,
		Stamp:         p.stamp,
	}
}

// Subscribe registers o for change notifications in projection
// coordinates.
func (p *Projection) Subscribe(o treeproj.Observer) (unsubscribe func()) {
	return p.emitter.Subscribe(o)
}

// bumpStamp invalidates every outstanding Iter.
func (p *Projection) bumpStamp() {
	p.stamp++
	if p.stamp == 0 {
		p.stamp++
	}
}

func (p *Projection) emitChanged(path treeproj.Path, it treeproj.Iter) {
	p.cfg.Metrics.Emitted(metrics.KindChanged)
	p.emitter.EmitRowChanged(path, it)
}

func (p *Projection) emitInserted(path treeproj.Path, it treeproj.Iter) {
	p.cfg.Metrics.Emitted(metrics.KindInserted)
	p.emitter.EmitRowInserted(path, it)
}

func (p *Projection) emitHasChildToggled(path treeproj.Path, it treeproj.Iter) {
	p.cfg.Metrics.Emitted(metrics.KindHasChildToggled)
	p.emitter.EmitRowHasChildToggled(path, it)
}

func (p *Projection) emitDeleted(path treeproj.Path) {
	p.cfg.Metrics.Emitted(metrics.KindDeleted)
	p.emitter.EmitRowDeleted(path)
}

func (p *Projection) emitReordered(path treeproj.Path, it *treeproj.Iter, newOrder []int) {
	p.cfg.Metrics.Emitted(metrics.KindReordered)
	p.emitter.EmitRowsReordered(path, it, newOrder)
}

// refSourcePath refs the first n prefixes of path in the source model.
func (p *Projection) refSourcePath(path treeproj.Path, n int) {
	for i := 1; i <= n; i++ {
		if it, ok := p.src.GetIter(path[:i]); ok {
			p.src.RefNode(it)
		}
	}
}

func (p *Projection) unrefSourcePath(path treeproj.Path, n int) {
	for i := 1; i <= n; i++ {
		if it, ok := p.src.GetIter(path[:i]); ok {
			p.src.UnrefNode(it)
		}
	}
}
