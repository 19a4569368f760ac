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

// Package arena provides slot-stable storage addressed by generational
// handles.
//
// A Handle stays meaningful across any number of allocations and frees of
// other slots: a freed slot bumps its generation, so handles which outlive
// the value they referenced fail to resolve instead of aliasing whatever
// value later reuses the slot.
package arena

// Handle addresses a value stored in an Arena. The zero Handle is never
// returned by Alloc and never resolves.
type Handle struct {
	idx uint32
	gen uint32
}

// Nil reports whether h is the zero Handle.
func (h Handle) Nil() bool { return h.gen == 0 }

// Pack encodes h into a single integer suitable for opaque iterator fields.
func (h Handle) Pack() uint64 { return uint64(h.gen)<<32 | uint64(h.idx) }

// Unpack is the inverse of Handle.Pack.
func Unpack(v uint64) Handle {
	return Handle{idx: uint32(v), gen: uint32(v >> 32)}
}

type slot[T any] struct {
	gen  uint32
	live bool
	v    T
}

// Arena stores values of type T. Pointers returned by Get remain valid
// until the value is freed; growing the arena never moves live values.
//
// Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []*slot[T]
	free  []uint32
	live  int
}

// Alloc stores the zero value of T in a free slot and returns its handle
// together with a pointer through which it may be initialized.
func (a *Arena[T]) Alloc() (Handle, *T) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, &slot[T]{})
	}
	s := a.slots[idx]
	s.gen++
	if s.gen == 0 {
		// Generation zero is reserved for the nil handle.
		s.gen++
	}
	s.live = true
	a.live++
	return Handle{idx: idx, gen: s.gen}, &s.v
}

// Get resolves h. It returns nil if h is nil, was freed, or belongs to a
// slot which has since been reused.
func (a *Arena[T]) Get(h Handle) *T {
	if h.gen == 0 || int(h.idx) >= len(a.slots) {
		return nil
	}
	s := a.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return &s.v
}

// Free releases the value addressed by h. Freeing a stale handle is a no-op.
// It reports whether a value was released.
func (a *Arena[T]) Free(h Handle) bool {
	if a.Get(h) == nil {
		return false
	}
	s := a.slots[h.idx]
	var zero T
	s.v = zero
	s.live = false
	a.free = append(a.free, h.idx)
	a.live--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Reset frees every value. Handles issued before Reset no longer resolve.
func (a *Arena[T]) Reset() {
	for i, s := range a.slots {
		if s.live {
			a.Free(Handle{idx: uint32(i), gen: s.gen})
		}
	}
}
