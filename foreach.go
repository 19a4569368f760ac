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

// ForEach calls fn for every row of m in depth-first order until fn returns
// true. The path passed to fn is only valid for the duration of the call.
//
// Iters of models without ItersPersist must stay valid while fn runs, so fn
// must not change the structure of m.
func ForEach(m Model, fn func(p Path, it Iter) (stop bool)) {
	ForEachBelow(m, nil, fn)
}

// ForEachBelow is like ForEach but only visits the descendants of parent.
// Paths passed to fn are relative to parent. A nil parent visits all rows.
func ForEachBelow(m Model, parent *Iter, fn func(p Path, it Iter) (stop bool)) {
	var s iterStack
	var p Path
	it, ok := m.IterChildren(parent)
	if !ok {
		return
	}
	p = append(p, 0)
	for {
		if fn(p, it) {
			return
		}
		if child, ok := m.IterChildren(&it); ok {
			s.push(it)
			p = append(p, 0)
			it = child
			continue
		}
		for {
			if next, ok := m.IterNext(it); ok {
				it = next
				p[len(p)-1]++
				break
			}
			if s.len() == 0 {
				return
			}
			it = s.pop()
			p = p[:len(p)-1]
		}
	}
}

// iterStack holds the ancestors of the row currently visited by ForEach.
type iterStack struct {
	a    iterStackArr
	aLen int16 // -1 when using s
	s    []Iter
}

const iterStackDepth = 8

// Used to avoid allocations for stacks below a certain size.
type iterStackArr [iterStackDepth]Iter

func (is *iterStack) push(it Iter) {
	if is.aLen == -1 {
		is.s = append(is.s, it)
	} else if int(is.aLen) == len(is.a) {
		is.s = make([]Iter, int(is.aLen)+1, 2*int(is.aLen))
		copy(is.s, is.a[:])
		is.s[int(is.aLen)] = it
		is.aLen = -1
	} else {
		is.a[is.aLen] = it
		is.aLen++
	}
}

func (is *iterStack) pop() Iter {
	if is.aLen == -1 {
		it := is.s[len(is.s)-1]
		is.s = is.s[:len(is.s)-1]
		return it
	}
	is.aLen--
	return is.a[is.aLen]
}

func (is *iterStack) len() int {
	if is.aLen == -1 {
		return len(is.s)
	}
	return int(is.aLen)
}
