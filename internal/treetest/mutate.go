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

package treetest

import (
	"fmt"
	"math/rand/v2"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/treestore"
)

// MaxDepth bounds the depth of the rows Mutate inserts.
const MaxDepth = 3

// Mutate applies one random change to the int column 0 of s: an insert,
// a value change, a removal or a reorder of some level. It returns a
// description of the change for failure messages.
func Mutate(rng *rand.Rand, s *treestore.Store, maxValue int) string {
	var rows []treeproj.Iter
	treeproj.ForEach(s, func(_ treeproj.Path, it treeproj.Iter) bool {
		rows = append(rows, it)
		return false
	})
	pick := func() (*treeproj.Iter, treeproj.Path) {
		if len(rows) == 0 || rng.IntN(4) == 0 {
			return nil, treeproj.Path{}
		}
		it := rows[rng.IntN(len(rows))]
		p, _ := s.GetPath(it)
		return &it, p
	}

	switch op := rng.IntN(8); {
	case op < 3 || len(rows) == 0:
		parent, p := pick()
		if len(p) >= MaxDepth {
			parent, p = nil, treeproj.Path{}
		}
		pos := rng.IntN(s.IterNChildren(parent) + 1)
		v := rng.IntN(maxValue)
		if _, err := s.Insert(parent, pos, v); err != nil {
			panic(err)
		}
		return fmt.Sprintf("insert %v at %v", v, p.Child(pos))
	case op < 6:
		it := rows[rng.IntN(len(rows))]
		p, _ := s.GetPath(it)
		v := rng.IntN(maxValue)
		if err := s.Set(it, 0, v); err != nil {
			panic(err)
		}
		return fmt.Sprintf("set %v to %v", p, v)
	case op < 7:
		it := rows[rng.IntN(len(rows))]
		p, _ := s.GetPath(it)
		s.Remove(it)
		return fmt.Sprintf("remove %v", p)
	default:
		parent, p := pick()
		n := s.IterNChildren(parent)
		if n == 0 {
			return "noop"
		}
		order := rng.Perm(n)
		if err := s.Reorder(parent, order); err != nil {
			panic(err)
		}
		return fmt.Sprintf("reorder %v by %v", p, order)
	}
}
