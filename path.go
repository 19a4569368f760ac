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

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a row by the sequence of sibling indices leading to it from
// the root. The empty path denotes the (possibly virtual) root itself.
//
// Paths have value semantics: they never alias into the storage of a model
// and remain meaningful across structural changes, unlike Iters.
type Path []int

// NewPath returns a path with the given indices.
func NewPath(indices ...int) Path {
	return append(Path(nil), indices...)
}

// ParsePath parses the colon separated form produced by Path.String, for
// example "0:4:2".
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ":")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		p = append(p, i)
	}
	return p, nil
}

// Depth returns the number of indices in the path.
func (p Path) Depth() int { return len(p) }

// Copy returns a copy of p that does not share storage with it.
func (p Path) Copy() Path {
	if p == nil {
		return nil
	}
	return append(make(Path, 0, len(p)), p...)
}

// Child returns a new path addressing the n'th child of p.
func (p Path) Child(n int) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, n)
}

// Parent returns the path of the parent row and false if p is the root.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1].Copy(), true
}

// Last returns the final index of the path. It is illegal to call Last on
// the empty path.
func (p Path) Last() int { return p[len(p)-1] }

// Compare orders paths depth-first, the order in which rows are displayed.
func (p Path) Compare(o Path) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}

// Equal reports whether p and o address the same row.
func (p Path) Equal(o Path) bool { return p.Compare(o) == 0 }

// IsAncestor reports whether p is a strict ancestor of descendant.
func (p Path) IsAncestor(descendant Path) bool {
	if len(p) >= len(descendant) {
		return false
	}
	for i := range p {
		if p[i] != descendant[i] {
			return false
		}
	}
	return true
}

// IsDescendant reports whether p is a strict descendant of ancestor.
func (p Path) IsDescendant(ancestor Path) bool { return ancestor.IsAncestor(p) }

// Prepend returns prefix followed by the indices of p.
func (p Path) Prepend(prefix Path) Path {
	r := make(Path, 0, len(prefix)+len(p))
	r = append(r, prefix...)
	return append(r, p...)
}

// TrimPrefix strips prefix from p. It returns false unless p is a strict
// descendant of prefix.
func (p Path) TrimPrefix(prefix Path) (Path, bool) {
	if !prefix.IsAncestor(p) {
		return nil, false
	}
	return p[len(prefix):].Copy(), true
}

// String renders the path as colon separated indices.
func (p Path) String() string {
	var b strings.Builder
	for i, idx := range p {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}
