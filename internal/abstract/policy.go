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

import "github.com/ajwerner/treeproj"

// Policy decides which source rows a projection shows and in which order.
// It is consulted whenever a level is materialized, a row is inserted, or a
// row's content changes.
//
// Policies are not validated: an inconsistent Compare or a Visible which
// depends on state the source model does not announce changes for yields
// incorrect ordering or visibility until the cache is cleared.
type Policy interface {

	// Visible reports whether the source row at it is part of the
	// projection. Rows whose ancestors are not visible are never shown,
	// regardless of Visible.
	Visible(src treeproj.Model, it treeproj.Iter) bool

	// Filters reports whether Visible can return false. Projections whose
	// policy never hides rows skip the visibility bookkeeping of the relay.
	Filters() bool

	// Sorted reports whether Compare defines the display order. Unsorted
	// projections show rows in source order.
	Sorted() bool

	// Compare orders two rows of the same level. It is only called when
	// Sorted returns true.
	Compare(src treeproj.Model, a, b treeproj.Iter) int
}

// Identity is the Policy which shows every row in source order.
type Identity struct{}

var _ Policy = Identity{}

// Visible implements Policy.
func (Identity) Visible(treeproj.Model, treeproj.Iter) bool { return true }

// Filters implements Policy.
func (Identity) Filters() bool { return false }

// Sorted implements Policy.
func (Identity) Sorted() bool { return false }

// Compare implements Policy.
func (Identity) Compare(treeproj.Model, treeproj.Iter, treeproj.Iter) int { return 0 }
