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

package sortmodel

import (
	"cmp"
	"time"

	"github.com/ajwerner/treeproj"
)

// ColumnCompare returns a CompareFunc which orders rows by the value of
// column col. It is used for sort columns without a sort func.
func ColumnCompare(col int) CompareFunc {
	return func(src treeproj.Model, a, b treeproj.Iter) int {
		return CompareValues(src.Value(a, col), src.Value(b, col))
	}
}

// CompareValues orders two column values of the same type. Integers,
// floats, strings, bools and time.Time are ordered naturally; nil sorts
// before everything else. Values of other types compare equal.
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch a := a.(type) {
	case int:
		return compareAs(a, b)
	case int8:
		return compareAs(a, b)
	case int16:
		return compareAs(a, b)
	case int32:
		return compareAs(a, b)
	case int64:
		return compareAs(a, b)
	case uint:
		return compareAs(a, b)
	case uint8:
		return compareAs(a, b)
	case uint16:
		return compareAs(a, b)
	case uint32:
		return compareAs(a, b)
	case uint64:
		return compareAs(a, b)
	case float32:
		return compareAs(a, b)
	case float64:
		return compareAs(a, b)
	case string:
		return compareAs(a, b)
	case bool:
		if b, ok := b.(bool); ok && a != b {
			if a {
				return 1
			}
			return -1
		}
	case time.Time:
		if b, ok := b.(time.Time); ok {
			return a.Compare(b)
		}
	}
	return 0
}

func compareAs[T cmp.Ordered](a T, b any) int {
	if b, ok := b.(T); ok {
		return cmp.Compare(a, b)
	}
	return 0
}
