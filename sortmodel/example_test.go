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

package sortmodel_test

import (
	"fmt"
	"reflect"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/sortmodel"
	"github.com/ajwerner/treeproj/treestore"
)

func Example() {
	store := treestore.New(reflect.TypeFor[string](), reflect.TypeFor[int]())
	for _, fruit := range []struct {
		name  string
		count int
	}{
		{"pear", 3}, {"apple", 7}, {"fig", 1},
	} {
		if _, err := store.Append(nil, fruit.name, fruit.count); err != nil {
			panic(err)
		}
	}

	m, err := sortmodel.New(store)
	if err != nil {
		panic(err)
	}
	if err := m.SetSortColumn(1, sortmodel.Descending); err != nil {
		panic(err)
	}
	m.Subscribe(treeproj.ObserverFuncs{
		Reordered: func(p treeproj.Path, _ *treeproj.Iter, newOrder []int) {
			fmt.Println("reordered", newOrder)
		},
	})
	treeproj.ForEach(m, func(p treeproj.Path, it treeproj.Iter) bool {
		fmt.Println(p, m.Value(it, 0), m.Value(it, 1))
		return false
	})

	fig, _ := store.GetIter(treeproj.NewPath(2))
	if err := store.Set(fig, 1, 9); err != nil {
		panic(err)
	}
	path, _ := m.ConvertChildPathToPath(treeproj.NewPath(2))
	fmt.Println("fig is now at", path)
	// Output:
	// 0 apple 7
	// 1 pear 3
	// 2 fig 1
	// reordered [2 0 1]
	// fig is now at 0
}
