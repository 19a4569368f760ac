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

package config

import (
	"fmt"

	"github.com/ajwerner/treeproj"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate is a compiled boolean expression over the columns of a row,
// such as `size > 100 && !hidden` or `name contains ".go"`. Columns are
// referred to by name.
type Predicate struct {
	Source string

	columns []string
	program *vm.Program
}

var zeroValues = map[string]any{
	"string": "",
	"int":    0,
	"float":  0.0,
	"bool":   false,
}

// ParsePredicate compiles s against the columns of the document. Unknown
// names, type mismatches and expressions which are not boolean are
// rejected.
func (d *Document) ParsePredicate(s string) (Predicate, error) {
	env := make(map[string]any, len(d.Columns))
	columns := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		env[c.Name] = zeroValues[c.Type]
		columns[i] = c.Name
	}
	program, err := expr.Compile(s, expr.Env(env), expr.AsBool())
	if err != nil {
		return Predicate{}, fmt.Errorf("predicate %q: %w", s, err)
	}
	return Predicate{Source: s, columns: columns, program: program}, nil
}

// Match reports whether the row at it satisfies the predicate. Rows for
// which the expression fails, for example because a value is missing,
// do not match.
func (p Predicate) Match(src treeproj.Model, it treeproj.Iter) bool {
	env := make(map[string]any, len(p.columns))
	for i, name := range p.columns {
		env[name] = src.Value(it, i)
	}
	out, err := expr.Run(p.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}
