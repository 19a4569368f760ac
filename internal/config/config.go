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

// Package config loads YAML documents describing a tree of rows and the
// view of it to present: the sort column, the filter and the virtual root.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/treestore"
	"gopkg.in/yaml.v3"
)

// Document is a tree of rows together with its column definitions.
type Document struct {
	Columns []Column `yaml:"columns"`
	Rows    []Row    `yaml:"rows"`
	View    View     `yaml:"view"`
}

// Column names a column and its type, one of "string", "int", "float"
// and "bool".
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Row is a row of the tree. Values are given in column order; missing
// trailing values are left unset.
type Row struct {
	Values   []any `yaml:"values"`
	Children []Row `yaml:"children,omitempty"`
}

// View selects how the tree is presented.
type View struct {
	// Sort names the sort column. Empty leaves rows in document order.
	Sort string `yaml:"sort,omitempty"`
	// Order is "ascending" (the default) or "descending".
	Order string `yaml:"order,omitempty"`
	// Filter is a boolean expression over the columns such as
	// `size > 10 && !hidden`; see ParsePredicate.
	Filter string `yaml:"filter,omitempty"`
	// Root is the colon separated path of the row to present the
	// descendants of.
	Root string `yaml:"root,omitempty"`
}

var columnTypes = map[string]reflect.Type{
	"string": reflect.TypeFor[string](),
	"int":    reflect.TypeFor[int](),
	"float":  reflect.TypeFor[float64](),
	"bool":   reflect.TypeFor[bool](),
}

// ErrInvalidDocument is wrapped by all validation errors.
var ErrInvalidDocument = errors.New("invalid document")

// Load parses and validates a document.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile loads the document stored at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// ColumnIndex returns the index of the column with the given name.
func (d *Document) ColumnIndex(name string) (int, bool) {
	for i, c := range d.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Types returns the types of the columns.
func (d *Document) Types() []reflect.Type {
	types := make([]reflect.Type, len(d.Columns))
	for i, c := range d.Columns {
		types[i] = columnTypes[c.Type]
	}
	return types
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Validate reports every problem of the document at once.
func (d *Document) Validate() error {
	var errs []error
	if len(d.Columns) == 0 {
		errs = append(errs, invalid("no columns"))
	}
	seen := make(map[string]bool)
	for i, c := range d.Columns {
		if c.Name == "" {
			errs = append(errs, invalid("column %d has no name", i))
		} else if seen[c.Name] {
			errs = append(errs, invalid("duplicate column %q", c.Name))
		}
		seen[c.Name] = true
		if _, ok := columnTypes[c.Type]; !ok {
			errs = append(errs, invalid("column %q has unknown type %q", c.Name, c.Type))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	errs = append(errs, d.validateRows(d.Rows, treeproj.Path{})...)
	errs = append(errs, d.validateView()...)
	return errors.Join(errs...)
}

func (d *Document) validateRows(rows []Row, parent treeproj.Path) []error {
	var errs []error
	for i := range rows {
		path := parent.Child(i)
		values, err := d.convert(rows[i].Values)
		if err != nil {
			errs = append(errs, invalid("row %s: %v", path, err))
		} else {
			rows[i].Values = values
		}
		errs = append(errs, d.validateRows(rows[i].Children, path)...)
	}
	return errs
}

// convert brings values decoded from YAML to the types of their columns.
func (d *Document) convert(values []any) ([]any, error) {
	if len(values) > len(d.Columns) {
		return nil, fmt.Errorf("%d values for %d columns", len(values), len(d.Columns))
	}
	out := make([]any, len(values))
	for i, v := range values {
		c := d.Columns[i]
		cv, ok := convertValue(c.Type, v)
		if !ok {
			return nil, fmt.Errorf("column %q: %v is not a %s", c.Name, v, c.Type)
		}
		out[i] = cv
	}
	return out, nil
}

func convertValue(typ string, v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch typ {
	case "string":
		s, ok := v.(string)
		return s, ok
	case "int":
		i, ok := v.(int)
		return i, ok
	case "float":
		switch v := v.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	case "bool":
		b, ok := v.(bool)
		return b, ok
	}
	return nil, false
}

func (d *Document) validateView() []error {
	var errs []error
	v := d.View
	if v.Sort != "" {
		if _, ok := d.ColumnIndex(v.Sort); !ok {
			errs = append(errs, invalid("sort column %q does not exist", v.Sort))
		}
	}
	switch strings.ToLower(v.Order) {
	case "", "ascending", "asc", "descending", "desc":
	default:
		errs = append(errs, invalid("unknown order %q", v.Order))
	}
	if v.Filter != "" {
		if _, err := d.ParsePredicate(v.Filter); err != nil {
			errs = append(errs, invalid("filter: %v", err))
		}
	}
	if v.Root != "" {
		if _, err := treeproj.ParsePath(v.Root); err != nil {
			errs = append(errs, invalid("root: %v", err))
		}
	}
	return errs
}

// Descending reports whether the view sorts in descending order.
func (v View) Descending() bool {
	switch strings.ToLower(v.Order) {
	case "descending", "desc":
		return true
	}
	return false
}

// RootPath returns the parsed virtual root of the view.
func (v View) RootPath() (treeproj.Path, error) {
	return treeproj.ParsePath(v.Root)
}

// Build creates a store holding the rows of the document.
func (d *Document) Build() (*treestore.Store, error) {
	s := treestore.New(d.Types()...)
	if err := d.appendRows(s, nil, d.Rows); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Document) appendRows(s *treestore.Store, parent *treeproj.Iter, rows []Row) error {
	for _, r := range rows {
		it, err := s.Append(parent, r.Values...)
		if err != nil {
			return err
		}
		if err := d.appendRows(s, &it, r.Children); err != nil {
			return err
		}
	}
	return nil
}
