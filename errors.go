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

import "errors"

// Path errors
var (
	// ErrInvalidPath indicates that a textual path could not be parsed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrColumnOutOfRange indicates that a column index is not part of the
	// model.
	ErrColumnOutOfRange = errors.New("column out of range")
)

// Projection configuration errors
var (
	// ErrNoSourceModel indicates that a projection was created without a
	// source model.
	ErrNoSourceModel = errors.New("no source model")

	// ErrVisibleMethodSet indicates that a visibility method was already
	// configured on a filter projection; it can only be set once.
	ErrVisibleMethodSet = errors.New("visible method already set")

	// ErrModifyFuncSet indicates that a modify func was already configured
	// on a filter projection; it can only be set once.
	ErrModifyFuncSet = errors.New("modify func already set")

	// ErrColumnType indicates that a column does not hold the type an
	// operation requires.
	ErrColumnType = errors.New("unexpected column type")
)
