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

import (
	"io"
	"log/slog"

	"github.com/ajwerner/treeproj"
	"github.com/ajwerner/treeproj/internal/metrics"
)

// Config is used to configure a Projection.
type Config struct {

	// Policy selects and orders the rows of the projection. A nil Policy
	// means Identity.
	Policy Policy

	// VirtualRoot, if non-empty, roots the projection at the source row
	// with that path instead of at the top of the source model.
	VirtualRoot treeproj.Path

	// Logger receives debug records about source events which could not be
	// translated. A nil Logger discards them.
	Logger *slog.Logger

	// Metrics, if non-nil, is updated as levels are built and freed and as
	// events are emitted.
	Metrics *metrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.Policy == nil {
		c.Policy = Identity{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(c.VirtualRoot) == 0 {
		c.VirtualRoot = nil
	} else {
		c.VirtualRoot = c.VirtualRoot.Copy()
	}
	return c
}
