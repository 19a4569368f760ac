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

// Package metrics instruments projection engines with Prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event kinds used as the "kind" label of EventsEmitted and the "event"
// label of TranslationsAborted.
const (
	KindChanged         = "changed"
	KindInserted        = "inserted"
	KindHasChildToggled = "has_child_toggled"
	KindDeleted         = "deleted"
	KindReordered       = "reordered"
)

// Metrics holds the collectors of one or more projection engines. All
// methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	LevelsBuilt         prometheus.Counter
	LevelsFreed         prometheus.Counter
	CachedLevels        prometheus.Gauge
	EventsEmitted       *prometheus.CounterVec
	TranslationsAborted *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. The projection
// label distinguishes engines sharing a registry, e.g. "sort" and "filter".
func New(reg prometheus.Registerer, projection string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"projection": projection}
	return &Metrics{
		LevelsBuilt: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "treeproj",
			Name:        "levels_built_total",
			Help:        "Levels materialized from the source model",
			ConstLabels: labels,
		}),
		LevelsFreed: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "treeproj",
			Name:        "levels_freed_total",
			Help:        "Levels released from the cache",
			ConstLabels: labels,
		}),
		CachedLevels: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "treeproj",
			Name:        "cached_levels",
			Help:        "Levels currently held in the cache",
			ConstLabels: labels,
		}),
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "treeproj",
			Name:        "events_emitted_total",
			Help:        "Change notifications emitted in projection coordinates",
			ConstLabels: labels,
		}, []string{"kind"}),
		TranslationsAborted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "treeproj",
			Name:        "translations_aborted_total",
			Help:        "Source events which could not be translated",
			ConstLabels: labels,
		}, []string{"event"}),
	}
}

// LevelBuilt records the materialization of a level.
func (m *Metrics) LevelBuilt() {
	if m == nil {
		return
	}
	m.LevelsBuilt.Inc()
	m.CachedLevels.Inc()
}

// LevelFreed records the release of a level.
func (m *Metrics) LevelFreed() {
	if m == nil {
		return
	}
	m.LevelsFreed.Inc()
	m.CachedLevels.Dec()
}

// Emitted records one emitted notification of the given kind.
func (m *Metrics) Emitted(kind string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(kind).Inc()
}

// Aborted records a source event of the given kind which was dropped.
func (m *Metrics) Aborted(event string) {
	if m == nil {
		return
	}
	m.TranslationsAborted.WithLabelValues(event).Inc()
}
