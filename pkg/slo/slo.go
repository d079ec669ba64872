// Copyright 2025 MindOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slo synthesizes candidate Service Level Objectives from trace
// statistics, evaluates them against metric projections, and exports them in
// OpenSLO form.
package slo

import (
	"math"

	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// Metric names an SLO target can reference.
const (
	MetricLatencyP50   = "latency_p50_ms"
	MetricLatencyP95   = "latency_p95_ms"
	MetricLatencyP99   = "latency_p99_ms"
	MetricErrorRate    = "error_rate"
	MetricAvailability = "availability"
	MetricCoverage     = "coverage_ratio"
)

// Target is the measurable objective of an SLO.
type Target struct {
	Metric     string  `json:"metric"`
	Comparator string  `json:"comparator"`
	Threshold  float64 `json:"threshold"`
	WindowDays int     `json:"window_days"`
}

// SLO is a candidate or persisted service level objective. SLOs are unique
// within a store by (service, name).
type SLO struct {
	Name        string            `json:"name"`
	Service     string            `json:"service"`
	Target      Target            `json:"target"`
	Description string            `json:"description"`
	Labels      map[string]string `json:"labels"`
}

// Metrics is the evaluation context: the observable values an SLO target can
// be compared against. Nil means the metric was not measurable.
type Metrics struct {
	LatencyP50Ms  *float64 `json:"latency_p50_ms"`
	LatencyP95Ms  *float64 `json:"latency_p95_ms"`
	LatencyP99Ms  *float64 `json:"latency_p99_ms"`
	ErrorRate     *float64 `json:"error_rate"`
	Availability  *float64 `json:"availability"`
	CoverageRatio *float64 `json:"coverage_ratio"`
}

// Value returns the named metric, or nil when it is absent.
func (m Metrics) Value(metric string) *float64 {
	switch metric {
	case MetricLatencyP50:
		return m.LatencyP50Ms
	case MetricLatencyP95:
		return m.LatencyP95Ms
	case MetricLatencyP99:
		return m.LatencyP99Ms
	case MetricErrorRate:
		return m.ErrorRate
	case MetricAvailability:
		return m.Availability
	case MetricCoverage:
		return m.CoverageRatio
	}
	return nil
}

// Map flattens the present metrics into a name-value map for guardrail
// evaluation.
func (m Metrics) Map() map[string]float64 {
	out := map[string]float64{}
	for _, metric := range []string{
		MetricLatencyP50, MetricLatencyP95, MetricLatencyP99,
		MetricErrorRate, MetricAvailability, MetricCoverage,
	} {
		if v := m.Value(metric); v != nil {
			out[metric] = *v
		}
	}
	return out
}

// MetricsFromStats projects trace statistics (plus an optional coverage
// ratio) into an evaluation context.
func MetricsFromStats(stats trace.Stats, coverageRatio *float64) Metrics {
	errorRate := stats.ErrorRate
	availability := stats.Availability
	return Metrics{
		LatencyP50Ms:  stats.LatencyP50Ms,
		LatencyP95Ms:  stats.LatencyP95Ms,
		LatencyP99Ms:  stats.LatencyP99Ms,
		ErrorRate:     &errorRate,
		Availability:  &availability,
		CoverageRatio: coverageRatio,
	}
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
