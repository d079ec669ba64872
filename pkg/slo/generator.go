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

package slo

import (
	"fmt"
	"sort"

	"github.com/Huzefaaa2/MindOps/pkg/coverage"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// DefaultWindowDays is the evaluation window applied to generated SLOs.
const DefaultWindowDays = 30

// Generator emits candidate SLOs from observed trace statistics and,
// optionally, a telemetry coverage report.
type Generator struct {
	WindowDays int
}

func NewGenerator() *Generator {
	return &Generator{WindowDays: DefaultWindowDays}
}

// Generate produces the per-service SLO triple (p95 latency, error rate,
// availability) for every observed service, plus a coverage objective when a
// coverage report is given. Services are visited in sorted order so output
// is deterministic.
func (g *Generator) Generate(stats trace.Stats, cov *coverage.Report) []SLO {
	services := make([]string, 0, len(stats.Services))
	for svc := range stats.Services {
		services = append(services, svc)
	}
	sort.Strings(services)

	var slos []SLO
	for _, svc := range services {
		slos = append(slos, g.forService(svc, stats.Services[svc])...)
	}

	if cov != nil {
		signal := "signals"
		if len(cov.ExpectedSignals) > 0 {
			signal = cov.ExpectedSignals[0]
		}
		slos = append(slos, SLO{
			Name:    fmt.Sprintf("telemetry-coverage-%s", signal),
			Service: "telemetry",
			Target: Target{
				Metric:     MetricCoverage,
				Comparator: ">=",
				Threshold:  maxFloat(0.9, cov.CoverageRatio),
				WindowDays: g.windowDays(),
			},
			Description: "Maintain high coverage of expected probes for trace-based testing.",
			Labels:      map[string]string{"source": "ebpf-bot"},
		})
	}
	return slos
}

func (g *Generator) forService(service string, stats trace.ServiceStats) []SLO {
	var slos []SLO
	if stats.LatencyP95Ms != nil {
		slos = append(slos, SLO{
			Name:    fmt.Sprintf("latency-p95-%s", service),
			Service: service,
			Target: Target{
				Metric:     MetricLatencyP95,
				Comparator: "<=",
				Threshold:  round(maxFloat(150.0, *stats.LatencyP95Ms*1.25), 2),
				WindowDays: g.windowDays(),
			},
			Description: "p95 latency stays within a safe envelope.",
			Labels:      map[string]string{"sli": "latency"},
		})
	}

	errorBudget := maxFloat(0.001, stats.ErrorRate*0.5)
	slos = append(slos, SLO{
		Name:    fmt.Sprintf("error-rate-%s", service),
		Service: service,
		Target: Target{
			Metric:     MetricErrorRate,
			Comparator: "<=",
			Threshold:  round(errorBudget, 4),
			WindowDays: g.windowDays(),
		},
		Description: "Error rate remains within the allocated error budget.",
		Labels:      map[string]string{"sli": "errors"},
	})

	slos = append(slos, SLO{
		Name:    fmt.Sprintf("availability-%s", service),
		Service: service,
		Target: Target{
			Metric:     MetricAvailability,
			Comparator: ">=",
			Threshold:  round(maxFloat(0.99, 1.0-errorBudget), 4),
			WindowDays: g.windowDays(),
		},
		Description: "Availability stays above the reliability target.",
		Labels:      map[string]string{"sli": "availability"},
	})
	return slos
}

func (g *Generator) windowDays() int {
	if g.WindowDays > 0 {
		return g.WindowDays
	}
	return DefaultWindowDays
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
