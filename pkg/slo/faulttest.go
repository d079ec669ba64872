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
	"math"

	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// TestCase injects a synthetic fault into a metric projection: latencies are
// scaled and error rate / availability shifted (then clamped to [0,1]).
type TestCase struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	LatencyMultiplier float64 `json:"latency_multiplier"`
	ErrorRateDelta    float64 `json:"error_rate_delta"`
	AvailabilityDelta float64 `json:"availability_delta"`
}

// TestResult holds all SLO evaluations under one fault case.
type TestResult struct {
	Case        TestCase     `json:"case"`
	Evaluations []Evaluation `json:"evaluations"`
}

// DefaultTestCases returns the standard fault suite: a no-op baseline, a
// latency spike, an error burst, and a partial outage.
func DefaultTestCases() []TestCase {
	return []TestCase{
		{
			Name:              "baseline",
			Description:       "Baseline trace replay without injected faults.",
			LatencyMultiplier: 1.0,
		},
		{
			Name:              "latency-spike",
			Description:       "Increase latency across spans.",
			LatencyMultiplier: 1.5,
		},
		{
			Name:              "error-burst",
			Description:       "Inject additional errors to stress the error budget.",
			LatencyMultiplier: 1.0,
			ErrorRateDelta:    0.05,
			AvailabilityDelta: -0.05,
		},
		{
			Name:              "partial-outage",
			Description:       "Simulate a partial availability drop.",
			LatencyMultiplier: 1.0,
			ErrorRateDelta:    0.1,
			AvailabilityDelta: -0.1,
		},
	}
}

// ApplyFaults mutates a copy of metrics according to the case.
func ApplyFaults(metrics Metrics, tc TestCase) Metrics {
	scale := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		scaled := *v * tc.LatencyMultiplier
		return &scaled
	}
	shift := func(v *float64, delta float64) *float64 {
		if v == nil {
			return nil
		}
		shifted := math.Max(0, math.Min(1, *v+delta))
		return &shifted
	}
	return Metrics{
		LatencyP50Ms:  scale(metrics.LatencyP50Ms),
		LatencyP95Ms:  scale(metrics.LatencyP95Ms),
		LatencyP99Ms:  scale(metrics.LatencyP99Ms),
		ErrorRate:     shift(metrics.ErrorRate, tc.ErrorRateDelta),
		Availability:  shift(metrics.Availability, tc.AvailabilityDelta),
		CoverageRatio: metrics.CoverageRatio,
	}
}

// TestRunner replays a span set's statistics under each fault case and
// evaluates every SLO against the mutated projection.
type TestRunner struct {
	Cases []TestCase
}

func NewTestRunner() *TestRunner {
	return &TestRunner{Cases: DefaultTestCases()}
}

// Run evaluates slos under every configured fault case.
func (r *TestRunner) Run(slos []SLO, stats trace.Stats, coverageRatio *float64) []TestResult {
	base := MetricsFromStats(stats, coverageRatio)
	cases := r.Cases
	if len(cases) == 0 {
		cases = DefaultTestCases()
	}
	results := make([]TestResult, 0, len(cases))
	for _, tc := range cases {
		mutated := ApplyFaults(base, tc)
		results = append(results, TestResult{Case: tc, Evaluations: EvaluateAll(slos, mutated)})
	}
	return results
}

// AnyTestFailed reports whether any evaluation across all fault cases
// failed.
func AnyTestFailed(results []TestResult) bool {
	for _, result := range results {
		if AnyFailed(result.Evaluations) {
			return true
		}
	}
	return false
}
