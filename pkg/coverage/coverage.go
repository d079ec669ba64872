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

// Package coverage matches observed telemetry signals against the expected
// probe set and suggests the next probe to add.
package coverage

import "fmt"

// Report describes how well the observed signals cover the expected set.
// The coverage map keys are exactly the expected signals.
type Report struct {
	ExpectedSignals []string        `json:"expected_signals"`
	ObservedSignals []string        `json:"observed_signals"`
	CoverageMap     map[string]bool `json:"coverage_map"`
	CoverageRatio   float64         `json:"coverage_ratio"`
	MissingSignals  []string        `json:"missing_signals"`
	NextProbe       string          `json:"next_probe,omitempty"`
	Suggestions     []string        `json:"suggestions"`
}

// Analyze computes the coverage report for expected vs observed signals.
// The next probe is the first missing signal in expected order, or the first
// expected signal when nothing is missing; the deterministic choice keeps
// repeated runs reproducible.
func Analyze(expected, observed []string) Report {
	covered := map[string]bool{}
	for _, signal := range observed {
		covered[signal] = true
	}

	coverageMap := make(map[string]bool, len(expected))
	var missing []string
	hit := 0
	for _, signal := range expected {
		ok := covered[signal]
		coverageMap[signal] = ok
		if ok {
			hit++
		} else {
			missing = append(missing, signal)
		}
	}

	ratio := 0.0
	if len(expected) > 0 {
		ratio = float64(hit) / float64(len(expected))
	}

	next := ""
	if len(missing) > 0 {
		next = missing[0]
	} else if len(expected) > 0 {
		next = expected[0]
	}

	suggestions := make([]string, 0, len(missing))
	for _, signal := range missing {
		suggestions = append(suggestions, fmt.Sprintf("Add eBPF probe for '%s'", signal))
	}

	return Report{
		ExpectedSignals: expected,
		ObservedSignals: observed,
		CoverageMap:     coverageMap,
		CoverageRatio:   ratio,
		MissingSignals:  missing,
		NextProbe:       next,
		Suggestions:     suggestions,
	}
}
