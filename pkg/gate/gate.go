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

// Package gate evaluates SLO-derived guardrail predicates against live
// metrics to decide whether a deployment may proceed.
package gate

import (
	"fmt"
	"sort"

	"github.com/Huzefaaa2/MindOps/pkg/slo"
)

// Decision is the aggregate gate outcome. Results maps guardrail name to
// "pass" or a "fail: ..." reason.
type Decision struct {
	Passed   bool              `json:"passed"`
	Results  map[string]string `json:"results"`
	Failures []string          `json:"failures"`
}

// Evaluate checks every guardrail predicate against the metric map. A
// metric absent from the map fails its guardrail. Evaluation is purely
// structural over {metric, comparator, threshold}.
func Evaluate(guardrails map[string]slo.Guardrail, metrics map[string]float64) Decision {
	decision := Decision{Passed: true, Results: map[string]string{}}

	names := make([]string, 0, len(guardrails))
	for name := range guardrails {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := guardrails[name]
		observed, ok := metrics[g.Metric]
		if !ok {
			decision.fail(name, fmt.Sprintf("fail: metric %q missing", g.Metric))
			continue
		}
		passed, err := slo.Compare(observed, g.Comparator, g.Threshold)
		if err != nil {
			decision.fail(name, "fail: "+err.Error())
			continue
		}
		if !passed {
			decision.fail(name, fmt.Sprintf("fail: SLO violation: %s (%s %s %v, observed %v)",
				name, g.Metric, g.Comparator, g.Threshold, observed))
			continue
		}
		decision.Results[name] = "pass"
	}
	return decision
}

func (d *Decision) fail(name, reason string) {
	d.Passed = false
	d.Results[name] = reason
	d.Failures = append(d.Failures, name)
}

// FailOn names the CI-gate sensitivity modes.
const (
	FailOnAny       = "any"
	FailOnBaseline  = "baseline"
	FailOnTests     = "tests"
	FailOnGuardrail = "guardrail"
)

// ShouldFail decides whether a CI run crossed the configured failure
// threshold.
func ShouldFail(mode string, baselineFailures, testFailures int, guardrailPassed bool) bool {
	switch mode {
	case FailOnBaseline:
		return baselineFailures > 0
	case FailOnTests:
		return testFailures > 0
	case FailOnGuardrail:
		return !guardrailPassed
	default:
		return baselineFailures > 0 || testFailures > 0 || !guardrailPassed
	}
}
