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

import "fmt"

// Evaluation is the outcome of checking one SLO against an evaluation
// context.
type Evaluation struct {
	SLO           SLO      `json:"slo"`
	Passed        bool     `json:"passed"`
	ObservedValue *float64 `json:"observed_value"`
	Threshold     float64  `json:"threshold"`
	Comparator    string   `json:"comparator"`
	Metric        string   `json:"metric"`
	Details       string   `json:"details"`
}

// Compare applies a comparator. Both "<="/"<" and ">="/">" evaluate
// inclusively; generated SLOs only use the inclusive forms and hand-written
// stores are treated the same way.
func Compare(observed float64, comparator string, threshold float64) (bool, error) {
	switch comparator {
	case "<=", "<":
		return observed <= threshold, nil
	case ">=", ">":
		return observed >= threshold, nil
	case "==":
		return observed == threshold, nil
	}
	return false, fmt.Errorf("unsupported comparator: %q", comparator)
}

// Evaluate checks one SLO. A missing metric fails the objective with an
// explanatory detail rather than erroring.
func Evaluate(s SLO, metrics Metrics) Evaluation {
	eval := Evaluation{
		SLO:        s,
		Threshold:  s.Target.Threshold,
		Comparator: s.Target.Comparator,
		Metric:     s.Target.Metric,
	}
	observed := metrics.Value(s.Target.Metric)
	if observed == nil {
		eval.Details = "Metric missing from evaluation context."
		return eval
	}
	passed, err := Compare(*observed, s.Target.Comparator, s.Target.Threshold)
	if err != nil {
		eval.Details = err.Error()
		return eval
	}
	rounded := round(*observed, 4)
	eval.ObservedValue = &rounded
	eval.Passed = passed
	if passed {
		eval.Details = "meets objective"
	} else {
		eval.Details = "violates objective"
	}
	return eval
}

// EvaluateAll evaluates every SLO against the same context.
func EvaluateAll(slos []SLO, metrics Metrics) []Evaluation {
	evals := make([]Evaluation, 0, len(slos))
	for _, s := range slos {
		evals = append(evals, Evaluate(s, metrics))
	}
	return evals
}

// AnyFailed reports whether any evaluation in the set failed.
func AnyFailed(evals []Evaluation) bool {
	for _, e := range evals {
		if !e.Passed {
			return true
		}
	}
	return false
}
