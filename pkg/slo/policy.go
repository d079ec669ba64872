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

// Guardrail is a deployment-gate predicate derived from an SLO. The snippet
// is a human-readable rendering for review surfaces; evaluation always runs
// over the structured fields and never executes the text.
type Guardrail struct {
	Name       string  `json:"name"`
	Service    string  `json:"service"`
	Metric     string  `json:"metric"`
	Comparator string  `json:"comparator"`
	Threshold  float64 `json:"threshold"`
	Snippet    string  `json:"snippet"`
}

// EmitGuardrail derives the gate predicate for one SLO.
func EmitGuardrail(s SLO) Guardrail {
	return Guardrail{
		Name:       s.Name,
		Service:    s.Service,
		Metric:     s.Target.Metric,
		Comparator: s.Target.Comparator,
		Threshold:  s.Target.Threshold,
		Snippet: fmt.Sprintf("# Guardrail for %s / %s\nrequire metrics[%q] %s %v\n",
			s.Service, s.Name, s.Target.Metric, s.Target.Comparator, s.Target.Threshold),
	}
}

// EmitGuardrails derives the full guardrail bundle keyed by SLO name.
func EmitGuardrails(slos []SLO) map[string]Guardrail {
	bundle := make(map[string]Guardrail, len(slos))
	for _, s := range slos {
		bundle[s.Name] = EmitGuardrail(s)
	}
	return bundle
}

// SnippetBundle flattens guardrails to the textual form used in reports.
func SnippetBundle(guardrails map[string]Guardrail) map[string]string {
	snippets := make(map[string]string, len(guardrails))
	for name, g := range guardrails {
		snippets[name] = g.Snippet
	}
	return snippets
}
