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
	"bytes"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion identifies the native export format.
const SchemaVersion = "slo-copilot/v1"

// ExportJSON renders the native JSON export document for a set of SLOs.
func ExportJSON(slos []SLO, now time.Time) map[string]any {
	items := make([]any, 0, len(slos))
	for _, s := range slos {
		items = append(items, map[string]any{
			"name":        s.Name,
			"service":     s.Service,
			"description": s.Description,
			"labels":      s.Labels,
			"target": map[string]any{
				"metric":      s.Target.Metric,
				"comparator":  s.Target.Comparator,
				"threshold":   s.Target.Threshold,
				"window_days": s.Target.WindowDays,
			},
		})
	}
	return map[string]any{
		"schema_version": SchemaVersion,
		"generated_at":   now.UTC().Format(time.RFC3339),
		"slos":           items,
	}
}

// ExportOpenSLO renders an openslo/v1 resource list: one Service per
// distinct service (in first-appearance order), one SLI and one SLO per
// objective.
func ExportOpenSLO(slos []SLO) []map[string]any {
	var resources []map[string]any
	seen := map[string]bool{}
	for _, s := range slos {
		if seen[s.Service] {
			continue
		}
		seen[s.Service] = true
		resources = append(resources, map[string]any{
			"apiVersion": "openslo/v1",
			"kind":       "Service",
			"metadata":   map[string]any{"name": s.Service},
			"spec":       map[string]any{"description": "Service for " + s.Service},
		})
	}
	for _, s := range slos {
		resources = append(resources, map[string]any{
			"apiVersion": "openslo/v1",
			"kind":       "SLI",
			"metadata":   map[string]any{"name": s.Name + "-sli", "labels": s.Labels},
			"spec": map[string]any{
				"service":   s.Service,
				"indicator": indicator(s),
			},
		})
	}
	for _, s := range slos {
		resources = append(resources, map[string]any{
			"apiVersion": "openslo/v1",
			"kind":       "SLO",
			"metadata":   map[string]any{"name": s.Name, "labels": s.Labels},
			"spec": map[string]any{
				"description": s.Description,
				"service":     s.Service,
				"indicator":   indicator(s),
				"objectives": []any{
					map[string]any{
						"displayName": s.Name,
						"op":          s.Target.Comparator,
						"value":       s.Target.Threshold,
						"timeWindow": map[string]any{
							"count": s.Target.WindowDays,
							"unit":  "Day",
						},
					},
				},
			},
		})
	}
	return resources
}

func indicator(s SLO) map[string]any {
	return map[string]any{
		"type":         "metric",
		"metricSource": "trace-derived",
		"metric":       s.Target.Metric,
	}
}

// ExportOpenSLOYAML renders the OpenSLO resources as a YAML document
// stream.
func ExportOpenSLOYAML(slos []SLO) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, resource := range ExportOpenSLO(slos) {
		if err := enc.Encode(resource); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
