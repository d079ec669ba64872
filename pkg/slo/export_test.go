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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSLOs() []SLO {
	return []SLO{
		{
			Name:    "latency-p95-api",
			Service: "api",
			Target:  Target{Metric: MetricLatencyP95, Comparator: "<=", Threshold: 650, WindowDays: 30},
			Labels:  map[string]string{"sli": "latency"},
		},
		{
			Name:    "error-rate-api",
			Service: "api",
			Target:  Target{Metric: MetricErrorRate, Comparator: "<=", Threshold: 0.01, WindowDays: 30},
			Labels:  map[string]string{"sli": "errors"},
		},
		{
			Name:    "availability-db",
			Service: "db",
			Target:  Target{Metric: MetricAvailability, Comparator: ">=", Threshold: 0.99, WindowDays: 30},
			Labels:  map[string]string{"sli": "availability"},
		},
	}
}

func TestExportJSON(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := ExportJSON(sampleSLOs(), now)

	require.Equal(t, SchemaVersion, doc["schema_version"])
	require.Equal(t, "2025-06-01T12:00:00Z", doc["generated_at"])
	items := doc["slos"].([]any)
	require.Len(t, items, 3)

	first := items[0].(map[string]any)
	require.Equal(t, "latency-p95-api", first["name"])
	target := first["target"].(map[string]any)
	require.Equal(t, 650.0, target["threshold"])
	require.Equal(t, 30, target["window_days"])
}

func TestExportOpenSLOStructure(t *testing.T) {
	resources := ExportOpenSLO(sampleSLOs())

	var kinds []string
	for _, r := range resources {
		kinds = append(kinds, r["kind"].(string))
	}
	// Two distinct services, three SLIs, three SLOs.
	require.Equal(t, []string{"Service", "Service", "SLI", "SLI", "SLI", "SLO", "SLO", "SLO"}, kinds)

	for _, r := range resources {
		require.Equal(t, "openslo/v1", r["apiVersion"])
	}

	sli := resources[2]
	require.Equal(t, "latency-p95-api-sli", sli["metadata"].(map[string]any)["name"])

	sloResource := resources[5]
	spec := sloResource["spec"].(map[string]any)
	objectives := spec["objectives"].([]any)
	require.Len(t, objectives, 1)
	objective := objectives[0].(map[string]any)
	require.Equal(t, "<=", objective["op"])
	require.Equal(t, 650.0, objective["value"])
	window := objective["timeWindow"].(map[string]any)
	require.Equal(t, "Day", window["unit"])
}

// OpenSLO round-trip: every non-empty export validates cleanly, including
// after a JSON encode/decode cycle.
func TestExportOpenSLORoundTrip(t *testing.T) {
	resources := ExportOpenSLO(sampleSLOs())

	valid, errs := StructuralValidator{}.Validate(resources)
	require.True(t, valid, "validation errors: %v", errs)
	require.Empty(t, errs)

	b, err := json.Marshal(resources)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(b, &decoded))

	valid, errs = StructuralValidator{}.Validate(decoded)
	require.True(t, valid, "validation errors after round trip: %v", errs)
	require.Empty(t, errs)
}

func TestExportOpenSLOYAML(t *testing.T) {
	out, err := ExportOpenSLOYAML(sampleSLOs())
	require.NoError(t, err)

	require.Contains(t, out, "apiVersion: openslo/v1")
	require.Contains(t, out, "kind: Service")
	require.Contains(t, out, "kind: SLI")
	require.Contains(t, out, "kind: SLO")

	// The stream parses back into one document per resource.
	dec := yaml.NewDecoder(strings.NewReader(out))
	count := 0
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			break
		}
		count++
		require.NotEmpty(t, doc["kind"])
	}
	require.Equal(t, 8, count)
}

func TestStructuralValidatorRejectsBadPayloads(t *testing.T) {
	valid, errs := StructuralValidator{}.Validate(map[string]any{"kind": "SLO"})
	require.False(t, valid)
	require.Contains(t, errs[0], "must be a list")

	valid, errs = StructuralValidator{}.Validate([]any{
		map[string]any{"kind": "Gadget", "metadata": map[string]any{"name": "x"}, "spec": map[string]any{}},
	})
	require.False(t, valid)
	require.Contains(t, errs[0], "invalid kind")

	valid, errs = StructuralValidator{}.Validate([]any{
		map[string]any{"kind": "SLO", "metadata": map[string]any{"name": "x"}, "spec": map[string]any{}},
	})
	require.False(t, valid)
	require.Len(t, errs, 2) // missing indicator and objectives
}
