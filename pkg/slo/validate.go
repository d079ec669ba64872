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

// SchemaValidator validates an exported OpenSLO payload. Implementations
// backed by a JSON-schema engine can be plugged in; StructuralValidator is
// the always-present default.
type SchemaValidator interface {
	Validate(payload any) (bool, []string)
	// Status reports "ready" or "unavailable" plus a detail string.
	Status() (string, string)
}

// StructuralValidator checks the shape of an OpenSLO resource list without a
// schema engine: every item needs a known kind, metadata.name and a spec;
// SLOs additionally need an indicator and non-empty objectives.
type StructuralValidator struct{}

var allowedKinds = map[string]bool{"Service": true, "SLI": true, "SLO": true}

func (StructuralValidator) Status() (string, string) {
	return "ready", "structural OpenSLO validation"
}

func (StructuralValidator) Validate(payload any) (bool, []string) {
	items, ok := asList(payload)
	if !ok {
		return false, []string{"OpenSLO payload must be a list of resources."}
	}
	var errs []string
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Item %d must be an object.", i))
			continue
		}
		kind, _ := item["kind"].(string)
		if !allowedKinds[kind] {
			errs = append(errs, fmt.Sprintf("Item %d has invalid kind: %v", i, item["kind"]))
		}
		metadata, ok := item["metadata"].(map[string]any)
		if !ok || metadata["name"] == nil {
			errs = append(errs, fmt.Sprintf("Item %d is missing metadata.name", i))
		}
		spec, ok := item["spec"].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Item %d missing spec object", i))
			continue
		}
		if kind == "SLO" {
			if spec["indicator"] == nil {
				errs = append(errs, fmt.Sprintf("Item %d SLO missing indicator", i))
			}
			objectives, ok := spec["objectives"].([]any)
			if !ok || len(objectives) == 0 {
				errs = append(errs, fmt.Sprintf("Item %d SLO missing objectives", i))
			}
		}
	}
	return len(errs) == 0, errs
}

// asList tolerates both []any payloads (decoded JSON) and the typed
// []map[string]any slices ExportOpenSLO produces.
func asList(payload any) ([]any, bool) {
	switch items := payload.(type) {
	case []any:
		return items, true
	case []map[string]any:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}
