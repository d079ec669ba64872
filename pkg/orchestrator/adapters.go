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

package orchestrator

import "context"

// IntegrationStatus is the probe result of an optional capability.
type IntegrationStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RCANarrator produces a root-cause narrative for a trace. The
// vector-retrieval LLM pipeline is external; this interface is its seam.
type RCANarrator interface {
	Analyze(ctx context.Context, tracePath string) (map[string]any, error)
	Status() (string, string)
}

// UnavailableRCANarrator is the default narrator: always absent. The
// orchestrator degrades to a warning instead of failing.
type UnavailableRCANarrator struct{}

func (UnavailableRCANarrator) Status() (string, string) {
	return "unavailable", "no RCA narrator configured"
}

func (UnavailableRCANarrator) Analyze(context.Context, string) (map[string]any, error) {
	return nil, nil
}
