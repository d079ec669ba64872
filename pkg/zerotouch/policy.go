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

package zerotouch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Huzefaaa2/MindOps/pkg/sampling"
)

// samplingPolicy is the JSON document a sampling policy file or the control
// plane's policy store carries.
type samplingPolicy struct {
	SamplingRate   *float64 `json:"sampling_rate"`
	SamplingAction string   `json:"sampling_action"`
	Action         string   `json:"action"`
}

// LoadSamplingPolicy reads a policy file and resolves the sampling rate:
// an explicit sampling_rate wins, otherwise the action maps through
// sampling.ActionRate. Returns nil when the file holds neither.
func LoadSamplingPolicy(path string) (*float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sampling policy %s: %w", path, err)
	}
	var policy samplingPolicy
	if err := json.Unmarshal(b, &policy); err != nil {
		return nil, fmt.Errorf("parse sampling policy %s: %w", path, err)
	}
	if policy.SamplingRate != nil {
		return policy.SamplingRate, nil
	}
	action := policy.SamplingAction
	if action == "" {
		action = policy.Action
	}
	if rate, ok := sampling.ActionRate[sampling.Action(action)]; ok {
		return &rate, nil
	}
	return nil, nil
}
