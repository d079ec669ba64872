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

// Package sampling maps telemetry cost pressure and anomaly signals to a
// sampling-rate action via a trained Q-table. Inference is a table lookup;
// the training loop lives in trainer.go and is optional.
package sampling

// Action is a sampling-rate adjustment recommendation.
type Action string

const (
	ActionDecrease Action = "decrease_sampling"
	ActionMaintain Action = "maintain_sampling"
	ActionIncrease Action = "increase_sampling"
)

// actionIndex orders actions as the Q-table columns.
var actionIndex = []Action{ActionDecrease, ActionMaintain, ActionIncrease}

// ActionRate maps an action to the sampling rate the planner applies when a
// policy carries no explicit rate.
var ActionRate = map[Action]float64{
	ActionDecrease: 0.2,
	ActionMaintain: 0.5,
	ActionIncrease: 1.0,
}

// numCostBins discretizes relative cost over [0,2] into uniform bins.
const numCostBins = 10

// State is the discretized advisor state: a cost bin and an anomaly flag.
type State struct {
	CostBin int
	Anomaly int
}

// Advisor holds Q-values per discretized state. A zero-valued (untrained)
// table recommends maintain for every state.
type Advisor struct {
	qtable map[State][3]float64
}

func NewAdvisor() *Advisor {
	return &Advisor{qtable: map[State][3]float64{}}
}

// Discretize bins relativeCost over [0,2] into numCostBins uniform bins.
func Discretize(relativeCost float64, anomaly bool) State {
	// Bin edges at 0.2, 0.4, ... mirror a uniform digitize over [0,2].
	bin := 0
	width := 2.0 / numCostBins
	for bin < numCostBins-1 && relativeCost >= width*float64(bin+1) {
		bin++
	}
	if relativeCost >= 2.0 {
		bin = numCostBins - 1
	}
	s := State{CostBin: bin}
	if anomaly {
		s.Anomaly = 1
	}
	return s
}

// Action returns the greedy action for the given continuous state. Unseen
// states default to maintain.
func (a *Advisor) Action(relativeCost float64, anomaly bool) Action {
	values, ok := a.qtable[Discretize(relativeCost, anomaly)]
	if !ok {
		return ActionMaintain
	}
	if values[0] == 0 && values[1] == 0 && values[2] == 0 {
		// Initialized but never updated; treat like an untrained table.
		return ActionMaintain
	}
	best, bestValue := 0, values[0]
	for i := 1; i < len(values); i++ {
		if values[i] > bestValue {
			best, bestValue = i, values[i]
		}
	}
	return actionIndex[best]
}
