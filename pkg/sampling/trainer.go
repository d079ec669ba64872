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

package sampling

import "math/rand"

// EnvConfig parameterizes the simulated telemetry environment the trainer
// learns against.
type EnvConfig struct {
	MaxSteps    int
	BudgetLimit float64
	AnomalyRate float64
	BaseCost    float64
}

func DefaultEnvConfig() EnvConfig {
	return EnvConfig{MaxSteps: 100, BudgetLimit: 1.0, AnomalyRate: 0.05, BaseCost: 0.01}
}

// env simulates telemetry cost vs signal: anomalies occur at a fixed rate,
// sampling level scales per-step cost, and the reward trades caught
// anomalies against budget overage.
type env struct {
	config       EnvConfig
	rng          *rand.Rand
	step         int
	relativeCost float64
}

func (e *env) reset() (float64, bool) {
	e.step = 0
	e.relativeCost = 0
	return 0, false
}

// doStep advances the simulation one tick for the chosen action index
// (0 decrease, 1 maintain, 2 increase).
func (e *env) doStep(action int) (cost float64, anomaly bool, reward float64, done bool) {
	e.step++
	anomaly = e.rng.Float64() < e.config.AnomalyRate

	multiplier := 1.0
	switch action {
	case 0:
		multiplier = 0.5
	case 2:
		multiplier = 2.0
	}
	e.relativeCost += e.config.BaseCost * multiplier

	if anomaly {
		catchProb := 0.5
		switch action {
		case 0:
			catchProb = 0.1
		case 2:
			catchProb = 0.9
		}
		if e.rng.Float64() < catchProb {
			reward++
		} else {
			reward--
		}
	}
	if e.relativeCost > e.config.BudgetLimit {
		reward -= (e.relativeCost - e.config.BudgetLimit) * 5.0
	}

	cost = e.relativeCost / e.config.BudgetLimit
	if cost > 2.0 {
		cost = 2.0
	}
	return cost, anomaly, reward, e.step >= e.config.MaxSteps
}

// TrainConfig holds the Q-learning hyperparameters.
type TrainConfig struct {
	Alpha        float64
	Gamma        float64
	EpsilonStart float64
	EpsilonEnd   float64
	Episodes     int
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{Alpha: 0.1, Gamma: 0.95, EpsilonStart: 1.0, EpsilonEnd: 0.1, Episodes: 2000}
}

// Train runs ε-greedy Q-learning against the simulated environment and
// returns an advisor holding the learned table. The seed pins the RNG so
// training is reproducible.
func Train(envConfig EnvConfig, trainConfig TrainConfig, seed int64) *Advisor {
	advisor := NewAdvisor()
	e := &env{config: envConfig, rng: rand.New(rand.NewSource(seed))}

	for episode := 0; episode < trainConfig.Episodes; episode++ {
		cost, anomaly := e.reset()
		epsilon := trainConfig.EpsilonStart
		if trainConfig.Episodes > 1 {
			epsilon -= (trainConfig.EpsilonStart - trainConfig.EpsilonEnd) *
				float64(episode) / float64(trainConfig.Episodes-1)
		}
		for {
			state := Discretize(cost, anomaly)
			action := advisor.pickAction(state, epsilon, e.rng)
			nextCost, nextAnomaly, reward, done := e.doStep(action)
			advisor.update(state, action, reward, Discretize(nextCost, nextAnomaly), trainConfig)
			cost, anomaly = nextCost, nextAnomaly
			if done {
				break
			}
		}
	}
	return advisor
}

func (a *Advisor) pickAction(s State, epsilon float64, rng *rand.Rand) int {
	if rng.Float64() < epsilon {
		return rng.Intn(3)
	}
	values := a.qtable[s]
	best, bestValue := 0, values[0]
	for i := 1; i < len(values); i++ {
		if values[i] > bestValue {
			best, bestValue = i, values[i]
		}
	}
	return best
}

func (a *Advisor) update(s State, action int, reward float64, next State, cfg TrainConfig) {
	values := a.qtable[s]
	nextValues := a.qtable[next]
	nextMax := nextValues[0]
	for i := 1; i < len(nextValues); i++ {
		if nextValues[i] > nextMax {
			nextMax = nextValues[i]
		}
	}
	target := reward + cfg.Gamma*nextMax
	values[action] += cfg.Alpha * (target - values[action])
	a.qtable[s] = values
}
