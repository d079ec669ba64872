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

package budget

// Config bounds the history window and the normalized budget (1.0 = 100% of
// the monthly allowance).
type Config struct {
	TargetBudget float64
	WindowSize   int
}

func DefaultConfig() Config {
	return Config{TargetBudget: 1.0, WindowSize: 30}
}

// Engine tracks daily telemetry volumes over a sliding window and forecasts
// future usage. The statistical forecaster is used once the window holds at
// least three observations; before that the smoothing fallback applies.
type Engine struct {
	config      Config
	statistical Forecaster
	fallback    Forecaster
	history     []float64
}

func NewEngine(config Config) *Engine {
	if config.WindowSize <= 0 {
		config.WindowSize = 30
	}
	if config.TargetBudget == 0 {
		config.TargetBudget = 1.0
	}
	return &Engine{
		config:      config,
		statistical: AR1Forecaster{},
		fallback:    SmoothingForecaster{Alpha: 0.5},
	}
}

// WithForecaster swaps the statistical forecaster (nil disables it, forcing
// the smoothing fallback).
func (e *Engine) WithForecaster(f Forecaster) *Engine {
	e.statistical = f
	return e
}

func (e *Engine) Config() Config { return e.config }

// Update records one day's normalized volume, evicting the oldest entry
// once the window is full.
func (e *Engine) Update(volume float64) {
	e.history = append(e.history, volume)
	if len(e.history) > e.config.WindowSize {
		e.history = e.history[1:]
	}
}

// Forecast predicts the next steps daily volumes. An empty history yields
// zeros.
func (e *Engine) Forecast(steps int) []float64 {
	if len(e.history) == 0 {
		return make([]float64, steps)
	}
	if e.statistical != nil && len(e.history) >= 3 {
		if status, _ := e.statistical.Status(); status == "ready" {
			return e.statistical.Forecast(e.history, steps)
		}
	}
	return e.fallback.Forecast(e.history, steps)
}

// NeedsAction reports whether the 14-day forecast peaks above the budget.
func (e *Engine) NeedsAction() bool {
	max := 0.0
	for _, v := range e.Forecast(14) {
		if v > max {
			max = v
		}
	}
	return max > e.config.TargetBudget
}
