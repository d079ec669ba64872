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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForecastEmptyHistory(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	require.Equal(t, []float64{0, 0, 0}, engine.Forecast(3))
	require.False(t, engine.NeedsAction())
}

func TestSlidingWindowEviction(t *testing.T) {
	engine := NewEngine(Config{TargetBudget: 1.0, WindowSize: 3})
	for _, v := range []float64{10, 1, 1, 1} {
		engine.Update(v)
	}
	// The 10 fell out of the window, so forecasts stay near 1.
	for _, v := range engine.Forecast(5) {
		require.InDelta(t, 1.0, v, 0.01)
	}
}

func TestSmoothingFallbackBelowThreeSamples(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	engine.Update(0.4)
	engine.Update(0.8)

	// Two samples: exponential smoothing from the last value toward the
	// mean. level = 0.5*0.8 + 0.5*0.6 = 0.7, then 0.65, ...
	forecast := engine.Forecast(2)
	require.InDelta(t, 0.7, forecast[0], 1e-9)
	require.InDelta(t, 0.65, forecast[1], 1e-9)
}

func TestAR1ForecastConstantSeries(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	for i := 0; i < 10; i++ {
		engine.Update(0.5)
	}
	for _, v := range engine.Forecast(7) {
		require.InDelta(t, 0.5, v, 1e-9)
	}
}

func TestAR1ForecastMeanReverting(t *testing.T) {
	var fc AR1Forecaster
	window := []float64{0.4, 0.6, 0.4, 0.6, 0.4, 0.6, 0.4, 0.6}
	forecast := fc.Forecast(window, 5)
	for _, v := range forecast {
		require.Greater(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestNeedsActionOverBudget(t *testing.T) {
	engine := NewEngine(Config{TargetBudget: 1.0, WindowSize: 30})
	for i := 0; i < 10; i++ {
		engine.Update(1.6)
	}
	require.True(t, engine.NeedsAction())
}

func TestNeedsActionUnderBudget(t *testing.T) {
	engine := NewEngine(Config{TargetBudget: 1.0, WindowSize: 30})
	for i := 0; i < 10; i++ {
		engine.Update(0.3)
	}
	require.False(t, engine.NeedsAction())
}

func TestDisabledStatisticalForecasterFallsBack(t *testing.T) {
	engine := NewEngine(DefaultConfig()).WithForecaster(nil)
	engine.Update(0.4)
	engine.Update(0.8)
	engine.Update(0.6)

	// mean = 0.6, level starts at 0.6: smoothing holds steady.
	forecast := engine.Forecast(3)
	for _, v := range forecast {
		require.InDelta(t, 0.6, v, 1e-9)
	}
}

func TestForecasterStatuses(t *testing.T) {
	status, detail := AR1Forecaster{}.Status()
	require.Equal(t, "ready", status)
	require.NotEmpty(t, detail)

	status, _ = SmoothingForecaster{}.Status()
	require.Equal(t, "ready", status)
}
