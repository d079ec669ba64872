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

package trace

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ServiceStats aggregates spans of one service.
type ServiceStats struct {
	SpanCount    int      `json:"span_count"`
	ErrorCount   int      `json:"error_count"`
	ErrorRate    float64  `json:"error_rate"`
	LatencyP50Ms *float64 `json:"latency_p50_ms"`
	LatencyP95Ms *float64 `json:"latency_p95_ms"`
	LatencyP99Ms *float64 `json:"latency_p99_ms"`
}

// Stats aggregates a full span set. Percentiles are nil when no span carries
// a measurable duration.
type Stats struct {
	SpanCount    int                     `json:"span_count"`
	ErrorCount   int                     `json:"error_count"`
	ErrorRate    float64                 `json:"error_rate"`
	Availability float64                 `json:"availability"`
	LatencyP50Ms *float64                `json:"latency_p50_ms"`
	LatencyP95Ms *float64                `json:"latency_p95_ms"`
	LatencyP99Ms *float64                `json:"latency_p99_ms"`
	Services     map[string]ServiceStats `json:"service_stats"`
}

// ComputeStats derives global and per-service latency percentiles, error
// counts and availability from a span set.
func ComputeStats(spans []Span) Stats {
	var (
		latencies    []float64
		errorCount   int
		svcLatencies = map[string][]float64{}
		svcErrors    = map[string]int{}
		svcCounts    = map[string]int{}
	)
	for _, s := range spans {
		if d := DurationMs(s.Start, s.End); d != nil {
			latencies = append(latencies, *d)
			svcLatencies[s.Service] = append(svcLatencies[s.Service], *d)
		}
		svcCounts[s.Service]++
		if IsError(s) {
			errorCount++
			svcErrors[s.Service]++
		}
	}

	stats := Stats{
		SpanCount:    len(spans),
		ErrorCount:   errorCount,
		LatencyP50Ms: Percentile(latencies, 0.50),
		LatencyP95Ms: Percentile(latencies, 0.95),
		LatencyP99Ms: Percentile(latencies, 0.99),
		Services:     map[string]ServiceStats{},
	}
	if stats.SpanCount > 0 {
		stats.ErrorRate = float64(errorCount) / float64(stats.SpanCount)
	}
	stats.Availability = 1.0 - stats.ErrorRate

	for svc, count := range svcCounts {
		lat := svcLatencies[svc]
		ss := ServiceStats{
			SpanCount:    count,
			ErrorCount:   svcErrors[svc],
			LatencyP50Ms: Percentile(lat, 0.50),
			LatencyP95Ms: Percentile(lat, 0.95),
			LatencyP99Ms: Percentile(lat, 0.99),
		}
		if count > 0 {
			ss.ErrorRate = float64(ss.ErrorCount) / float64(count)
		}
		stats.Services[svc] = ss
	}
	return stats
}

// DurationMs computes end-start in milliseconds with unit auto-detection:
// epoch values above 1e15 are nanoseconds, above 1e12 microseconds, above
// 1e9 seconds, anything else is taken as milliseconds already. Negative
// durations clamp to zero.
func DurationMs(start, end *float64) *float64 {
	if start == nil || end == nil {
		return nil
	}
	s, e := *start, *end
	var ms float64
	switch {
	case s > 1e15 || e > 1e15:
		ms = (e - s) / 1e6
	case s > 1e12 || e > 1e12:
		ms = (e - s) / 1e3
	case s > 1e9 || e > 1e9:
		ms = (e - s) * 1e3
	default:
		ms = e - s
	}
	ms = math.Max(0, ms)
	return &ms
}

// Percentile computes pct over values using linear interpolation between the
// rank-floor and rank-ceil neighbors. Empty input yields nil.
func Percentile(values []float64, pct float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	if len(ordered) == 1 {
		v := ordered[0]
		return &v
	}
	k := float64(len(ordered)-1) * pct
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		v := ordered[int(k)]
		return &v
	}
	v := ordered[int(f)]*(c-k) + ordered[int(c)]*(k-f)
	return &v
}

var errorStatuses = map[string]bool{
	"ERROR":               true,
	"STATUS_CODE_ERROR":   true,
	"STATUS_CODE_UNKNOWN": true,
}

// IsError reports whether a span represents a failure: an error status, an
// HTTP 5xx status code attribute, or any recorded exception.
func IsError(s Span) bool {
	if errorStatuses[strings.ToUpper(s.Status)] {
		return true
	}
	code := s.Attrs["http.status_code"]
	if code == nil {
		code = s.Attrs["http.status"]
	}
	switch c := code.(type) {
	case float64:
		if c >= 500 {
			return true
		}
	case string:
		if n, err := strconv.Atoi(c); err == nil && n >= 500 {
			return true
		}
	}
	for key := range s.Attrs {
		if strings.HasPrefix(key, "exception.") {
			return true
		}
	}
	return false
}
