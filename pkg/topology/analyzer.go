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

package topology

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// Metrics bundles the graph rankings plus per-service error rates.
type Metrics struct {
	DegreeCentrality map[string]float64 `json:"degree_centrality"`
	PageRank         map[string]float64 `json:"pagerank"`
	ErrorRate        map[string]float64 `json:"error_rate"`
}

// RCAHint flags a likely root-cause service, scored by error rate and
// topology centrality.
type RCAHint struct {
	NodeID    string   `json:"node_id"`
	Service   string   `json:"service"`
	Score     float64  `json:"score"`
	ErrorRate float64  `json:"error_rate"`
	PageRank  float64  `json:"pagerank"`
	Notes     []string `json:"notes"`
}

// Report is the full topology analysis result.
type Report struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Metrics  Metrics   `json:"metrics"`
	Hints    []RCAHint `json:"hints"`
	Warnings []string  `json:"warnings,omitempty"`
	DOT      string    `json:"dot,omitempty"`
}

const (
	defaultErrorThreshold = 0.05
	pageRankDamping       = 0.85
	pageRankIterations    = 20
)

// Analyzer builds and ranks the service graph. Both inputs are optional;
// missing ones degrade to warnings rather than failures.
type Analyzer struct {
	ErrorThreshold float64
	logger         log.Logger
}

func NewAnalyzer(logger log.Logger) *Analyzer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Analyzer{ErrorThreshold: defaultErrorThreshold, logger: logger}
}

// Analyze builds the graph from manifest nodes and span edges, synthesizing
// stub nodes for services only the traces know about, then computes
// centrality, PageRank and RCA hints.
func (a *Analyzer) Analyze(set manifest.Set, spans []trace.Span) Report {
	graph := NewGraph()
	var warnings []string

	nodes := NodesFromManifests(set)
	if len(nodes) == 0 {
		warnings = append(warnings, "No manifests provided; graph nodes will rely on trace data only.")
	}
	for _, n := range nodes {
		graph.AddNode(n)
	}

	edges, stats := EdgesFromSpans(spans)
	if len(spans) == 0 {
		warnings = append(warnings, "No traces provided; edges and error metrics are empty.")
	}

	index := serviceIndex(graph.Nodes())
	resolve := func(service string) string {
		if id, ok := index[service]; ok {
			return id
		}
		return service
	}
	for _, e := range edges {
		sourceID, targetID := resolve(e.Source), resolve(e.Target)
		if !graph.HasNode(sourceID) {
			level.Debug(a.logger).Log("msg", "synthesizing stub node", "service", e.Source)
			graph.AddNode(StubNode(sourceID))
		}
		if !graph.HasNode(targetID) {
			level.Debug(a.logger).Log("msg", "synthesizing stub node", "service", e.Target)
			graph.AddNode(StubNode(targetID))
		}
		graph.AddEdge(Edge{Source: sourceID, Target: targetID, Label: e.Label, Weight: e.Weight})
	}

	metrics := Metrics{
		DegreeCentrality: graph.DegreeCentrality(),
		PageRank:         graph.PageRank(pageRankDamping, pageRankIterations),
		ErrorRate:        ErrorRates(stats),
	}

	return Report{
		Nodes:    graph.Nodes(),
		Edges:    graph.Edges(),
		Metrics:  metrics,
		Hints:    a.hints(graph, metrics),
		Warnings: warnings,
		DOT:      graph.DOT(),
	}
}

// hints scores every node by 0.7*error_rate + 0.3*(rank/maxRank) and keeps
// those breaching the error threshold or sitting in the top centrality
// band.
func (a *Analyzer) hints(graph *Graph, metrics Metrics) []RCAHint {
	threshold := a.ErrorThreshold
	if threshold == 0 {
		threshold = defaultErrorThreshold
	}
	maxRank := 0.0
	for _, r := range metrics.PageRank {
		if r > maxRank {
			maxRank = r
		}
	}
	if maxRank == 0 {
		maxRank = 1.0
	}

	var hints []RCAHint
	for _, id := range graph.sortedIDs() {
		n := graph.nodes[id]
		errorRate := metrics.ErrorRate[n.Name]
		rank := metrics.PageRank[id]
		var notes []string
		if errorRate >= threshold {
			notes = append(notes, fmt.Sprintf("Error rate %.2f%% exceeds threshold.", errorRate*100))
		}
		if rank >= maxRank*0.6 {
			notes = append(notes, "High topology centrality.")
		}
		if len(notes) == 0 {
			continue
		}
		hints = append(hints, RCAHint{
			NodeID:    id,
			Service:   n.Name,
			Score:     round4(errorRate*0.7 + (rank/maxRank)*0.3),
			ErrorRate: round4(errorRate),
			PageRank:  round4(rank),
			Notes:     notes,
		})
	}
	sort.SliceStable(hints, func(i, j int) bool { return hints[i].Score > hints[j].Score })
	return hints
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
