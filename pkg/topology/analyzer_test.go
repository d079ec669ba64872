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
	"testing"

	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

func deployment(name string) appsv1.Deployment {
	return appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"}}
}

func f(v float64) *float64 { return &v }

// spanChain builds web→api→db call spans with errors concentrated in db.
func spanChain() []trace.Span {
	mk := func(id, parent, service, status string) trace.Span {
		s := trace.Span{
			TraceID: "t1", SpanID: id, ParentID: parent, Service: service,
			Operation: service + "-op", Status: status,
			Start: f(0), End: f(10),
		}
		return s
	}
	return []trace.Span{
		withParentService(mk("s1", "", "web", "OK"), ""),
		withParentService(mk("s2", "s1", "api", "OK"), "web"),
		withParentService(mk("s3", "s2", "db", "ERROR"), "api"),
		withParentService(mk("s4", "s1", "api", "OK"), "web"),
		withParentService(mk("s5", "s4", "db", "OK"), "api"),
	}
}

func withParentService(s trace.Span, parent string) trace.Span {
	s.ParentService = parent
	return s
}

func manifestSet() manifest.Set {
	return manifest.Set{Deployments: []appsv1.Deployment{
		deployment("web"), deployment("api"), deployment("db"),
	}}
}

func TestAnalyzeChainWithErrors(t *testing.T) {
	report := NewAnalyzer(nil).Analyze(manifestSet(), spanChain())

	require.Len(t, report.Nodes, 3)
	require.Len(t, report.Edges, 2)
	require.Empty(t, report.Warnings)

	// Errors concentrate in db: 1 of 2 spans.
	require.InDelta(t, 0.5, report.Metrics.ErrorRate["db"], 1e-9)
	require.Equal(t, 0.0, report.Metrics.ErrorRate["web"])

	// db is the sink, so it carries the highest PageRank.
	maxID := ""
	maxRank := -1.0
	for id, rank := range report.Metrics.PageRank {
		if rank > maxRank {
			maxID, maxRank = id, rank
		}
	}
	require.Equal(t, "default/db", maxID)

	require.NotEmpty(t, report.Hints)
	top := report.Hints[0]
	require.Equal(t, "db", top.Service)
	// score = 0.7*0.5 + 0.3*(rank/maxRank) = 0.65 for the top-ranked node.
	require.InDelta(t, 0.65, top.Score, 1e-4)
	require.Contains(t, top.Notes[0], "exceeds threshold")
}

func TestAnalyzeSynthesizesStubs(t *testing.T) {
	report := NewAnalyzer(nil).Analyze(manifest.Set{}, spanChain())

	require.Contains(t, report.Warnings[0], "No manifests provided")
	require.Len(t, report.Nodes, 3)
	for _, n := range report.Nodes {
		require.Equal(t, "Service", n.Kind)
		require.Equal(t, "unknown", n.Namespace)
	}
	// Every edge endpoint resolves to a node.
	ids := map[string]bool{}
	for _, n := range report.Nodes {
		ids[n.ID] = true
	}
	for _, e := range report.Edges {
		require.True(t, ids[e.Source], "unresolved source %s", e.Source)
		require.True(t, ids[e.Target], "unresolved target %s", e.Target)
	}
}

func TestAnalyzeNoTraces(t *testing.T) {
	report := NewAnalyzer(nil).Analyze(manifestSet(), nil)
	require.Len(t, report.Nodes, 3)
	require.Empty(t, report.Edges)
	require.Contains(t, report.Warnings[0], "No traces provided")
}

func TestAnalyzeEdgeWeights(t *testing.T) {
	report := NewAnalyzer(nil).Analyze(manifestSet(), spanChain())
	weights := map[string]float64{}
	for _, e := range report.Edges {
		weights[e.Source+"->"+e.Target] = e.Weight
	}
	require.Equal(t, 2.0, weights["default/web->default/api"])
	require.Equal(t, 2.0, weights["default/api->default/db"])
}

func TestEdgesFromSpansIgnoresSelfCalls(t *testing.T) {
	spans := []trace.Span{
		withParentService(trace.Span{SpanID: "a", Service: "svc", Status: "OK"}, "svc"),
	}
	edges, stats := EdgesFromSpans(spans)
	require.Empty(t, edges)
	require.Equal(t, 1.0, stats["svc"].Total)
}

func TestStubNodeNamespaceSplit(t *testing.T) {
	n := StubNode("payments/gateway")
	require.Equal(t, "payments", n.Namespace)
	require.Equal(t, "gateway", n.Name)

	plain := StubNode("solo")
	require.Equal(t, "unknown", plain.Namespace)
	require.Equal(t, "solo", plain.Name)
}
