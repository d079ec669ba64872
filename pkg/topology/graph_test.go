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
)

func chainGraph() *Graph {
	g := NewGraph()
	g.AddNode(Node{ID: "default/web", Name: "web", Namespace: "default", Kind: "Deployment"})
	g.AddNode(Node{ID: "default/api", Name: "api", Namespace: "default", Kind: "Deployment"})
	g.AddNode(Node{ID: "default/db", Name: "db", Namespace: "default", Kind: "Deployment"})
	g.AddEdge(Edge{Source: "default/web", Target: "default/api", Weight: 3})
	g.AddEdge(Edge{Source: "default/api", Target: "default/db", Weight: 5})
	return g
}

func TestAddNodeIdempotent(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "a", Name: "a", Kind: "Service"})
	g.AddNode(Node{ID: "a", Name: "a-again", Kind: "Deployment"})
	nodes := g.Nodes()
	require.Len(t, nodes, 1)
	require.Equal(t, "a", nodes[0].Name)
}

func TestDegreeCentrality(t *testing.T) {
	centrality := chainGraph().DegreeCentrality()
	// api touches both edges: (1+1)/(3-1) = 1.0.
	require.InDelta(t, 1.0, centrality["default/api"], 1e-9)
	require.InDelta(t, 0.5, centrality["default/web"], 1e-9)
	require.InDelta(t, 0.5, centrality["default/db"], 1e-9)
}

func TestPageRankSumsToOne(t *testing.T) {
	rank := chainGraph().PageRank(0.85, 20)
	sum := 0.0
	for _, r := range rank {
		require.Greater(t, r, 0.0)
		sum += r
	}
	require.InDelta(t, 1.0, sum, 1e-6)
}

func TestPageRankSinkRanksHighest(t *testing.T) {
	rank := chainGraph().PageRank(0.85, 20)
	require.Greater(t, rank["default/db"], rank["default/api"])
	require.Greater(t, rank["default/api"], rank["default/web"])
}

func TestPageRankEmptyGraph(t *testing.T) {
	require.Empty(t, NewGraph().PageRank(0.85, 20))
}

func TestPageRankDanglingRedistribution(t *testing.T) {
	// Two disconnected nodes: all mass dangles, ranks stay uniform.
	g := NewGraph()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b"})
	rank := g.PageRank(0.85, 20)
	require.InDelta(t, 0.5, rank["a"], 1e-9)
	require.InDelta(t, 0.5, rank["b"], 1e-9)
}

func TestDOTExport(t *testing.T) {
	dot := chainGraph().DOT()
	require.Contains(t, dot, "digraph topology {")
	require.Contains(t, dot, `"default/web" [label="web\n(default)"];`)
	require.Contains(t, dot, `"default/web" -> "default/api" [label="calls"];`)
	require.Contains(t, dot, `"default/api" -> "default/db" [label="calls"];`)
}
