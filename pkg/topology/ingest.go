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
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// NodesFromManifests converts the recognized workload and service objects
// into graph nodes keyed "<namespace>/<name>".
func NodesFromManifests(set manifest.Set) []Node {
	var nodes []Node
	add := func(meta metav1.ObjectMeta, kind string) {
		ns := meta.Namespace
		if ns == "" {
			ns = "default"
		}
		nodes = append(nodes, Node{
			ID:        ns + "/" + meta.Name,
			Name:      meta.Name,
			Namespace: ns,
			Kind:      kind,
			Labels:    meta.Labels,
		})
	}
	for _, d := range set.Deployments {
		add(d.ObjectMeta, "Deployment")
	}
	for _, s := range set.StatefulSets {
		add(s.ObjectMeta, "StatefulSet")
	}
	for _, d := range set.DaemonSets {
		add(d.ObjectMeta, "DaemonSet")
	}
	for _, s := range set.Services {
		add(s.ObjectMeta, "Service")
	}
	return nodes
}

// ServiceCallStats counts total and error spans per service.
type ServiceCallStats struct {
	Total  float64 `json:"total"`
	Errors float64 `json:"errors"`
}

// EdgesFromSpans aggregates cross-service parent/child relationships into
// weighted edges (by service name, not node ID) and collects per-service
// call statistics in the same pass. Edge order is deterministic.
func EdgesFromSpans(spans []trace.Span) ([]Edge, map[string]ServiceCallStats) {
	type key struct{ source, target string }
	weights := map[key]float64{}
	var order []key
	stats := map[string]ServiceCallStats{}

	for _, s := range spans {
		entry := stats[s.Service]
		entry.Total++
		if trace.IsError(s) {
			entry.Errors++
		}
		stats[s.Service] = entry

		if s.ParentService == "" || s.ParentService == s.Service {
			continue
		}
		k := key{s.ParentService, s.Service}
		if _, ok := weights[k]; !ok {
			order = append(order, k)
		}
		weights[k]++
	}

	edges := make([]Edge, 0, len(order))
	for _, k := range order {
		edges = append(edges, Edge{Source: k.source, Target: k.target, Label: "calls", Weight: weights[k]})
	}
	return edges, stats
}

// ErrorRates reduces call stats to a per-service error rate.
func ErrorRates(stats map[string]ServiceCallStats) map[string]float64 {
	rates := make(map[string]float64, len(stats))
	for service, entry := range stats {
		if entry.Total > 0 {
			rates[service] = entry.Errors / entry.Total
		} else {
			rates[service] = 0
		}
	}
	return rates
}

// StubNode synthesizes a node for a service seen only in traces. A name of
// the form "ns/name" keeps its namespace, anything else lands in
// "unknown".
func StubNode(service string) Node {
	namespace, name := "unknown", service
	if idx := strings.Index(service, "/"); idx >= 0 {
		namespace, name = service[:idx], service[idx+1:]
	}
	return Node{ID: service, Name: name, Namespace: namespace, Kind: "Service"}
}

// serviceIndex maps bare workload/service names to node IDs so trace edges
// can resolve against manifest nodes. Collisions resolve to the lexically
// smallest ID for determinism.
func serviceIndex(nodes []Node) map[string]string {
	byName := map[string][]string{}
	for _, n := range nodes {
		byName[n.Name] = append(byName[n.Name], n.ID)
	}
	index := make(map[string]string, len(byName))
	for name, ids := range byName {
		sort.Strings(ids)
		index[name] = ids[0]
	}
	return index
}
