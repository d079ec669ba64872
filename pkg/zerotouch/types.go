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

// Package zerotouch discovers workloads from Kubernetes manifests, selects
// an OpenTelemetry collector deployment topology, renders collector
// configuration and manifests, and applies workload patches through
// kubectl.
package zerotouch

import corev1 "k8s.io/api/core/v1"

// Mode is a collector deployment topology.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeGateway   Mode = "gateway"
	ModeDaemonSet Mode = "daemonset"
	ModeSidecar   Mode = "sidecar"
)

// Workload is a discovered Deployment, StatefulSet or DaemonSet.
type Workload struct {
	Name        string             `json:"name"`
	Namespace   string             `json:"namespace"`
	Kind        string             `json:"kind"`
	Labels      map[string]string  `json:"labels,omitempty"`
	Annotations map[string]string  `json:"annotations,omitempty"`
	Containers  []corev1.Container `json:"containers,omitempty"`
}

// Service is a discovered Kubernetes Service.
type Service struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Selector  map[string]string `json:"selector,omitempty"`
	Ports     []int32           `json:"ports,omitempty"`
}

// DiscoveredService pairs a Service with its selected workload (either may
// be absent) plus derived instrumentation facts.
type DiscoveredService struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Workload  *Workload         `json:"workload,omitempty"`
	Service   *Service          `json:"service,omitempty"`
	Language  string            `json:"language"`
	Ports     []int32           `json:"ports,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// InstrumentationPlan is the per-service OTLP env block.
type InstrumentationPlan struct {
	ServiceName  string            `json:"service_name"`
	Namespace    string            `json:"namespace"`
	Language     string            `json:"language"`
	OTLPEndpoint string            `json:"otlp_endpoint"`
	Env          map[string]string `json:"env"`
}

// PatchInstruction is a JSON merge patch against one workload's container
// env lists.
type PatchInstruction struct {
	WorkloadName string         `json:"workload_name"`
	Namespace    string         `json:"namespace"`
	Kind         string         `json:"kind"`
	Description  string         `json:"description"`
	Patch        map[string]any `json:"patch"`
}

// CollectorPlan is the full planning result.
type CollectorPlan struct {
	Mode            Mode                  `json:"mode"`
	Namespace       string                `json:"namespace"`
	SamplingRate    float64               `json:"sampling_rate"`
	Exporters       []string              `json:"exporters"`
	ConfigYAML      string                `json:"config_yaml"`
	ManifestYAML    string                `json:"manifest_yaml"`
	Instrumentation []InstrumentationPlan `json:"instrumentation"`
	Patches         []PatchInstruction    `json:"patches"`
	Discovered      []DiscoveredService   `json:"discovered"`
}

// Plan wraps the collector plan with planning warnings.
type Plan struct {
	Collector CollectorPlan `json:"collector"`
	Warnings  []string      `json:"warnings,omitempty"`
}
