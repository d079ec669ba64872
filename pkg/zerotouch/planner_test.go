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

package zerotouch

import (
	"testing"

	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
)

func testDeployment(name, image string) appsv1.Deployment {
	labels := map[string]string{"app": name}
	return appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "shop", Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{Containers: []corev1.Container{{
					Name:  name,
					Image: image,
					Ports: []corev1.ContainerPort{{ContainerPort: 8080}},
				}}},
			},
		},
	}
}

func testService(name string) corev1.Service {
	return corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "shop"},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": name},
			Ports:    []corev1.ServicePort{{Port: 80}},
		},
	}
}

func twoDeploymentSet() manifest.Set {
	return manifest.Set{
		Deployments: []appsv1.Deployment{
			testDeployment("checkout", "ghcr.io/shop/checkout-python:3"),
			testDeployment("payments", "ghcr.io/shop/payments-java:17"),
		},
		Services: []corev1.Service{testService("checkout"), testService("payments")},
	}
}

func TestAutoModeSidecarForSmallFleet(t *testing.T) {
	discovered := Discover(twoDeploymentSet())
	plan, err := NewPlanner(Options{}, nil).Plan(discovered)
	require.NoError(t, err)

	require.Equal(t, ModeSidecar, plan.Collector.Mode)
	require.Equal(t, []string{"logging"}, plan.Collector.Exporters)
	require.Len(t, plan.Collector.Patches, 2)
	require.Empty(t, plan.Warnings)

	for _, instr := range plan.Collector.Instrumentation {
		require.Equal(t, "http://localhost:4317", instr.OTLPEndpoint)
		require.Equal(t, instr.ServiceName, instr.Env["OTEL_SERVICE_NAME"])
	}
}

func TestAutoModeDaemonSetWins(t *testing.T) {
	set := twoDeploymentSet()
	set.DaemonSets = []appsv1.DaemonSet{{
		ObjectMeta: metav1.ObjectMeta{Name: "agent", Namespace: "shop", Labels: map[string]string{"app": "agent"}},
		Spec: appsv1.DaemonSetSpec{Template: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "agent", Image: "agent:1"}}},
		}},
	}}
	plan, err := NewPlanner(Options{}, nil).Plan(Discover(set))
	require.NoError(t, err)
	require.Equal(t, ModeDaemonSet, plan.Collector.Mode)
	require.Contains(t, plan.Collector.ManifestYAML, "kind: DaemonSet")
}

func TestAutoModeGatewayForLargeFleet(t *testing.T) {
	set := manifest.Set{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		set.Deployments = append(set.Deployments, testDeployment(name, "img"))
	}
	plan, err := NewPlanner(Options{}, nil).Plan(Discover(set))
	require.NoError(t, err)
	require.Equal(t, ModeGateway, plan.Collector.Mode)
	require.Contains(t, plan.Collector.ManifestYAML, "otel-collector-gateway")
}

func TestAutoModeNoWorkloadsFallsBack(t *testing.T) {
	plan, err := NewPlanner(Options{}, nil).Plan(nil)
	require.NoError(t, err)
	require.Equal(t, ModeGateway, plan.Collector.Mode)
	require.NotEmpty(t, plan.Warnings)
	require.Contains(t, plan.Warnings[0], "gateway mode")
}

func TestPatchCoversEveryContainer(t *testing.T) {
	set := twoDeploymentSet()
	set.Deployments[0].Spec.Template.Spec.Containers = append(
		set.Deployments[0].Spec.Template.Spec.Containers,
		corev1.Container{Name: "sidekick", Image: "busybox"},
	)
	plan, err := NewPlanner(Options{}, nil).Plan(Discover(set))
	require.NoError(t, err)

	var checkout *PatchInstruction
	for i := range plan.Collector.Patches {
		if plan.Collector.Patches[i].WorkloadName == "checkout" {
			checkout = &plan.Collector.Patches[i]
		}
	}
	require.NotNil(t, checkout)

	containers := checkout.Patch["spec"].(map[string]any)["template"].(map[string]any)["spec"].(map[string]any)["containers"].([]any)
	require.Len(t, containers, 2)
	for _, c := range containers {
		env := c.(map[string]any)["env"].([]any)
		names := map[string]bool{}
		for _, e := range env {
			names[e.(map[string]any)["name"].(string)] = true
		}
		require.True(t, names["OTEL_EXPORTER_OTLP_ENDPOINT"])
		require.True(t, names["OTEL_SERVICE_NAME"])
		require.True(t, names["OTEL_RESOURCE_ATTRIBUTES"])
	}
}

func TestCollectorConfigSampler(t *testing.T) {
	cfg, err := BuildCollectorConfig(0.25, []string{"logging"}, "")
	require.NoError(t, err)
	require.Contains(t, cfg, "probabilistic_sampler")
	require.Contains(t, cfg, "sampling_percentage: 25")

	full, err := BuildCollectorConfig(1.0, []string{"logging"}, "")
	require.NoError(t, err)
	require.NotContains(t, full, "probabilistic_sampler")
}

func TestCollectorConfigOTLPExporter(t *testing.T) {
	cfg, err := BuildCollectorConfig(1.0, []string{"logging", "otlp"}, "http://upstream:4317")
	require.NoError(t, err)
	require.Contains(t, cfg, "endpoint: http://upstream:4317")
	require.Contains(t, cfg, "insecure: true")

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(cfg), &parsed))
	pipelines := parsed["service"].(map[string]any)["pipelines"].(map[string]any)
	for _, name := range []string{"traces", "metrics", "logs"} {
		pipeline := pipelines[name].(map[string]any)
		require.Equal(t, []any{"otlp"}, pipeline["receivers"])
		require.Equal(t, []any{"logging", "otlp"}, pipeline["exporters"])
	}
}

func TestCollectorConfigRejectsUnknownExporter(t *testing.T) {
	_, err := BuildCollectorConfig(1.0, []string{"kafka"}, "")
	require.Error(t, err)
}

func TestGatewayManifestShape(t *testing.T) {
	cfg, err := BuildCollectorConfig(1.0, []string{"logging"}, "")
	require.NoError(t, err)
	out, err := BuildGatewayManifest("observability", cfg)
	require.NoError(t, err)

	require.Contains(t, out, "kind: ConfigMap")
	require.Contains(t, out, "kind: Service")
	require.Contains(t, out, "kind: Deployment")
	require.Contains(t, out, "namespace: observability")
	require.Contains(t, out, collectorImage)
	require.Contains(t, out, "otel-collector-config.yaml")
}

func TestSidecarManifestIsConfigMapStub(t *testing.T) {
	out, err := BuildSidecarManifestStub("observability", "receivers: {}\n")
	require.NoError(t, err)
	require.Contains(t, out, "kind: ConfigMap")
	require.Contains(t, out, "otel-collector-sidecar-config")
	require.NotContains(t, out, "kind: Deployment")
}

func TestDetectLanguage(t *testing.T) {
	require.Equal(t, "python", DetectLanguage("ghcr.io/shop/checkout-python:3", nil))
	require.Equal(t, "java", DetectLanguage("eclipse-temurin:17-jre", nil))
	require.Equal(t, "nodejs", DetectLanguage("node:20-alpine", nil))
	require.Equal(t, "unknown", DetectLanguage("scratch", nil))
	require.Equal(t, "rust", DetectLanguage("whatever", map[string]string{LanguageLabel: "rust"}))
}

func TestDiscoverMatchesSelectors(t *testing.T) {
	discovered := Discover(twoDeploymentSet())
	require.Len(t, discovered, 2)
	for _, d := range discovered {
		require.NotNil(t, d.Workload)
		require.NotNil(t, d.Service)
		require.Equal(t, []int32{80, 8080}, d.Ports)
	}
}

func TestDiscoverUnmatchedWorkloadAndService(t *testing.T) {
	set := manifest.Set{
		Deployments: []appsv1.Deployment{testDeployment("lonely", "img")},
		Services:    []corev1.Service{testService("orphan")},
	}
	discovered := Discover(set)
	require.Len(t, discovered, 2)

	byName := map[string]DiscoveredService{}
	for _, d := range discovered {
		byName[d.Name] = d
	}
	require.Nil(t, byName["orphan"].Workload)
	require.NotNil(t, byName["orphan"].Service)
	require.NotNil(t, byName["lonely"].Workload)
	require.Nil(t, byName["lonely"].Service)
}
