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
	"fmt"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

const (
	collectorImage      = "otel/opentelemetry-collector:0.97.0"
	collectorConfigFile = "otel-collector-config.yaml"
	otlpGRPCPort        = 4317
	otlpHTTPPort        = 4318
)

// collectorConfig mirrors the OpenTelemetry collector configuration file.
// Structs keep the emitted key order stable.
type collectorConfig struct {
	Receivers  receiversConfig  `yaml:"receivers"`
	Processors processorsConfig `yaml:"processors"`
	Exporters  map[string]any   `yaml:"exporters"`
	Service    serviceConfig    `yaml:"service"`
}

type receiversConfig struct {
	OTLP struct {
		Protocols struct {
			GRPC struct{} `yaml:"grpc"`
			HTTP struct{} `yaml:"http"`
		} `yaml:"protocols"`
	} `yaml:"otlp"`
}

type processorsConfig struct {
	MemoryLimiter struct {
		CheckInterval string `yaml:"check_interval"`
		LimitMiB      int    `yaml:"limit_mib"`
	} `yaml:"memory_limiter"`
	Batch struct {
		Timeout       string `yaml:"timeout"`
		SendBatchSize int    `yaml:"send_batch_size"`
	} `yaml:"batch"`
	ProbabilisticSampler *struct {
		SamplingPercentage float64 `yaml:"sampling_percentage"`
	} `yaml:"probabilistic_sampler,omitempty"`
}

type serviceConfig struct {
	Pipelines map[string]pipelineConfig `yaml:"pipelines"`
}

type pipelineConfig struct {
	Receivers  []string `yaml:"receivers"`
	Processors []string `yaml:"processors"`
	Exporters  []string `yaml:"exporters"`
}

// BuildCollectorConfig renders the collector configuration: an OTLP
// receiver, memory_limiter and batch processors (plus a probabilistic
// sampler when the rate is below 1.0), and the requested exporters wired
// into traces, metrics and logs pipelines.
func BuildCollectorConfig(samplingRate float64, exporters []string, otlpEndpoint string) (string, error) {
	cfg := collectorConfig{Exporters: map[string]any{}}
	cfg.Processors.MemoryLimiter.CheckInterval = "1s"
	cfg.Processors.MemoryLimiter.LimitMiB = 400
	cfg.Processors.Batch.Timeout = "1s"
	cfg.Processors.Batch.SendBatchSize = 1024

	processors := []string{"memory_limiter", "batch"}
	if samplingRate < 1.0 {
		sampler := &struct {
			SamplingPercentage float64 `yaml:"sampling_percentage"`
		}{SamplingPercentage: samplingRate * 100}
		cfg.Processors.ProbabilisticSampler = sampler
		processors = append([]string{"probabilistic_sampler"}, processors...)
	}

	for _, exporter := range exporters {
		switch exporter {
		case "logging":
			cfg.Exporters["logging"] = map[string]string{"loglevel": "info"}
		case "otlp":
			endpoint := otlpEndpoint
			if endpoint == "" {
				endpoint = "http://otel-collector-gateway:4317"
			}
			cfg.Exporters["otlp"] = map[string]any{
				"endpoint": endpoint,
				"tls":      map[string]bool{"insecure": true},
			}
		default:
			return "", fmt.Errorf("unsupported exporter %q", exporter)
		}
	}

	pipeline := pipelineConfig{Receivers: []string{"otlp"}, Processors: processors, Exporters: exporters}
	cfg.Service.Pipelines = map[string]pipelineConfig{
		"traces":  pipeline,
		"metrics": pipeline,
		"logs":    pipeline,
	}

	var b strings.Builder
	enc := yamlv3.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// BuildGatewayManifest renders the ConfigMap, Service and Deployment of a
// central collector gateway.
func BuildGatewayManifest(namespace, configYAML string) (string, error) {
	return collectorManifest("Deployment", "otel-collector-gateway", namespace, configYAML)
}

// BuildDaemonSetManifest renders the ConfigMap, Service and DaemonSet of a
// per-node collector.
func BuildDaemonSetManifest(namespace, configYAML string) (string, error) {
	return collectorManifest("DaemonSet", "otel-collector-daemonset", namespace, configYAML)
}

// BuildSidecarManifestStub renders only the ConfigMap; the sidecar itself
// is injected via workload patches.
func BuildSidecarManifestStub(namespace, configYAML string) (string, error) {
	configMap := collectorConfigMap("otel-collector-sidecar", namespace, configYAML)
	doc, err := yaml.Marshal(configMap)
	if err != nil {
		return "", err
	}
	return "---\n" + string(doc) +
		"# Sidecar injection required: mount the config and run " + collectorImage + " in each workload.\n", nil
}

func collectorManifest(kind, name, namespace, configYAML string) (string, error) {
	labels := map[string]string{"app": name}

	podSpec := corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:  "otel-collector",
			Image: collectorImage,
			Args:  []string{"--config=/etc/otel/" + collectorConfigFile},
			Ports: []corev1.ContainerPort{
				{ContainerPort: otlpGRPCPort},
				{ContainerPort: otlpHTTPPort},
			},
			VolumeMounts: []corev1.VolumeMount{{Name: "otel-config", MountPath: "/etc/otel"}},
		}},
		Volumes: []corev1.Volume{{
			Name: "otel-config",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: name + "-config"},
				},
			},
		}},
	}
	template := corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{Labels: labels},
		Spec:       podSpec,
	}

	var workload any
	switch kind {
	case "Deployment":
		workload = &appsv1.Deployment{
			TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
			Spec: appsv1.DeploymentSpec{
				Selector: &metav1.LabelSelector{MatchLabels: labels},
				Template: template,
			},
		}
	case "DaemonSet":
		workload = &appsv1.DaemonSet{
			TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "DaemonSet"},
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
			Spec: appsv1.DaemonSetSpec{
				Selector: &metav1.LabelSelector{MatchLabels: labels},
				Template: template,
			},
		}
	default:
		return "", fmt.Errorf("unsupported collector workload kind %q", kind)
	}

	service := &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports: []corev1.ServicePort{
				{Name: "otlp-grpc", Port: otlpGRPCPort, TargetPort: intstr.FromInt32(otlpGRPCPort)},
				{Name: "otlp-http", Port: otlpHTTPPort, TargetPort: intstr.FromInt32(otlpHTTPPort)},
			},
		},
	}

	var b strings.Builder
	for _, obj := range []any{collectorConfigMap(name, namespace, configYAML), service, workload} {
		doc, err := yaml.Marshal(obj)
		if err != nil {
			return "", err
		}
		b.WriteString("---\n")
		b.Write(doc)
	}
	return b.String(), nil
}

func collectorConfigMap(name, namespace, configYAML string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{Name: name + "-config", Namespace: namespace},
		Data:       map[string]string{collectorConfigFile: configYAML},
	}
}
