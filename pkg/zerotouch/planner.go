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

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Options configures the planner.
type Options struct {
	Mode Mode
	// Namespace hosts the collector resources.
	Namespace string
	// Exporters names the collector exporters ("logging", "otlp").
	Exporters []string
	// OTLPExportEndpoint is the downstream endpoint of the otlp exporter.
	OTLPExportEndpoint string
	// SamplingRate in [0,1]; below 1.0 the probabilistic sampler is added.
	SamplingRate float64
}

// Planner turns discovered services into a collector deployment plan.
type Planner struct {
	opts   Options
	logger log.Logger
}

func NewPlanner(opts Options, logger log.Logger) *Planner {
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.Namespace == "" {
		opts.Namespace = "observability"
	}
	if len(opts.Exporters) == 0 {
		opts.Exporters = []string{"logging"}
	}
	if opts.SamplingRate == 0 {
		opts.SamplingRate = 1.0
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Planner{opts: opts, logger: logger}
}

// Plan resolves the deployment mode, renders collector config and
// manifests, and emits per-workload patches plus per-service
// instrumentation env blocks.
func (p *Planner) Plan(discovered []DiscoveredService) (Plan, error) {
	mode := p.resolveMode(discovered)
	var warnings []string
	if mode == ModeAuto {
		warnings = append(warnings, "Fell back to gateway mode due to missing workload signals.")
		mode = ModeGateway
	}

	configYAML, err := BuildCollectorConfig(p.opts.SamplingRate, p.opts.Exporters, p.opts.OTLPExportEndpoint)
	if err != nil {
		return Plan{}, fmt.Errorf("render collector config: %w", err)
	}

	var (
		manifestYAML string
		otlpEndpoint string
	)
	switch mode {
	case ModeGateway:
		manifestYAML, err = BuildGatewayManifest(p.opts.Namespace, configYAML)
		otlpEndpoint = fmt.Sprintf("http://otel-collector-gateway.%s:%d", p.opts.Namespace, otlpGRPCPort)
	case ModeDaemonSet:
		manifestYAML, err = BuildDaemonSetManifest(p.opts.Namespace, configYAML)
		otlpEndpoint = fmt.Sprintf("http://otel-collector-daemonset.%s:%d", p.opts.Namespace, otlpGRPCPort)
	case ModeSidecar:
		manifestYAML, err = BuildSidecarManifestStub(p.opts.Namespace, configYAML)
		otlpEndpoint = fmt.Sprintf("http://localhost:%d", otlpGRPCPort)
	default:
		level.Warn(p.logger).Log("msg", "unknown collector mode, defaulting to gateway", "mode", mode)
		warnings = append(warnings, fmt.Sprintf("Unknown mode %s, defaulting to gateway.", mode))
		mode = ModeGateway
		manifestYAML, err = BuildGatewayManifest(p.opts.Namespace, configYAML)
		otlpEndpoint = fmt.Sprintf("http://otel-collector-gateway.%s:%d", p.opts.Namespace, otlpGRPCPort)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("render collector manifest: %w", err)
	}

	level.Info(p.logger).Log("msg", "planned collector topology", "mode", mode,
		"namespace", p.opts.Namespace, "services", len(discovered))

	return Plan{
		Collector: CollectorPlan{
			Mode:            mode,
			Namespace:       p.opts.Namespace,
			SamplingRate:    p.opts.SamplingRate,
			Exporters:       p.opts.Exporters,
			ConfigYAML:      configYAML,
			ManifestYAML:    manifestYAML,
			Instrumentation: buildInstrumentation(discovered, otlpEndpoint),
			Patches:         buildPatches(discovered, otlpEndpoint, mode),
			Discovered:      discovered,
		},
		Warnings: warnings,
	}, nil
}

// resolveMode implements the auto heuristic: any DaemonSet workload wins,
// up to five workloads get sidecars, more get a gateway. No workloads at
// all leaves auto for the caller to downgrade with a warning.
func (p *Planner) resolveMode(discovered []DiscoveredService) Mode {
	if p.opts.Mode != ModeAuto {
		return p.opts.Mode
	}
	workloads := 0
	hasDaemonSet := false
	for _, d := range discovered {
		if d.Workload == nil {
			continue
		}
		workloads++
		if d.Workload.Kind == "DaemonSet" {
			hasDaemonSet = true
		}
	}
	switch {
	case hasDaemonSet:
		return ModeDaemonSet
	case workloads > 0 && workloads <= 5:
		return ModeSidecar
	case workloads > 0:
		return ModeGateway
	}
	return ModeAuto
}

func buildInstrumentation(discovered []DiscoveredService, otlpEndpoint string) []InstrumentationPlan {
	plans := make([]InstrumentationPlan, 0, len(discovered))
	for _, d := range discovered {
		plans = append(plans, InstrumentationPlan{
			ServiceName:  d.Name,
			Namespace:    d.Namespace,
			Language:     d.Language,
			OTLPEndpoint: otlpEndpoint,
			Env:          instrumentationEnv(d, otlpEndpoint),
		})
	}
	return plans
}

func instrumentationEnv(d DiscoveredService, otlpEndpoint string) map[string]string {
	return map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT": otlpEndpoint,
		"OTEL_SERVICE_NAME":           d.Name,
		"OTEL_RESOURCE_ATTRIBUTES":    fmt.Sprintf("service.namespace=%s,service.name=%s", d.Namespace, d.Name),
	}
}

// buildPatches emits one merge patch per workload, injecting the OTLP env
// vars into every container.
func buildPatches(discovered []DiscoveredService, otlpEndpoint string, mode Mode) []PatchInstruction {
	description := "Inject OTLP exporter env vars to send telemetry to collector gateway."
	if mode == ModeSidecar {
		description = "Inject OTLP exporter env vars to send telemetry to sidecar collector."
	}
	var patches []PatchInstruction
	for _, d := range discovered {
		if d.Workload == nil {
			continue
		}
		env := []any{}
		for _, kv := range orderedEnv(instrumentationEnv(d, otlpEndpoint)) {
			env = append(env, map[string]any{"name": kv[0], "value": kv[1]})
		}
		containers := []any{}
		for _, c := range d.Workload.Containers {
			containers = append(containers, map[string]any{"name": c.Name, "env": env})
		}
		patches = append(patches, PatchInstruction{
			WorkloadName: d.Workload.Name,
			Namespace:    d.Workload.Namespace,
			Kind:         d.Workload.Kind,
			Description:  description,
			Patch: map[string]any{
				"spec": map[string]any{
					"template": map[string]any{
						"spec": map[string]any{
							"containers": containers,
						},
					},
				},
			},
		})
	}
	return patches
}

func orderedEnv(env map[string]string) [][2]string {
	return [][2]string{
		{"OTEL_EXPORTER_OTLP_ENDPOINT", env["OTEL_EXPORTER_OTLP_ENDPOINT"]},
		{"OTEL_SERVICE_NAME", env["OTEL_SERVICE_NAME"]},
		{"OTEL_RESOURCE_ATTRIBUTES", env["OTEL_RESOURCE_ATTRIBUTES"]},
	}
}
