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

// Package orchestrator composes ingest, scrubbing, statistics, SLO
// synthesis, fault testing, coverage, budgeting, sampling advice, topology
// and zero-touch planning into a single report.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
	"github.com/Huzefaaa2/MindOps/pkg/budget"
	"github.com/Huzefaaa2/MindOps/pkg/coverage"
	"github.com/Huzefaaa2/MindOps/pkg/manifest"
	"github.com/Huzefaaa2/MindOps/pkg/pii"
	"github.com/Huzefaaa2/MindOps/pkg/sampling"
	"github.com/Huzefaaa2/MindOps/pkg/slo"
	"github.com/Huzefaaa2/MindOps/pkg/topology"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
	"github.com/Huzefaaa2/MindOps/pkg/zerotouch"
)

// TelemetryRecommendation couples the sampling action to the budget
// forecast that motivated it.
type TelemetryRecommendation struct {
	SamplingAction sampling.Action `json:"sampling_action"`
	BudgetAlert    bool            `json:"budget_alert"`
	Forecast       []float64       `json:"forecast"`
	Notes          []string        `json:"notes,omitempty"`
}

// Report is the composed analysis result.
type Report struct {
	SLOCandidates       []slo.SLO                    `json:"slo_candidates"`
	BaselineEvaluations []slo.Evaluation             `json:"baseline_evaluations"`
	TestResults         []slo.TestResult             `json:"test_results"`
	Coverage            *coverage.Report             `json:"coverage"`
	Telemetry           *TelemetryRecommendation     `json:"telemetry_recommendation"`
	RCA                 map[string]any               `json:"rca"`
	PolicySnippets      map[string]string            `json:"policy_snippets"`
	Guardrails          map[string]slo.Guardrail     `json:"guardrails"`
	Topology            *topology.Report             `json:"topology,omitempty"`
	ZeroTouch           *zerotouch.Plan              `json:"zero_touch,omitempty"`
	Stats               trace.Stats                  `json:"stats"`
	ScrubReport         pii.Report                   `json:"scrub_report"`
	IntegrationsStatus  map[string]IntegrationStatus `json:"integrations_status"`
	Warnings            []string                     `json:"warnings,omitempty"`
}

// Options selects inputs and optional stages.
type Options struct {
	TracePath        string
	ManifestPaths    []string
	TelemetryVolumes []float64
	ExpectedSignals  []string
	ObservedSignals  []string
	ZeroTouch        *zerotouch.Options
	// RCA narrates root causes when evaluations fail. Nil means the default
	// unavailable narrator.
	RCA RCANarrator
}

// Orchestrator wires the subsystems. Every dependency is explicit; nothing
// reaches across package boundaries at runtime.
type Orchestrator struct {
	opts      Options
	logger    log.Logger
	ingester  *trace.Ingester
	scrubber  *pii.Scrubber
	generator *slo.Generator
	runner    *slo.TestRunner
	advisor   *sampling.Advisor
	rca       RCANarrator
}

func New(opts Options, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rca := opts.RCA
	if rca == nil {
		rca = UnavailableRCANarrator{}
	}
	return &Orchestrator{
		opts:      opts,
		logger:    logger,
		ingester:  trace.NewIngester(logger),
		scrubber:  pii.NewScrubber(pii.Config{}, nil),
		generator: slo.NewGenerator(),
		runner:    slo.NewTestRunner(),
		advisor:   sampling.NewAdvisor(),
		rca:       rca,
	}
}

// Run executes the full pipeline. Missing optional inputs degrade to
// warnings; only an unreadable trace payload is fatal.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report

	var spans []trace.Span
	if o.opts.TracePath != "" {
		parsed, err := o.ingester.ParseFile(o.opts.TracePath)
		if err != nil {
			return report, err
		}
		spans, report.ScrubReport = o.scrubber.ScrubSpans(parsed)
		level.Debug(o.logger).Log("msg", "scrubbed ingested spans",
			"spans", len(spans), "redactions", report.ScrubReport.TotalRedactions)
	} else {
		report.Warnings = append(report.Warnings, "No trace provided; metrics are empty.")
	}
	report.Stats = trace.ComputeStats(spans)

	// Coverage. Without an explicit probe list the default expected set
	// keeps the coverage objective exercised.
	var coverageRatio *float64
	expected := o.opts.ExpectedSignals
	if len(expected) == 0 {
		expected = []string{"probe_a", "probe_b", "probe_c"}
	}
	observed := o.opts.ObservedSignals
	if len(observed) == 0 {
		observed = trace.ObservedSignals(spans)
	}
	cov := coverage.Analyze(expected, observed)
	report.Coverage = &cov
	coverageRatio = &cov.CoverageRatio

	// SLO synthesis, baseline evaluation and fault tests.
	report.SLOCandidates = o.generator.Generate(report.Stats, report.Coverage)
	baseMetrics := slo.MetricsFromStats(report.Stats, coverageRatio)
	report.BaselineEvaluations = slo.EvaluateAll(report.SLOCandidates, baseMetrics)
	report.TestResults = o.runner.Run(report.SLOCandidates, report.Stats, coverageRatio)

	report.Guardrails = slo.EmitGuardrails(report.SLOCandidates)
	report.PolicySnippets = slo.SnippetBundle(report.Guardrails)

	// Telemetry budget forecast and sampling advice.
	report.Telemetry = o.telemetryRecommendation(report.Stats)

	// Topology, when manifests or traces are available.
	if len(o.opts.ManifestPaths) > 0 || len(spans) > 0 {
		set, err := manifest.Load(o.opts.ManifestPaths)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Loading manifests failed: %s", err))
		}
		topo := topology.NewAnalyzer(o.logger).Analyze(set, spans)
		report.Topology = &topo
	}

	// Zero-touch plan, when requested.
	if o.opts.ZeroTouch != nil && len(o.opts.ManifestPaths) > 0 {
		set, err := manifest.Load(o.opts.ManifestPaths)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Zero-touch discovery failed: %s", err))
		} else {
			discovered := zerotouch.Discover(set)
			plan, err := zerotouch.NewPlanner(*o.opts.ZeroTouch, o.logger).Plan(discovered)
			if err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Zero-touch planning failed: %s", err))
			} else {
				report.ZeroTouch = &plan
			}
		}
	}

	// RCA runs only when a baseline or fault-test violation exists.
	if slo.AnyFailed(report.BaselineEvaluations) || slo.AnyTestFailed(report.TestResults) {
		if status, detail := o.rca.Status(); status == "ready" {
			result, err := o.rca.Analyze(ctx, o.opts.TracePath)
			if err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("RCA narration failed: %s", err))
			} else {
				report.RCA = result
			}
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf("RCA narrator unavailable: %s", detail))
		}
	}

	report.IntegrationsStatus = o.integrationStatuses()
	return report, nil
}

func (o *Orchestrator) telemetryRecommendation(stats trace.Stats) *TelemetryRecommendation {
	engine := budget.NewEngine(budget.DefaultConfig())
	for _, volume := range o.opts.TelemetryVolumes {
		engine.Update(volume)
	}
	forecast := engine.Forecast(7)
	alert := engine.NeedsAction()

	relativeCost := 1.0
	if n := len(o.opts.TelemetryVolumes); n > 0 {
		relativeCost = o.opts.TelemetryVolumes[n-1] / engine.Config().TargetBudget
	}
	action := o.advisor.Action(relativeCost, stats.ErrorRate > 0)

	rec := &TelemetryRecommendation{
		SamplingAction: action,
		BudgetAlert:    alert,
		Forecast:       roundAll(forecast),
	}
	if alert {
		rec.Notes = append(rec.Notes, "Telemetry forecast exceeds budget threshold.")
	}
	return rec
}

func (o *Orchestrator) integrationStatuses() map[string]IntegrationStatus {
	statuses := map[string]IntegrationStatus{}
	probe := func(name, status, detail string) {
		statuses[name] = IntegrationStatus{Name: name, Status: status, Detail: detail}
	}
	forecastStatus, forecastDetail := budget.AR1Forecaster{}.Status()
	probe("budget-forecaster", forecastStatus, forecastDetail)
	validatorStatus, validatorDetail := slo.StructuralValidator{}.Status()
	probe("openslo-validator", validatorStatus, validatorDetail)
	rcaStatus, rcaDetail := o.rca.Status()
	probe("rca-narrator", rcaStatus, rcaDetail)
	probe("pii-scrubber", "ready", "regex+validator redaction")
	probe("sampling-advisor", "ready", "q-table inference")
	return statuses
}

// ExportArtifacts writes the structured report tree under dir:
// orchestrator_report.json, the zero-touch plan artifacts, and the SLO
// report copy.
func ExportArtifacts(dir string, report Report) error {
	if err := fsio.WriteJSON(filepath.Join(dir, "orchestrator_report.json"), report); err != nil {
		return err
	}
	if report.ZeroTouch != nil {
		ztDir := filepath.Join(dir, "zero_touch")
		if err := fsio.WriteJSON(filepath.Join(ztDir, "plan.json"), report.ZeroTouch); err != nil {
			return err
		}
		if m := report.ZeroTouch.Collector.ManifestYAML; m != "" {
			if err := fsio.WriteFile(filepath.Join(ztDir, "collector-manifest.yaml"), []byte(m)); err != nil {
				return err
			}
		}
		if c := report.ZeroTouch.Collector.ConfigYAML; c != "" {
			if err := fsio.WriteFile(filepath.Join(ztDir, "collector-config.yaml"), []byte(c)); err != nil {
				return err
			}
		}
	}
	sloDir := filepath.Join(dir, "slo_copilot")
	return fsio.WriteJSON(filepath.Join(sloDir, "report.json"), map[string]any{
		"slo_candidates":       report.SLOCandidates,
		"baseline_evaluations": report.BaselineEvaluations,
		"test_results":         report.TestResults,
		"coverage":             report.Coverage,
		"policy_snippets":      report.PolicySnippets,
	})
}

func roundAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Round(v*10000) / 10000
	}
	return out
}
