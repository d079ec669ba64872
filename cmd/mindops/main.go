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

// The mindops command runs the observability control-plane pipeline over a
// trace file and Kubernetes manifests, emits the composed report, and can
// act as a CI gate.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
	"github.com/Huzefaaa2/MindOps/pkg/gate"
	"github.com/Huzefaaa2/MindOps/pkg/orchestrator"
	"github.com/Huzefaaa2/MindOps/pkg/slo"
	"github.com/Huzefaaa2/MindOps/pkg/zerotouch"
)

func main() {
	app := kingpin.New("mindops", "Observability control plane for cloud-native workloads.")

	var (
		tracePath        = app.Flag("trace", "Trace JSON file (flat span array or OTLP).").String()
		manifests        = app.Flag("manifests", "Kubernetes manifest file or directory (repeatable).").Strings()
		telemetryVolumes = app.Flag("telemetry-volume", "Daily telemetry volume sample (repeatable).").Float64List()
		expectedSignals  = app.Flag("expected-signal", "Expected probe signal name (repeatable).").Strings()
		observedSignals  = app.Flag("observed-signal", "Observed signal name (repeatable).").Strings()

		ztMode      = app.Flag("zero-touch-mode", "Collector topology mode.").Default("auto").Enum("auto", "gateway", "daemonset", "sidecar")
		ztNamespace = app.Flag("zero-touch-namespace", "Namespace for collector resources.").Default("observability").String()
		ztExporters = app.Flag("zero-touch-exporter", "Collector exporter; logging or otlp=<endpoint> (repeatable).").Strings()
		ztSampling  = app.Flag("zero-touch-sampling-rate", "Collector sampling rate in [0,1].").Default("1.0").Float64()
		ztPolicy    = app.Flag("zero-touch-policy", "JSON sampling policy file overriding the rate.").String()
		ztApply     = app.Flag("zero-touch-apply", "Apply the zero-touch plan via kubectl.").Bool()
		ztDiffOnly  = app.Flag("zero-touch-diff-only", "Run kubectl diff for the plan and skip apply.").Bool()
		ztDryRun    = app.Flag("zero-touch-dry-run", "Collect kubectl commands without executing.").Bool()
		kubectlPath = app.Flag("kubectl", "kubectl binary path.").Default("kubectl").String()

		sloStorePath = app.Flag("slo-store", "Persist generated SLOs to this store file.").Envar("SLO_STORE_PATH").String()
		openSLOOut   = app.Flag("openslo-out", "Write the generated SLOs as OpenSLO YAML to this file.").String()
		exportDir    = app.Flag("export-dir", "Write structured report artifacts to this directory.").String()
		output       = app.Flag("output", "Write the orchestrator report JSON to this file.").String()
		failOn       = app.Flag("fail-on", "CI gate sensitivity; exit non-zero when crossed.").Enum("any", "baseline", "tests", "guardrail")
		logLevel     = app.Flag("log-level", "Log level.").Default("info").Enum("debug", "info", "warn", "error")
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := setupLogger(*logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := orchestrator.Options{
		TracePath:        *tracePath,
		ManifestPaths:    *manifests,
		TelemetryVolumes: *telemetryVolumes,
		ExpectedSignals:  *expectedSignals,
		ObservedSignals:  *observedSignals,
	}
	if len(*manifests) > 0 {
		exporters, otlpEndpoint := parseExporters(*ztExporters)
		samplingRate := *ztSampling
		if *ztPolicy != "" {
			rate, err := zerotouch.LoadSamplingPolicy(*ztPolicy)
			if err != nil {
				level.Error(logger).Log("msg", "loading sampling policy failed", "err", err)
				os.Exit(2)
			}
			if rate != nil {
				samplingRate = *rate
			}
		}
		opts.ZeroTouch = &zerotouch.Options{
			Mode:               zerotouch.Mode(*ztMode),
			Namespace:          *ztNamespace,
			Exporters:          exporters,
			OTLPExportEndpoint: otlpEndpoint,
			SamplingRate:       samplingRate,
		}
	}

	report, err := orchestrator.New(opts, logger).Run(ctx)
	if err != nil {
		level.Error(logger).Log("msg", "orchestrator run failed", "err", err)
		os.Exit(2)
	}

	if *sloStorePath != "" && len(report.SLOCandidates) > 0 {
		if _, err := slo.NewStore(*sloStorePath).Save(report.SLOCandidates, slo.SaveMerge); err != nil {
			level.Error(logger).Log("msg", "saving SLO store failed", "err", err)
			os.Exit(2)
		}
	}
	if *openSLOOut != "" && len(report.SLOCandidates) > 0 {
		doc, err := slo.ExportOpenSLOYAML(report.SLOCandidates)
		if err != nil {
			level.Error(logger).Log("msg", "rendering OpenSLO export failed", "err", err)
			os.Exit(2)
		}
		if err := fsio.WriteFile(*openSLOOut, []byte(doc)); err != nil {
			level.Error(logger).Log("msg", "writing OpenSLO export failed", "err", err)
			os.Exit(2)
		}
	}
	if *exportDir != "" {
		if err := orchestrator.ExportArtifacts(*exportDir, report); err != nil {
			level.Error(logger).Log("msg", "exporting artifacts failed", "err", err)
			os.Exit(2)
		}
	}

	if report.ZeroTouch != nil && (*ztApply || *ztDiffOnly) {
		applier := zerotouch.NewApplier(zerotouch.ApplyOptions{
			Kubectl:   *kubectlPath,
			DryRun:    *ztDryRun,
			Diff:      true,
			DiffOnly:  *ztDiffOnly,
			OutputDir: *exportDir,
		}, logger)
		result, err := applier.Apply(ctx, *report.ZeroTouch)
		if err != nil {
			level.Error(logger).Log("msg", "applying zero-touch plan failed",
				"failed_command", result.FailedCommand, "remaining", len(result.Remaining), "err", err)
			os.Exit(2)
		}
		for _, cmd := range result.Commands {
			level.Info(logger).Log("msg", "kubectl", "cmd", cmd)
		}
	}

	decision := gateDecision(report)
	summary := map[string]any{
		"baseline_failures": countFailures(report.BaselineEvaluations),
		"test_failures":     countTestFailures(report.TestResults),
		"guardrail_passed":  decision.Passed,
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		level.Error(logger).Log("msg", "marshaling report failed", "err", err)
		os.Exit(2)
	}
	if *output != "" {
		if err := fsio.WriteFile(*output, append(payload, '\n')); err != nil {
			level.Error(logger).Log("msg", "writing report failed", "err", err)
			os.Exit(2)
		}
	}
	fmt.Println(string(payload))

	if *failOn != "" {
		summaryJSON, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(summaryJSON))
		if gate.ShouldFail(*failOn,
			summary["baseline_failures"].(int), summary["test_failures"].(int), decision.Passed) {
			os.Exit(1)
		}
	}
}

// gateDecision evaluates the report's guardrails against its own baseline
// metrics.
func gateDecision(report orchestrator.Report) gate.Decision {
	var coverageRatio *float64
	if report.Coverage != nil {
		coverageRatio = &report.Coverage.CoverageRatio
	}
	metrics := slo.MetricsFromStats(report.Stats, coverageRatio)
	return gate.Evaluate(report.Guardrails, metrics.Map())
}

func countFailures(evals []slo.Evaluation) int {
	n := 0
	for _, e := range evals {
		if !e.Passed {
			n++
		}
	}
	return n
}

func countTestFailures(results []slo.TestResult) int {
	n := 0
	for _, r := range results {
		n += countFailures(r.Evaluations)
	}
	return n
}

// parseExporters expands the repeatable exporter flag; otlp=<endpoint>
// selects the otlp exporter with a custom endpoint.
func parseExporters(values []string) ([]string, string) {
	var (
		exporters []string
		endpoint  string
	)
	for _, value := range values {
		if strings.HasPrefix(value, "otlp=") {
			exporters = append(exporters, "otlp")
			endpoint = strings.TrimPrefix(value, "otlp=")
			continue
		}
		exporters = append(exporters, value)
	}
	if len(exporters) == 0 {
		exporters = []string{"logging"}
	}
	return exporters, endpoint
}

func setupLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	switch lvl {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}
