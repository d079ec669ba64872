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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
)

// ApplyOptions controls how a plan is pushed to the cluster.
type ApplyOptions struct {
	// Kubectl is the binary to invoke. Defaults to "kubectl".
	Kubectl string
	// DryRun collects the command lines without executing anything.
	DryRun bool
	// Diff runs kubectl diff before applying.
	Diff bool
	// DiffOnly runs kubectl diff and skips the apply entirely.
	DiffOnly bool
	// OutputDir, when set, receives collector-manifest.yaml,
	// collector-config.yaml and plan.json.
	OutputDir string
}

// ApplyResult reports what happened, including partial application: the
// manifest apply and earlier patches stay in effect when a later command
// fails.
type ApplyResult struct {
	// Commands is the full ordered command list the plan expands to.
	Commands []string `json:"commands"`
	// Executed lists the commands that ran successfully.
	Executed []string `json:"executed,omitempty"`
	// FailedCommand is the command that returned a non-zero exit, if any.
	FailedCommand string `json:"failed_command,omitempty"`
	// Remaining lists commands that were skipped after the failure.
	Remaining []string `json:"remaining,omitempty"`
}

// commandRunner abstracts process execution so tests can intercept kubectl.
type commandRunner func(ctx context.Context, stdin string, argv ...string) error

// Applier drives the external kubectl binary with apply, patch and diff
// subcommands. Invocations honor context cancellation by terminating the
// child process.
type Applier struct {
	opts   ApplyOptions
	logger log.Logger
	run    commandRunner
}

func NewApplier(opts ApplyOptions, logger log.Logger) *Applier {
	if opts.Kubectl == "" {
		opts.Kubectl = "kubectl"
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Applier{opts: opts, logger: logger, run: runCommand}
}

// Apply writes plan artifacts, runs optional diffs, then applies the
// collector manifest and each workload patch in order. The returned result
// is valid even on error and documents how far execution got.
func (a *Applier) Apply(ctx context.Context, plan Plan) (ApplyResult, error) {
	var result ApplyResult

	manifestPath, err := a.writeArtifacts(plan)
	if err != nil {
		return result, err
	}

	type command struct {
		argv  []string
		stdin string
	}
	var commands []command
	add := func(stdin string, argv ...string) {
		commands = append(commands, command{argv: argv, stdin: stdin})
		result.Commands = append(result.Commands, strings.Join(argv, " "))
	}

	if a.opts.Diff || a.opts.DiffOnly {
		if manifestPath != "" {
			add("", a.opts.Kubectl, "diff", "-f", manifestPath)
		}
		for _, patch := range plan.Collector.Patches {
			payload, err := patchedWorkloadDoc(patch)
			if err != nil {
				return result, err
			}
			add(payload, a.opts.Kubectl, "diff", "-f", "-")
		}
	}
	if !a.opts.DiffOnly {
		if manifestPath != "" {
			add("", a.opts.Kubectl, "apply", "-f", manifestPath)
		}
		for _, patch := range plan.Collector.Patches {
			payload, err := json.Marshal(patch.Patch)
			if err != nil {
				return result, fmt.Errorf("marshal patch for %s: %w", patch.WorkloadName, err)
			}
			add("", a.opts.Kubectl, "patch", strings.ToLower(patch.Kind), patch.WorkloadName,
				"-n", patch.Namespace, "--type", "merge", "-p", string(payload))
		}
	}

	if a.opts.DryRun {
		return result, nil
	}

	for i, cmd := range commands {
		level.Debug(a.logger).Log("msg", "running kubectl", "cmd", result.Commands[i])
		if err := a.run(ctx, cmd.stdin, cmd.argv...); err != nil {
			result.FailedCommand = result.Commands[i]
			result.Remaining = result.Commands[i+1:]
			return result, fmt.Errorf("run %q: %w", result.Commands[i], err)
		}
		result.Executed = append(result.Executed, result.Commands[i])
	}
	return result, nil
}

// writeArtifacts persists the manifest (always needed for apply/diff) plus
// the config and plan JSON when an output directory is configured. Returns
// the manifest path, empty when the plan has no manifest.
func (a *Applier) writeArtifacts(plan Plan) (string, error) {
	manifestYAML := plan.Collector.ManifestYAML
	if manifestYAML == "" {
		return "", nil
	}
	dir := a.opts.OutputDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "zerotouch-")
		if err != nil {
			return "", err
		}
		dir = tmp
	}
	manifestPath := filepath.Join(dir, "collector-manifest.yaml")
	if err := fsio.WriteFile(manifestPath, []byte(manifestYAML)); err != nil {
		return "", fmt.Errorf("write collector manifest: %w", err)
	}
	if a.opts.OutputDir != "" {
		if err := fsio.WriteFile(filepath.Join(dir, "collector-config.yaml"), []byte(plan.Collector.ConfigYAML)); err != nil {
			return "", fmt.Errorf("write collector config: %w", err)
		}
		if err := fsio.WriteJSON(filepath.Join(dir, "plan.json"), plan); err != nil {
			return "", fmt.Errorf("write plan: %w", err)
		}
	}
	return manifestPath, nil
}

// patchedWorkloadDoc constructs the minimal workload document kubectl diff
// can compare: object identity plus the patched pod template fragment.
func patchedWorkloadDoc(patch PatchInstruction) (string, error) {
	doc := map[string]any{
		"apiVersion": "apps/v1",
		"kind":       patch.Kind,
		"metadata": map[string]any{
			"name":      patch.WorkloadName,
			"namespace": patch.Namespace,
		},
	}
	for key, value := range patch.Patch {
		doc[key] = value
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal diff payload for %s: %w", patch.WorkloadName, err)
	}
	return string(b), nil
}
