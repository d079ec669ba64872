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

package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Huzefaaa2/MindOps/pkg/slo"
)

type fixedRCA struct {
	result map[string]any
}

func (f fixedRCA) Status() (string, string) { return "ready", "stub narrator" }

func (f fixedRCA) Analyze(context.Context, string) (map[string]any, error) {
	return f.result, nil
}

type serverEnv struct {
	handler  http.Handler
	auditLog string
}

func newEnv(t *testing.T, mutate func(*Options)) serverEnv {
	t.Helper()
	dir := t.TempDir()
	opts := Options{
		StatePath:    filepath.Join(dir, "state.json"),
		AuditPath:    filepath.Join(dir, "audit.log"),
		SLOStorePath: filepath.Join(dir, "slo_store.json"),
	}
	if mutate != nil {
		mutate(&opts)
	}
	server := NewServer(opts, nil)
	return serverEnv{handler: server.Handler(), auditLog: opts.AuditPath}
}

func (e serverEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "ok", body["status"])
}

func TestPolicyDefaultsToMaintain(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var policy map[string]any
	decode(t, rec, &policy)
	require.Equal(t, "maintain_sampling", policy["sampling_action"])
}

func TestPolicyWriteRoundTrip(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/policy/sampling",
		map[string]any{"sampling_action": "increase_sampling", "sampling_rate": 0.8}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	var policy map[string]any
	decode(t, rec, &policy)
	require.Equal(t, "increase_sampling", policy["sampling_action"])
	require.Equal(t, 0.8, policy["sampling_rate"])
}

func TestPolicyWriteEmptyPayloadRejected(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/policy/sampling", map[string]any{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	require.Contains(t, body["detail"], "sampling_action or sampling_rate")
}

func TestAPIKeyRequired(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.APIKey = "sekret" })

	rec := env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/policy/sampling", nil, map[string]string{"x-api-key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/policy/sampling", nil, map[string]string{"x-api-key": "sekret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/policy/sampling", nil, map[string]string{"Authorization": "Bearer sekret"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDenyAllMode(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.AuthzMode = AuthzDenyAll })
	rec := env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScopedMode(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.AuthzMode = AuthzScoped })

	rec := env.do(t, http.MethodGet, "/policy/sampling", nil,
		map[string]string{"x-scopes": "slo.read"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/policy/sampling", nil,
		map[string]string{"x-scopes": "policy.read,slo.read"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Actors without declared scopes pass in scoped mode.
	rec = env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSLOExportMissingStore(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/slo/export", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSLOExportServesStore(t *testing.T) {
	var storePath string
	env := newEnv(t, func(o *Options) { storePath = o.SLOStorePath })
	_, err := slo.NewStore(storePath).Save([]slo.SLO{{
		Name:    "availability-api",
		Service: "api",
		Target:  slo.Target{Metric: slo.MetricAvailability, Comparator: ">=", Threshold: 0.99, WindowDays: 30},
	}}, slo.SaveReplace)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/slo/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	decode(t, rec, &doc)
	require.Equal(t, "slo-store/v1", doc["store_version"])
	require.Len(t, doc["slos"].([]any), 1)
}

func TestSLOValidateEndpoint(t *testing.T) {
	env := newEnv(t, nil)

	payload := slo.ExportOpenSLO([]slo.SLO{{
		Name:    "latency-p95-api",
		Service: "api",
		Target:  slo.Target{Metric: slo.MetricLatencyP95, Comparator: "<=", Threshold: 650, WindowDays: 30},
	}})
	rec := env.do(t, http.MethodPost, "/slo/validate", map[string]any{"payload": payload}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	decode(t, rec, &body)
	require.True(t, body.Valid)
	require.Empty(t, body.Errors)

	rec = env.do(t, http.MethodPost, "/slo/validate", map[string]any{"payload": map[string]any{"kind": "SLO"}}, nil)
	decode(t, rec, &body)
	require.False(t, body.Valid)
	require.NotEmpty(t, body.Errors)
}

func TestRCAUnavailableWithoutAdapter(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/rca/query", map[string]any{"trace_path": "/tmp/x.json"}, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRCAMissingTrace(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.RCA = fixedRCA{} })
	rec := env.do(t, http.MethodPost, "/rca/query",
		map[string]any{"trace_path": filepath.Join(t.TempDir(), "absent.json")}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRCAQueryHappyPath(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, os.WriteFile(tracePath, []byte("[]"), 0o644))

	env := newEnv(t, func(o *Options) {
		o.RCA = fixedRCA{result: map[string]any{"root_cause": "db overload"}}
	})
	rec := env.do(t, http.MethodPost, "/rca/query", map[string]any{"trace_path": tracePath}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	require.Equal(t, "db overload", body["root_cause"])
}

func TestTopologyAnalyzeEndpoint(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "web.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: prod
spec:
  selector:
    matchLabels:
      app: web
  template:
    metadata:
      labels:
        app: web
    spec:
      containers:
        - name: web
          image: web:1
`), 0o644))
	tracePath := filepath.Join(dir, "trace.json")
	require.NoError(t, os.WriteFile(tracePath, []byte(`[
      {"span_id": "a", "service_name": "web", "status": {"code": "OK"}},
      {"span_id": "b", "parent_id": "a", "service_name": "api", "status": {"code": "ERROR"}}
    ]`), 0o644))

	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/topology/analyze", map[string]any{
		"manifest_paths": []string{manifestPath},
		"trace_paths":    []string{tracePath},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	decode(t, rec, &report)
	require.Len(t, report.Nodes, 2) // manifest node plus the api stub
	require.Len(t, report.Edges, 1)
}

func TestMalformedBodyRejected(t *testing.T) {
	env := newEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/policy/sampling", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditTrail(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.APIKey = "sekret" })

	env.do(t, http.MethodGet, "/policy/sampling", nil, nil)
	env.do(t, http.MethodGet, "/policy/sampling", nil,
		map[string]string{"x-api-key": "sekret", "x-actor": "ci-bot"})

	f, err := os.Open(env.auditLog)
	require.NoError(t, err)
	defer f.Close()

	var records []AuditRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec AuditRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)

	require.Equal(t, "unauthorized", records[0].Status)
	require.Equal(t, "policy.read", records[0].Action)

	require.Equal(t, "ok", records[1].Status)
	require.Equal(t, "ci-bot", records[1].Actor)
	require.Equal(t, "api_key", records[1].AuthMode)
	require.NotEmpty(t, records[1].Details["request_id"])

	ts, err := time.Parse(time.RFC3339, records[1].Timestamp)
	require.NoError(t, err)
	require.False(t, ts.IsZero())
}
