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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
	"github.com/Huzefaaa2/MindOps/pkg/slo"
	"github.com/Huzefaaa2/MindOps/pkg/topology"
	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

// RCAAnalyzer narrates a root cause for a trace. The LLM-backed narrator is
// an optional adapter; absent ones surface as 503 at the API boundary.
type RCAAnalyzer interface {
	Analyze(ctx context.Context, tracePath string) (map[string]any, error)
	// Status reports "ready" or "unavailable" plus a detail string.
	Status() (string, string)
}

// Options wires the server's stores, credentials and adapters.
type Options struct {
	APIKey       string
	AuthzMode    AuthzMode
	StatePath    string
	AuditPath    string
	SLOStorePath string
	// RCA is optional; nil means /rca/query reports 503.
	RCA RCAAnalyzer
	// Registry receives the server's metrics when non-nil.
	Registry *prometheus.Registry
}

// Server is the control-plane HTTP API.
type Server struct {
	opts     Options
	auth     Authenticator
	state    *StateStore
	audit    *AuditLog
	logger   log.Logger
	requests *prometheus.CounterVec
}

func NewServer(opts Options, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.AuthzMode == "" {
		opts.AuthzMode = AuthzAllowAll
	}
	s := &Server{
		opts:   opts,
		auth:   Authenticator{APIKey: opts.APIKey, AuthzMode: opts.AuthzMode},
		state:  NewStateStore(opts.StatePath),
		audit:  NewAuditLog(opts.AuditPath, logger),
		logger: logger,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindops_control_plane_requests_total",
			Help: "Control-plane API requests by action and outcome.",
		}, []string{"action", "status"}),
	}
	if opts.Registry != nil {
		opts.Registry.MustRegister(s.requests)
	}
	return s
}

// apiError carries the HTTP status, audit status and audit details of a
// failed or rejected request.
type apiError struct {
	status      int
	auditStatus string
	message     string
	details     map[string]any
}

func (e *apiError) Error() string { return e.message }

func errInvalid(message string, details map[string]any) *apiError {
	return &apiError{status: http.StatusBadRequest, auditStatus: AuditInvalid, message: message, details: details}
}

func errNotFound(message string, details map[string]any) *apiError {
	return &apiError{status: http.StatusNotFound, auditStatus: AuditNotFound, message: message, details: details}
}

func errUnavailable(message string, details map[string]any) *apiError {
	return &apiError{status: http.StatusServiceUnavailable, auditStatus: AuditUnavailable, message: message, details: details}
}

// handlerFunc writes the success response itself and returns the audit
// details of the completed action.
type handlerFunc func(w http.ResponseWriter, r *http.Request, actor Actor) (map[string]any, error)

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/policy/sampling", s.authed("policy.read", s.handleGetSamplingPolicy))
	r.Post("/policy/sampling", s.authed("policy.write", s.handleSetSamplingPolicy))
	r.Get("/slo/export", s.authed("slo.read", s.handleSLOExport))
	r.Post("/slo/validate", s.authed("slo.validate", s.handleSLOValidate))
	r.Post("/rca/query", s.authed("rca.query", s.handleRCAQuery))
	r.Post("/topology/analyze", s.authed("topology.analyze", s.handleTopologyAnalyze))
	if s.opts.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{Registry: s.opts.Registry}))
	}
	return r
}

// authed wraps a handler with authentication, authorization, auditing,
// metrics and error translation. The API fails closed: an unexpected error
// becomes a generic 500 while the audit record captures the cause.
func (s *Server) authed(action string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		finish := func(actor Actor, auditStatus string, details map[string]any) {
			if details == nil {
				details = map[string]any{}
			}
			details["request_id"] = requestID
			s.audit.Record(action, actor, auditStatus, details)
			s.requests.WithLabelValues(action, auditStatus).Inc()
		}

		actor, err := s.auth.Authenticate(r)
		if err != nil {
			finish(actor, AuditUnauthorized, nil)
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err := s.auth.Authorize(actor, action); err != nil {
			finish(actor, AuditUnauthorized, map[string]any{"reason": "forbidden"})
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		details, err := fn(w, r, actor)
		if err == nil {
			finish(actor, AuditOK, details)
			return
		}
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			finish(actor, apiErr.auditStatus, apiErr.details)
			s.writeError(w, apiErr.status, apiErr.message)
			return
		}
		level.Error(s.logger).Log("msg", "request failed", "action", action, "err", err)
		finish(actor, AuditError, map[string]any{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSamplingPolicy(w http.ResponseWriter, _ *http.Request, _ Actor) (map[string]any, error) {
	state, err := s.state.Load()
	if err != nil {
		return nil, err
	}
	s.writeJSON(w, http.StatusOK, state.SamplingPolicy)
	return map[string]any{"has_policy": len(state.SamplingPolicy) > 0}, nil
}

func (s *Server) handleSetSamplingPolicy(w http.ResponseWriter, r *http.Request, _ Actor) (map[string]any, error) {
	var body struct {
		SamplingAction *string  `json:"sampling_action"`
		SamplingRate   *float64 `json:"sampling_rate"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if body.SamplingAction != nil {
		payload["sampling_action"] = *body.SamplingAction
	}
	if body.SamplingRate != nil {
		payload["sampling_rate"] = *body.SamplingRate
	}
	if len(payload) == 0 {
		return nil, errInvalid("Provide sampling_action or sampling_rate", map[string]any{"reason": "empty_payload"})
	}
	if _, err := s.state.Update(func(state *State) error {
		state.SamplingPolicy = payload
		return nil
	}); err != nil {
		return nil, err
	}
	s.writeJSON(w, http.StatusOK, payload)
	return map[string]any{"payload_keys": keysOf(payload)}, nil
}

func (s *Server) handleSLOExport(w http.ResponseWriter, _ *http.Request, _ Actor) (map[string]any, error) {
	b, err := os.ReadFile(s.opts.SLOStorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound("SLO store not found: "+s.opts.SLOStorePath,
				map[string]any{"path": s.opts.SLOStorePath})
		}
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	s.writeJSON(w, http.StatusOK, doc)
	return map[string]any{"path": s.opts.SLOStorePath}, nil
}

func (s *Server) handleSLOValidate(w http.ResponseWriter, r *http.Request, _ Actor) (map[string]any, error) {
	var body struct {
		Payload any `json:"payload"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}
	valid, validationErrors := slo.StructuralValidator{}.Validate(body.Payload)
	if validationErrors == nil {
		validationErrors = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"valid": valid, "errors": validationErrors})
	return map[string]any{"valid": valid, "error_count": len(validationErrors)}, nil
}

func (s *Server) handleRCAQuery(w http.ResponseWriter, r *http.Request, _ Actor) (map[string]any, error) {
	var body struct {
		TracePath string `json:"trace_path"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}
	if s.opts.RCA == nil {
		return nil, errUnavailable("RCA analyzer unavailable",
			map[string]any{"error": "no RCA analyzer configured"})
	}
	if status, detail := s.opts.RCA.Status(); status != "ready" {
		return nil, errUnavailable("RCA analyzer unavailable: "+detail, map[string]any{"error": detail})
	}
	if _, err := os.Stat(body.TracePath); err != nil {
		return nil, errNotFound("Trace path not found", map[string]any{"trace_path": body.TracePath})
	}
	result, err := s.opts.RCA.Analyze(r.Context(), body.TracePath)
	if err != nil {
		return nil, err
	}
	s.writeJSON(w, http.StatusOK, result)
	return map[string]any{"trace_path": body.TracePath}, nil
}

func (s *Server) handleTopologyAnalyze(w http.ResponseWriter, r *http.Request, _ Actor) (map[string]any, error) {
	var body struct {
		ManifestPaths []string `json:"manifest_paths"`
		TracePaths    []string `json:"trace_paths"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}

	var set manifest.Set
	if len(body.ManifestPaths) > 0 {
		loaded, err := manifest.Load(body.ManifestPaths)
		if err != nil {
			return nil, errNotFound(err.Error(), map[string]any{"error": err.Error()})
		}
		set = loaded
	}
	var spans []trace.Span
	ingester := trace.NewIngester(s.logger)
	for _, path := range body.TracePaths {
		parsed, err := ingester.ParseFile(path)
		if err != nil {
			return nil, errNotFound(err.Error(), map[string]any{"error": err.Error()})
		}
		spans = append(spans, parsed...)
	}

	report := topology.NewAnalyzer(s.logger).Analyze(set, spans)
	s.writeJSON(w, http.StatusOK, report)
	return map[string]any{
		"manifest_count": len(body.ManifestPaths),
		"trace_count":    len(body.TracePaths),
	}, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalid("invalid JSON body: "+err.Error(), map[string]any{"reason": "malformed_body"})
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Debug(s.logger).Log("msg", "writing response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
