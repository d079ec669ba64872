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
	"encoding/json"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
)

// Audit statuses.
const (
	AuditOK           = "ok"
	AuditInvalid      = "invalid"
	AuditUnauthorized = "unauthorized"
	AuditUnavailable  = "unavailable"
	AuditNotFound     = "not_found"
	AuditError        = "error"
)

// AuditRecord is one JSON-Lines entry of the append-only audit log.
type AuditRecord struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	AuthMode  string         `json:"auth_mode"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
}

// AuditLog appends records to a JSON-Lines file. Appends rely on O_APPEND
// semantics and take no lock; write failures are logged and swallowed so
// auditing never breaks request handling.
type AuditLog struct {
	path   string
	logger log.Logger
	now    func() time.Time
}

func NewAuditLog(path string, logger log.Logger) *AuditLog {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AuditLog{path: path, logger: logger, now: time.Now}
}

// Record appends one audit entry, best-effort.
func (a *AuditLog) Record(action string, actor Actor, status string, details map[string]any) {
	if a == nil || a.path == "" {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	record := AuditRecord{
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Action:    action,
		Actor:     actor.Name,
		AuthMode:  actor.AuthMode,
		Status:    status,
		Details:   details,
	}
	b, err := json.Marshal(record)
	if err != nil {
		level.Warn(a.logger).Log("msg", "marshaling audit record failed", "err", err)
		return
	}
	if err := fsio.AppendLine(a.path, b); err != nil {
		level.Warn(a.logger).Log("msg", "writing audit record failed", "err", err)
	}
}
